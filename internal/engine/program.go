package engine

import (
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/roach88/abacus/internal/ir"
)

// Program is one on-chain program as the host sees it.
//
// Process is the single entry point: process(program_identity,
// account_list, instruction_payload). It mutates account buffers in place
// and returns nil or a *ir.ProgramError.
type Program interface {
	// Name is the program's registry name, e.g. "calculator".
	Name() string

	// RecordSize is the byte length of a freshly allocated account buffer.
	RecordSize() int

	// Process runs one invocation.
	Process(programID ir.Identity, accounts []ir.Account, payload []byte) error

	// Inspect decodes an account buffer owned by the program, for display.
	Inspect(data []byte) (any, error)
}

// Option configures a program.
type Option func(*options)

type options struct {
	logger *zap.Logger
}

// WithLogger routes program log lines to logger. The default is a no-op
// logger.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Registry maps program ids to programs.
//
// A Registry is populated once at startup and read-only afterwards; lookups
// are safe from any goroutine after the last Register.
type Registry struct {
	programs map[ir.Identity]Program
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{programs: make(map[ir.Identity]Program)}
}

// Register binds p to id. Registering an id twice is an error.
func (r *Registry) Register(id ir.Identity, p Program) error {
	if existing, ok := r.programs[id]; ok {
		return fmt.Errorf("program id %s already registered to %s", id.Short(), existing.Name())
	}
	r.programs[id] = p
	return nil
}

// Lookup returns the program registered under id.
func (r *Registry) Lookup(id ir.Identity) (Program, bool) {
	p, ok := r.programs[id]
	return p, ok
}

// Entry is one registered program.
type Entry struct {
	ID      ir.Identity
	Program Program
}

// Entries returns all registered programs sorted by name, then id.
func (r *Registry) Entries() []Entry {
	entries := make([]Entry, 0, len(r.programs))
	for id, p := range r.programs {
		entries = append(entries, Entry{ID: id, Program: p})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Program.Name() != entries[j].Program.Name() {
			return entries[i].Program.Name() < entries[j].Program.Name()
		}
		return entries[i].ID.String() < entries[j].ID.String()
	})
	return entries
}

// Invoke routes one invocation to the program registered under programID.
// An unregistered id fails with UnknownProgram at StageStart.
func Invoke(r *Registry, programID ir.Identity, accounts []ir.Account, payload []byte) error {
	p, ok := r.Lookup(programID)
	if !ok {
		return ir.AtStage(ir.NewProgramError(ir.ErrCodeUnknownProgram,
			"no program registered under %s", programID.Short()), ir.StageStart)
	}
	return p.Process(programID, accounts, payload)
}
