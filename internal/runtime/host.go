// Package runtime is the local host: it plays the execution environment
// that real programs run under.
//
// The host owns account buffers (in internal/store), derives each call's
// ir.AccountContext, runs the program against a private copy of the buffer
// and commits the copy only if the program succeeds. Every invocation,
// committed or failed, is appended to the invocation log with a logical
// seq, which Replay re-executes to verify the stored bytes.
package runtime

import (
	"bytes"
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/roach88/abacus/internal/engine"
	"github.com/roach88/abacus/internal/ir"
	"github.com/roach88/abacus/internal/store"
)

// Host runs invocations against stored accounts.
//
// Thread-safety: Invoke and CreateAccount are serialized by an internal
// mutex (single writer); the read methods are safe from any goroutine.
type Host struct {
	mu       sync.Mutex
	store    *store.Store
	registry *engine.Registry
	clock    *engine.Clock
	txIDs    engine.TxIDGenerator
	logger   *zap.Logger
}

// Option configures a Host.
type Option func(*Host)

// WithLogger sets the host logger. The default is a no-op logger.
func WithLogger(logger *zap.Logger) Option {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithTxIDGenerator replaces the UUIDv7 transaction id generator.
// Host tests pass an engine.FixedGenerator, scenarios a
// testutil.SequentialTxIDs.
func WithTxIDGenerator(gen engine.TxIDGenerator) Option {
	return func(h *Host) {
		h.txIDs = gen
	}
}

// New creates a host over s and r. The logical clock resumes after the
// store's last seq.
func New(ctx context.Context, s *store.Store, r *engine.Registry, opts ...Option) (*Host, error) {
	last, err := s.LastSeq(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "new host")
	}

	h := &Host{
		store:    s,
		registry: r,
		clock:    engine.NewClockAt(last),
		txIDs:    engine.UUIDv7Generator{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Request is one invocation as a client submits it.
type Request struct {
	ProgramID ir.Identity
	Account   string // Target account name
	Signer    string // Optional authority name; empty means unsigned
	Payload   []byte
}

// Invoke runs one request.
//
// The program sees a copy of the account buffer. On success the copy is
// committed and the host assigns the account to the program; on failure the
// stored bytes are untouched. Either way one log entry is appended.
//
// The returned error is the program's *ir.ProgramError when the program
// failed (the record is still valid and logged), or a wrapped host error
// when nothing was logged.
func (h *Host) Invoke(ctx context.Context, req Request) (ir.InvocationRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	acct, err := h.store.ReadAccountByName(ctx, req.Account)
	if err != nil {
		return ir.InvocationRecord{}, errors.Wrap(err, "invoke")
	}

	var signer ir.Identity
	if req.Signer != "" {
		signer = ir.AccountIdentity(req.Signer)
	}

	working := bytes.Clone(acct.Data)
	accounts := deriveAccounts(acct, req.ProgramID, signer, working)
	progErr := engine.Invoke(h.registry, req.ProgramID, accounts, req.Payload)

	seq := h.clock.Next()
	id, err := ir.InvocationID(req.ProgramID, acct.ID, signer, req.Payload, seq)
	if err != nil {
		return ir.InvocationRecord{}, errors.Wrap(err, "invoke")
	}

	rec := ir.InvocationRecord{
		ID:          id,
		Seq:         seq,
		TxID:        h.txIDs.Generate(),
		ProgramID:   req.ProgramID,
		AccountID:   acct.ID,
		Signer:      signer,
		Payload:     bytes.Clone(req.Payload),
		Status:      ir.StatusOK,
		StateBefore: acct.Data,
		StateAfter:  working,
	}
	if progErr != nil {
		rec.Status = ir.StatusFailed
		rec.ErrorCode = ir.CodeOf(progErr)
		rec.ErrorMessage = progErr.Error()
		rec.StateAfter = acct.Data
	}

	if _, err := h.store.CommitInvocation(ctx, rec, req.ProgramID); err != nil {
		return ir.InvocationRecord{}, errors.Wrap(err, "invoke")
	}

	h.logger.Info("invocation logged",
		zap.Int64("seq", rec.Seq),
		zap.String("tx_id", rec.TxID),
		zap.String("account", req.Account),
		zap.String("program_id", req.ProgramID.Short()),
		zap.String("status", string(rec.Status)),
		zap.String("error_code", string(rec.ErrorCode)),
		zap.String("state_digest", ir.StateDigest(rec.StateAfter)[:16]),
	)

	return rec, progErr
}

// deriveAccounts builds the account list a program sees.
//
// The target is writable only if it is unowned or already owned by the
// invoked program, so one program can never rewrite another's account.
// A non-zero signer is appended as a second, signing account.
func deriveAccounts(acct ir.StoredAccount, programID, signer ir.Identity, data []byte) []ir.Account {
	owned := acct.Owner == programID
	accounts := []ir.Account{{
		Context: ir.AccountContext{
			Identity:         acct.ID,
			Owner:            acct.Owner,
			IsOwnedByProgram: owned,
			IsWritable:       owned || acct.Owner.IsZero(),
		},
		Data: data,
	}}
	if !signer.IsZero() {
		accounts = append(accounts, ir.Account{
			Context: ir.AccountContext{
				Identity: signer,
				IsSigner: true,
			},
		})
	}
	return accounts
}

// CreateAccount allocates a zeroed, unowned account.
// size is the buffer length; the program's record size is the usual choice.
func (h *Host) CreateAccount(ctx context.Context, name string, size int) (ir.StoredAccount, error) {
	if size < 0 {
		return ir.StoredAccount{}, errors.Errorf("create account %q: negative size %d", name, size)
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	acct := ir.StoredAccount{
		ID:    ir.AccountIdentity(name),
		Name:  name,
		Owner: ir.SystemIdentity,
		Data:  make([]byte, size),
	}
	if err := h.store.CreateAccount(ctx, acct); err != nil {
		return ir.StoredAccount{}, err
	}

	h.logger.Info("account created", zap.String("account", name), zap.Int("size", size))
	return acct, nil
}

// Program returns the program registered under id.
func (h *Host) Program(id ir.Identity) (engine.Program, bool) {
	return h.registry.Lookup(id)
}

// AccountView is an account with its decoded record, for display.
type AccountView struct {
	Account ir.StoredAccount `json:"account"`
	Program string           `json:"program,omitempty"` // Owner's registry name, empty if unowned
	Record  any              `json:"record,omitempty"`  // Decoded record, nil if unowned
}

// Describe loads an account and decodes it with its owning program.
func (h *Host) Describe(ctx context.Context, name string) (AccountView, error) {
	acct, err := h.store.ReadAccountByName(ctx, name)
	if err != nil {
		return AccountView{}, errors.Wrap(err, "describe")
	}

	view := AccountView{Account: acct}
	if acct.Owner.IsZero() {
		return view, nil
	}

	p, ok := h.registry.Lookup(acct.Owner)
	if !ok {
		return view, nil
	}
	view.Program = p.Name()
	rec, err := p.Inspect(acct.Data)
	if err != nil {
		return view, errors.Wrapf(err, "describe %q", name)
	}
	view.Record = rec
	return view, nil
}

// Log returns the invocation log of one account in seq order.
func (h *Host) Log(ctx context.Context, name string) ([]ir.InvocationRecord, error) {
	acct, err := h.store.ReadAccountByName(ctx, name)
	if err != nil {
		return nil, errors.Wrap(err, "log")
	}
	return h.store.ReadInvocations(ctx, acct.ID)
}

// ProgramLog returns the invocation log of one program in seq order.
func (h *Host) ProgramLog(ctx context.Context, programID ir.Identity) ([]ir.InvocationRecord, error) {
	return h.store.ReadProgramInvocations(ctx, programID)
}

// Accounts lists all stored accounts.
func (h *Host) Accounts(ctx context.Context) ([]ir.StoredAccount, error) {
	return h.store.ListAccounts(ctx)
}
