// Package config loads host configuration from CUE.
//
// A configuration file is unified with the embedded #Config schema, so
// unknown fields and invalid values fail at load time with CUE positions,
// and omitted fields take the schema defaults.
package config

import (
	_ "embed"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/roach88/abacus/internal/engine"
	"github.com/roach88/abacus/internal/ir"
)

//go:embed schema.cue
var schemaCUE string

// DefaultFile is the configuration file the CLI looks for in the working
// directory when --config is not given.
const DefaultFile = "abacus.cue"

// Program kinds.
const (
	KindCalculator = "calculator"
	KindCounter    = "counter"
)

// Config is the decoded host configuration.
type Config struct {
	DB       string             `json:"db"`
	Log      LogConfig          `json:"log"`
	Programs map[string]Program `json:"programs"`
}

// LogConfig selects the zap level and encoding.
type LogConfig struct {
	Level    string `json:"level"`
	Encoding string `json:"encoding"`
}

// Program is one registry entry.
type Program struct {
	Kind string `json:"kind"`
	ID   string `json:"id,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg, err := Parse(nil, "default")
	if err != nil {
		// The embedded schema is broken; nothing can run.
		panic(err)
	}
	return cfg
}

// Load reads and validates the configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	return Parse(data, path)
}

// Parse validates CUE source against the schema and decodes it.
// filename is used in error positions only. Empty src yields the defaults.
func Parse(src []byte, filename string) (*Config, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, errors.Wrap(err, "compile config schema")
	}

	file := ctx.CompileBytes(src, cue.Filename(filename))
	if err := file.Err(); err != nil {
		return nil, errors.Wrapf(err, "compile %s", filename)
	}

	value := schema.LookupPath(cue.ParsePath("#Config")).Unify(file)
	if err := value.Validate(); err != nil {
		return nil, errors.Wrapf(err, "validate %s", filename)
	}

	var cfg Config
	if err := value.Decode(&cfg); err != nil {
		return nil, errors.Wrapf(err, "decode %s", filename)
	}
	if len(cfg.Programs) == 0 {
		cfg.Programs = map[string]Program{
			KindCalculator: {Kind: KindCalculator},
			KindCounter:    {Kind: KindCounter},
		}
	}
	return &cfg, nil
}

// ProgramID resolves the id of the program registered under name.
func (c *Config) ProgramID(name string) (ir.Identity, error) {
	p, ok := c.Programs[name]
	if !ok {
		return ir.Identity{}, errors.Errorf("program %q is not configured", name)
	}
	if p.ID == "" {
		return ir.ProgramIdentity(name), nil
	}
	id, err := ir.ParseIdentity(p.ID)
	if err != nil {
		return ir.Identity{}, errors.Wrapf(err, "program %q", name)
	}
	return id, nil
}

// ProgramNames returns the configured program names, sorted.
func (c *Config) ProgramNames() []string {
	names := make([]string, 0, len(c.Programs))
	for name := range c.Programs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Registry builds a program registry from the configuration. Programs log
// through logger, named after their registry entry.
func (c *Config) Registry(logger *zap.Logger) (*engine.Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	r := engine.NewRegistry()
	for _, name := range c.ProgramNames() {
		id, err := c.ProgramID(name)
		if err != nil {
			return nil, err
		}

		opt := engine.WithLogger(logger.Named(name))
		var p engine.Program
		switch kind := c.Programs[name].Kind; kind {
		case KindCalculator:
			p = engine.NewCalculator(opt)
		case KindCounter:
			p = engine.NewCounter(opt)
		default:
			return nil, errors.Errorf("program %q: unknown kind %q", name, kind)
		}

		if err := r.Register(id, p); err != nil {
			return nil, errors.Wrapf(err, "program %q", name)
		}
	}
	return r, nil
}
