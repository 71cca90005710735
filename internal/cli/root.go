package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/abacus/internal/config"
	"github.com/roach88/abacus/internal/ir"
	"github.com/roach88/abacus/internal/runtime"
	"github.com/roach88/abacus/internal/store"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose  bool
	Format   string // "json" | "text"
	Config   string // CUE config file; empty means ./abacus.cue if present
	Database string // Overrides the config's db
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the abacus CLI.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&RootOptions{})
}

// Execute runs the CLI with args and returns the process exit code.
// Errors the command did not already render are written in the selected
// format: the JSON envelope on stdout, or a text line on stderr.
func Execute(args []string, stdout, stderr io.Writer) int {
	opts := &RootOptions{}
	cmd := newRootCommand(opts)
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.Execute()
	if err == nil {
		return ExitSuccess
	}
	code := GetExitCode(err)

	var exitErr *ExitError
	isExit := errors.As(err, &exitErr)
	if isExit && exitErr.Reported {
		if opts.Format != "json" {
			fmt.Fprintf(stderr, "Error: %v\n", err)
		}
		return code
	}

	f := &OutputFormatter{Format: opts.Format, Writer: stdout, ErrWriter: stderr, Verbose: opts.Verbose}
	if f.Format != "json" {
		f.Writer = stderr
	}
	var details any
	if opts.Verbose && isExit && exitErr.Err != nil {
		details = fmt.Sprintf("%+v", exitErr.Err)
	}
	errCode := "E_FAILURE"
	if code == ExitCommandError {
		errCode = "E_COMMAND"
	}
	_ = f.Error(errCode, err.Error(), details)
	return code
}

func newRootCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "abacus",
		Short: "abacus - a local host for account programs",
		Long: `A local host that runs the calculator and counter programs against
accounts stored in SQLite, logging every invocation for replay.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging to stderr")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "CUE config file (default ./"+config.DefaultFile+" if present)")
	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "SQLite database (overrides config)")

	// Add subcommands
	cmd.AddCommand(NewAccountCommand(opts))
	cmd.AddCommand(NewInvokeCommand(opts))
	cmd.AddCommand(NewShowCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))
	cmd.AddCommand(NewReplayCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// loadConfig resolves the configuration: --config, else ./abacus.cue if it
// exists, else the defaults. --db overrides the configured database.
func (o *RootOptions) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	switch {
	case o.Config != "":
		loaded, err := config.Load(o.Config)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	default:
		if _, err := os.Stat(config.DefaultFile); err == nil {
			loaded, err := config.Load(config.DefaultFile)
			if err != nil {
				return nil, err
			}
			cfg = loaded
		} else {
			cfg = config.Default()
		}
	}

	if o.Database != "" {
		cfg.DB = o.Database
	}
	return cfg, nil
}

// newLogger builds the CLI logger writing to w. --verbose selects zap's
// development encoder at debug level; otherwise the configured level and
// encoding apply.
func (o *RootOptions) newLogger(w io.Writer, cfg *config.Config) (*zap.Logger, error) {
	if o.Verbose {
		enc := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), zapcore.DebugLevel), zap.Development()), nil
	}

	level, err := zapcore.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, errors.Wrap(err, "log level")
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	var enc zapcore.Encoder
	if cfg.Log.Encoding == "json" {
		enc = zapcore.NewJSONEncoder(encCfg)
	} else {
		enc = zapcore.NewConsoleEncoder(encCfg)
	}
	return zap.New(zapcore.NewCore(enc, zapcore.AddSync(w), level)), nil
}

// session is an open host plus what built it.
type session struct {
	cfg    *config.Config
	store  *store.Store
	host   *runtime.Host
	logger *zap.Logger
}

// Close flushes the logger and closes the store.
func (s *session) Close() error {
	_ = s.logger.Sync()
	return s.store.Close()
}

// openSession loads config, opens the store and builds the host. Failures
// are command errors (exit 2).
func (o *RootOptions) openSession(ctx context.Context, cmd *cobra.Command) (*session, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	logger, err := o.newLogger(cmd.ErrOrStderr(), cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build logger", err)
	}

	registry, err := cfg.Registry(logger)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to build program registry", err)
	}

	st, err := store.Open(cfg.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}

	host, err := runtime.New(ctx, st, registry, runtime.WithLogger(logger))
	if err != nil {
		st.Close()
		return nil, WrapExitError(ExitCommandError, "failed to start host", err)
	}

	logger.Debug("session opened", zap.String("db", cfg.DB), zap.Strings("programs", cfg.ProgramNames()))
	return &session{cfg: cfg, store: st, host: host, logger: logger}, nil
}

// programName maps an owner id back to its configured name, or "" if no
// configured program owns it.
func (s *session) programName(id ir.Identity) string {
	for _, name := range s.cfg.ProgramNames() {
		if pid, err := s.cfg.ProgramID(name); err == nil && pid == id {
			return name
		}
	}
	return ""
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}
