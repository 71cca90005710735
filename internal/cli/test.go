package cli

import (
	"fmt"
	"io"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/roach88/abacus/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Update bool   // regenerate golden files
	Filter string // scenario filter (glob pattern)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run scenario files against a fresh in-memory host",
		Long: `Run the YAML scenarios under a directory, each against a fresh
in-memory host, checking step expectations, assertions and the golden
trace in <dir>/golden/<name>.golden when one exists.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  abacus test ./testdata/scenarios
  abacus test ./testdata/scenarios --filter "counter_*"
  abacus test ./testdata/scenarios --update
  abacus test ./testdata/scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, dir string, cmd *cobra.Command) error {
	files, err := harness.FindScenarios(dir, opts.Filter)
	var dirErr *harness.ScenarioDirError
	if errors.As(err, &dirErr) {
		return WrapExitError(ExitCommandError, "scenarios directory not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	cfg, err := opts.loadConfig()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	runOpts := []harness.Option{harness.WithConfig(cfg)}
	if opts.Verbose {
		logger, err := opts.newLogger(cmd.ErrOrStderr(), cfg)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to build logger", err)
		}
		defer func() { _ = logger.Sync() }()
		runOpts = append(runOpts, harness.WithLogger(logger))
	}

	f := opts.formatter(cmd)
	f.VerboseLog("running %d scenarios from %s", len(files), dir)
	result := harness.RunSuite(files, opts.Update, runOpts...)

	text := func(w io.Writer) {
		if result.Total == 0 {
			fmt.Fprintln(w, "No scenarios found.")
			return
		}
		for _, s := range result.Scenarios {
			switch {
			case s.Pass && s.GoldenUpdated:
				fmt.Fprintf(w, "\u2713 %s (golden updated)\n", s.Name)
			case s.Pass:
				fmt.Fprintf(w, "\u2713 %s\n", s.Name)
			default:
				fmt.Fprintf(w, "\u2717 %s\n", s.Name)
				for _, e := range s.Errors {
					fmt.Fprintf(w, "  %s\n", e)
				}
			}
		}
		fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
	}

	if result.Failed == 0 {
		return f.Render(result, text)
	}

	message := fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total)
	if err := f.Failure("E_TEST_FAILED", message, result, text); err != nil {
		return err
	}
	return reportedError(ExitFailure, message, nil)
}
