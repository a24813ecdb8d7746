package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mxyns/ietf-rfc-dep/internal/harness"
)

// NewTestCommand creates the test command.
func NewTestCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run coordinator scenarios",
		Long: `Run every scenario (*.yaml) of a directory against an in-memory
registry and database, checking step outcomes and final state assertions.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing directory, no scenario)

Examples:
  rfcdep test ./scenarios
  rfcdep test ./scenarios --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	return cmd
}

func runTests(opts *RootOptions, scenariosDir string, cmd *cobra.Command) error {
	configureLogging(cmd.ErrOrStderr(), opts.Verbose)

	suite, err := harness.RunSuite(scenariosDir)
	if err != nil {
		var notFound *harness.ScenarioNotFoundError
		if errors.As(err, &notFound) {
			return WrapExitError(ExitCommandError, "no scenarios", err)
		}
		return WrapExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir), err)
	}

	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(suite); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
	} else {
		for _, f := range suite.Failures {
			fmt.Fprintf(w, "✗ %s (%s)\n", f.Scenario, f.Path)
			for _, e := range f.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", suite.Passed, suite.Failed, suite.Total)
	}

	if suite.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenarios failed", suite.Failed))
	}
	return nil
}
