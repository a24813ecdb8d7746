package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mxyns/ietf-rfc-dep/internal/cache"
	"github.com/mxyns/ietf-rfc-dep/internal/doc"
	"github.com/mxyns/ietf-rfc-dep/internal/engine"
)

// ResolveOptions holds flags for the resolve command.
type ResolveOptions struct {
	*RootOptions
	Depth    int
	NoQuery  bool
	Selected bool
}

// RunView is the output form of a collected resolution.
type RunView struct {
	RunToken   string            `json:"run_token"`
	Target     string            `json:"target"`
	Halt       string            `json:"halt"`
	Iterations int               `json:"iterations"`
	Changed    int               `json:"changed"`
	Fetched    []string          `json:"fetched"`
	Failed     map[string]string `json:"failed,omitempty"`
}

// ResolveView is the output of the resolve command.
type ResolveView struct {
	Runs       []RunView `json:"runs"`
	Incomplete []string  `json:"incomplete"`
}

func newRunView(run engine.RunSummary) RunView {
	report := run.Result.Report
	v := RunView{
		RunToken:   run.Token,
		Target:     run.Target.String(),
		Halt:       report.Halt.String(),
		Iterations: report.Iterations,
		Changed:    report.Changed,
		Fetched:    append([]string{}, report.Fetched...),
	}
	if len(report.Failed) > 0 {
		v.Failed = make(map[string]string, len(report.Failed))
		for id, err := range report.Failed {
			v.Failed[id] = err.Error()
		}
	}
	return v
}

// NewResolveCommand creates the resolve command.
func NewResolveCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ResolveOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "resolve [id...]",
		Short: "Fetch and link the documents referenced from the cache",
		Long: `Resolve the relations of cached documents: referenced documents that
are not cached are fetched from the registry, and references are retagged
until nothing new is found or the depth limit is reached.

Without ids every cached document is a root. With --selected the selected
documents are resolved with the configured parameters.

Example:
  rfcdep resolve rfc8200
  rfcdep resolve --depth 2
  rfcdep resolve --no-query`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.Selected && (len(args) > 0 || cmd.Flags().Changed("depth") || opts.NoQuery) {
				return NewExitError(ExitCommandError, "--selected cannot be combined with ids, --depth, or --no-query")
			}
			return runResolve(cmd, opts, args)
		},
	}

	cmd.Flags().IntVar(&opts.Depth, "depth", 0, "maximum iterations, 0 for unbounded (default from config)")
	cmd.Flags().BoolVar(&opts.NoQuery, "no-query", false, "only retag against cached documents, fetch nothing")
	cmd.Flags().BoolVar(&opts.Selected, "selected", false, "resolve the selected documents")

	return cmd
}

func runResolve(cmd *cobra.Command, opts *ResolveOptions, args []string) error {
	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx, opts.RootOptions, cmd)
	if err != nil {
		return err
	}
	defer s.close()
	before := len(s.engine.History())

	if opts.Selected {
		if _, err := s.engine.MarkToResolve(); err != nil {
			return s.fail(ExitFailure, "failed to resolve", err)
		}
		err = s.engine.Drain(ctx)
	} else {
		params := s.engine.Params()
		if cmd.Flags().Changed("depth") {
			params.Depth = opts.Depth
		}
		params.Query = !opts.NoQuery
		if err := s.engine.Resolve(ctx, targetOf(args), params); err != nil {
			return s.fail(ExitFailure, "failed to resolve", err)
		}
		_, _, err = s.engine.Wait(ctx)
	}
	if err != nil {
		// The worker sees the same canceled context, so it stops at its next
		// check. Collect it before saving or the cache would be empty.
		slog.Warn("resolve interrupted, collecting partial result", "error", err)
		if _, _, waitErr := s.engine.Wait(context.WithoutCancel(ctx)); waitErr != nil {
			return WrapExitError(ExitCommandError, "failed to collect resolve", waitErr)
		}
	}
	if err := s.save(context.WithoutCancel(ctx)); err != nil {
		return err
	}

	view := ResolveView{Incomplete: s.engine.Incomplete()}
	var stopped error
	for _, run := range s.engine.History()[before:] {
		view.Runs = append(view.Runs, newRunView(run))
		if run.Result.Err != nil && stopped == nil {
			stopped = run.Result.Err
		}
	}
	if stopped != nil {
		return s.fail(ExitFailure, "resolve stopped", stopped)
	}
	return s.succeed(view, func(w io.Writer) {
		if len(view.Incomplete) == 0 {
			fmt.Fprintln(w, "All relations are cached.")
			return
		}
		fmt.Fprintf(w, "%d documents have missing dependencies: %v\n", len(view.Incomplete), view.Incomplete)
	})
}

// targetOf maps command arguments to a resolve target.
func targetOf(args []string) cache.Target[string] {
	ids := make([]string, len(args))
	for i, arg := range args {
		ids[i] = doc.NameToID(arg)
	}
	switch len(ids) {
	case 0:
		return cache.All[string]()
	case 1:
		return cache.Single(ids[0])
	default:
		return cache.Multiple(ids...)
	}
}
