package engine

import (
	"context"
	"log/slog"
	"slices"

	"github.com/mxyns/ietf-rfc-dep/internal/cache"
)

// Params returns the resolution parameters derived from the settings:
// configured depth, fetching enabled.
func (e *Engine) Params() cache.Params {
	return cache.Params{
		Depth:       e.settings.MaxDepth,
		Query:       true,
		Verbose:     e.verbose,
		Parallelism: e.settings.Parallelism,
	}
}

// Resolve starts a background resolution of target.
//
// If a run is pending, an error notification is recorded and
// cache.ErrAlreadyRunning is returned. Roots that are not cached are
// rejected with a NOT_CACHED error before anything moves.
func (e *Engine) Resolve(ctx context.Context, target cache.Target[string], params cache.Params) error {
	if e.resolver.Pending() {
		e.notify(LevelError, e.runToken(), "Resolve already pending")
		return cache.ErrAlreadyRunning
	}
	if !target.IsAll() {
		roots := target.Roots()
		if len(roots) == 0 {
			return &Error{Code: ErrCodeNothingToResolve, Message: "no root given"}
		}
		if missing := e.missing(roots); len(missing) > 0 {
			return newNotCachedError(missing)
		}
	}

	token := e.tokens.Generate()
	if err := e.resolver.Start(ctx, e.cache, target, params); err != nil {
		e.notify(LevelError, token, "Could not start resolve: %v", err)
		return err
	}
	e.run = &activeRun{token: token, target: target}
	e.notify(LevelInfo, token, "Resolving %s...", target)
	slog.Info("resolve started", "target", target, "depth", params.Depth, "query", params.Query, "run", token)
	return nil
}

// ResolveAll resolves every cached document with the default parameters.
func (e *Engine) ResolveAll(ctx context.Context) error {
	return e.Resolve(ctx, cache.All[string](), e.Params())
}

// Running reports whether a resolution is in flight.
func (e *Engine) Running() bool { return e.resolver.Running() }

// Pending reports whether a resolution was started and not yet collected.
func (e *Engine) Pending() bool { return e.resolver.Pending() }

// Tick advances the coordinator without blocking:
//  1. a finished run is collected and merged back
//  2. when idle, documents marked ToResolve start a new Multiple run with
//     the default parameters, and their marks are cleared
//
// It reports whether a run was collected.
func (e *Engine) Tick(ctx context.Context) (collected bool, err error) {
	if result, ok := e.resolver.Poll(e.cache); ok {
		e.finish(result)
		collected = true
	}
	if e.resolver.Pending() {
		return collected, nil
	}

	var marked []string
	for id, st := range e.cache.All() {
		if st.ToResolve {
			marked = append(marked, id)
			st.ToResolve = false
		}
	}
	if len(marked) == 0 {
		return collected, nil
	}
	return collected, e.Resolve(ctx, cache.Multiple(marked...), e.Params())
}

// Wait blocks until the pending run finishes, then collects it like Tick
// without starting a new one. ok is false when nothing was pending.
func (e *Engine) Wait(ctx context.Context) (cache.Result[string], bool, error) {
	result, ok, err := e.resolver.Wait(ctx, e.cache)
	if err != nil || !ok {
		return result, ok, err
	}
	e.finish(result)
	return result, true, nil
}

// Drain runs Tick and Wait until no run is pending and no document is
// marked ToResolve.
func (e *Engine) Drain(ctx context.Context) error {
	for {
		if _, err := e.Tick(ctx); err != nil {
			return err
		}
		if !e.resolver.Pending() {
			return nil
		}
		if _, _, err := e.Wait(ctx); err != nil {
			return err
		}
	}
}

// finish records the outcome of a collected run and retags the merged
// cache, whose foreground entries were not part of the run.
func (e *Engine) finish(result cache.Result[string]) {
	token := e.runToken()
	summary := RunSummary{Token: token, Result: result}
	if e.run != nil {
		summary.Target = e.run.target
	}
	e.history = append(e.history, summary)
	e.run = nil
	report := result.Report

	failed := make([]string, 0, len(report.Failed))
	for id := range report.Failed {
		failed = append(failed, id)
	}
	slices.Sort(failed)
	for _, id := range failed {
		e.notify(LevelError, token, "Could not fetch %s: %v", id, report.Failed[id])
	}

	e.updateRelations(false)

	if result.Err != nil {
		e.notify(LevelError, token, "Resolve stopped: %v", result.Err)
		slog.Warn("resolve stopped", "run", token, "error", result.Err)
		return
	}
	e.notify(LevelSuccess, token, "Resolve completed! (%d fetched, %d updated, %s after %d iterations)",
		len(report.Fetched), report.Changed, report.Halt, report.Iterations)
	slog.Info("resolve completed",
		"run", token,
		"iterations", report.Iterations,
		"halt", report.Halt,
		"fetched", len(report.Fetched),
		"failed", len(report.Failed),
		"changed", report.Changed,
	)
}

// RunSummary describes a collected run.
type RunSummary struct {
	Token  string
	Target cache.Target[string]
	Result cache.Result[string]
}

// History returns every collected run, oldest first.
func (e *Engine) History() []RunSummary {
	return append([]RunSummary(nil), e.history...)
}

func (e *Engine) runToken() string {
	if e.run == nil {
		return ""
	}
	return e.run.token
}

// Incomplete returns the ids of cached documents that still have unknown
// relations.
func (e *Engine) Incomplete() []string {
	ids := []string{}
	for id, st := range e.cache.All() {
		if st.UnknownRelationCount() > 0 {
			ids = append(ids, id)
		}
	}
	return ids
}
