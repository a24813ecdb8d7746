package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/mxyns/ietf-rfc-dep/internal/cache"
	"github.com/mxyns/ietf-rfc-dep/internal/config"
	"github.com/mxyns/ietf-rfc-dep/internal/doc"
	"github.com/mxyns/ietf-rfc-dep/internal/engine"
	"github.com/mxyns/ietf-rfc-dep/internal/registry"
	"github.com/mxyns/ietf-rfc-dep/internal/store"
	"github.com/mxyns/ietf-rfc-dep/internal/testutil"
)

// Harness executes one scenario.
type Harness struct {
	store    *store.Store
	engine   *engine.Engine
	registry *testutil.CountingRegistry
	clock    *testutil.DeterministicClock
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
//  1. Build the registry from the scenario documents
//  2. Create the coordinator with deterministic helpers
//  3. Execute steps, checking each against its expect clause
//  4. Collect a run still pending, then snapshot the final state
//  5. Evaluate assertions
//
// An error is returned only when the scenario cannot be set up; step and
// assertion failures are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	mem := registry.NewMemory()
	for _, spec := range scenario.Registry {
		d, err := spec.Document()
		if err != nil {
			return nil, fmt.Errorf("failed to build registry: %w", err)
		}
		mem.Add(d)
	}
	reg := testutil.NewCountingRegistry(mem)
	for _, id := range scenario.Fail {
		reg.FailWith(id, nil)
	}

	settings := config.Default()
	if o := scenario.Settings; o != nil {
		if o.MaxDepth != nil {
			settings.MaxDepth = *o.MaxDepth
		}
		if o.Parallelism != nil {
			settings.Parallelism = *o.Parallelism
		}
	}
	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	clock := testutil.NewDeterministicClock()
	h := &Harness{
		store:    st,
		registry: reg,
		clock:    clock,
		engine: engine.New(reg, settings,
			engine.WithClock(clock),
			engine.WithRunTokens(testutil.NewFixedRunToken(scenario.RunToken)),
		),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	ctx := context.Background()
	result := NewResult()

	for i, step := range scenario.Steps {
		err := h.execute(ctx, step)
		outcome := outcomeOf(err)
		result.Steps = append(result.Steps, StepRecord{Op: step.Op, IDs: step.IDs, Outcome: outcome})

		switch {
		case step.Expect != nil && outcome != step.Expect.Error:
			result.AddError(fmt.Sprintf("steps[%d] %s: expected error %s, got %s", i, step.Op, step.Expect.Error, describe(err)))
		case step.Expect == nil && err != nil:
			result.AddError(fmt.Sprintf("steps[%d] %s: unexpected error: %v", i, step.Op, err))
		}
		h.logger.Info("scenario step done", "step", i, "op", step.Op, "outcome", outcome)
	}

	if h.engine.Pending() {
		if _, _, err := h.engine.Wait(ctx); err != nil {
			return nil, fmt.Errorf("failed to collect pending run: %w", err)
		}
	}
	h.snapshot(result)

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// execute runs one step against the coordinator.
func (h *Harness) execute(ctx context.Context, step Step) error {
	e := h.engine
	switch step.Op {
	case OpImport:
		for _, id := range step.IDs {
			if _, err := e.ImportByID(ctx, id); err != nil {
				return err
			}
		}
		return nil
	case OpRemove:
		return e.Remove(step.IDs...)
	case OpRemoveSelected:
		e.RemoveSelected()
		return nil
	case OpSelect:
		_, err := e.Select(step.IDs...)
		return err
	case OpDeselect:
		_, err := e.Deselect(step.IDs...)
		return err
	case OpMarkRead, OpMarkUnread:
		for _, id := range step.IDs {
			if err := e.MarkRead(id, step.Op == OpMarkRead); err != nil {
				return err
			}
		}
		return nil
	case OpMarkToResolve:
		_, err := e.MarkToResolve(step.IDs...)
		return err
	case OpResolve:
		return e.Resolve(ctx, targetOf(step), h.paramsOf(step))
	case OpTick:
		_, err := e.Tick(ctx)
		return err
	case OpWait:
		_, _, err := e.Wait(ctx)
		return err
	case OpDrain:
		return e.Drain(ctx)
	case OpReset:
		return e.Reset()
	case OpSnapshot:
		return h.saveAndReload(ctx)
	default:
		return fmt.Errorf("unknown op %q", step.Op)
	}
}

func targetOf(step Step) cache.Target[string] {
	ids := make([]string, len(step.IDs))
	for i, id := range step.IDs {
		ids[i] = doc.NameToID(id)
	}
	switch step.Target {
	case "single":
		return cache.Single(ids[0])
	case "multiple":
		return cache.Multiple(ids...)
	default:
		return cache.All[string]()
	}
}

func (h *Harness) paramsOf(step Step) cache.Params {
	params := h.engine.Params()
	if step.Depth != nil {
		params.Depth = *step.Depth
	}
	params.Query = !step.NoQuery
	return params
}

// saveAndReload round-trips the cache through the store, as a restart
// of the command-line tool would.
func (h *Harness) saveAndReload(ctx context.Context) error {
	if h.engine.Pending() {
		return h.engine.Replace(nil, false)
	}
	if err := h.store.SaveCache(ctx, h.engine.Cache()); err != nil {
		return err
	}
	loaded, err := h.store.LoadCache(ctx)
	if err != nil {
		return err
	}
	return h.engine.Replace(loaded, false)
}

// snapshot copies the final coordinator state into result.
func (h *Harness) snapshot(result *Result) {
	result.Notifications = append(result.Notifications, h.engine.Notifications()...)

	for _, run := range h.engine.History() {
		report := run.Result.Report
		failed := make([]string, 0, len(report.Failed))
		for id := range report.Failed {
			failed = append(failed, id)
		}
		slices.Sort(failed)
		fetched := append([]string{}, report.Fetched...)
		result.Runs = append(result.Runs, RunRecord{
			Token:      run.Token,
			Target:     run.Target.String(),
			Halt:       report.Halt.String(),
			Iterations: report.Iterations,
			Changed:    report.Changed,
			Fetched:    fetched,
			Failed:     failed,
		})
	}

	for id, st := range h.engine.Cache().All() {
		refs := []string{}
		for _, ref := range st.References() {
			refs = append(refs, ref.String())
		}
		result.Documents = append(result.Documents, DocumentRecord{
			ID:          id,
			MissingDeps: st.MissingDeps,
			IsRead:      st.IsRead,
			IsSelected:  st.IsSelected,
			References:  refs,
		})
	}

	result.FetchCounts = h.registry.Counts()
}

// outcomeOf maps a step error to its code.
func outcomeOf(err error) string {
	if err == nil {
		return "ok"
	}
	var engErr *engine.Error
	if errors.As(err, &engErr) {
		return string(engErr.Code)
	}
	var fetchErr *registry.FetchError
	if errors.As(err, &fetchErr) {
		return string(fetchErr.Code)
	}
	if errors.Is(err, cache.ErrAlreadyRunning) {
		return "ALREADY_RUNNING"
	}
	return "ERROR"
}

func describe(err error) string {
	if err == nil {
		return "none"
	}
	return fmt.Sprintf("%s (%v)", outcomeOf(err), err)
}
