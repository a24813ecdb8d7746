package cache

import (
	"cmp"
	"context"
	"errors"
	"sync"
)

// ErrAlreadyRunning is returned by Resolver.Start while a resolution is in
// flight. Requests are rejected, not queued.
var ErrAlreadyRunning = errors.New("cache: resolve already pending")

// Result is the outcome of a background resolution.
type Result[K cmp.Ordered] struct {
	Report Report[K]
	Err    error
}

// Resolver runs at most one Resolve at a time on a background goroutine.
//
// Start moves the caller's cache into the worker; Poll merges it back once
// the worker is done. While a run is in flight the caller's cache is empty
// (or holds only entries added since Start, which the merge keeps unless the
// worker produced the same key).
//
// Thread-safety: Start, Poll, Wait, and Running may be called from any
// goroutine, but the typical caller is a single coordinating loop. The
// change callback runs on the worker goroutine and only ever sees values
// owned by the worker.
type Resolver[K cmp.Ordered, V Relational[K]] struct {
	fetcher  Fetcher[K, V]
	onChange ChangeFunc[K, V]

	mu  sync.Mutex
	run *resolveRun[K, V]
}

type resolveRun[K cmp.Ordered, V Relational[K]] struct {
	done   chan struct{}
	cache  *Cache[K, V]
	result Result[K]
}

// NewResolver creates a resolver fetching through fetcher and reporting
// per-entry changes to onChange (may be nil).
func NewResolver[K cmp.Ordered, V Relational[K]](fetcher Fetcher[K, V], onChange ChangeFunc[K, V]) *Resolver[K, V] {
	return &Resolver[K, V]{fetcher: fetcher, onChange: onChange}
}

// Start begins resolving target over the contents of c in the background.
//
// Returns ErrAlreadyRunning if a previous run has not been collected by
// Poll or Wait yet. Otherwise every entry of c is moved to the worker and c
// is left empty.
//
// Roots are checked before anything moves, so a missing root panics on the
// caller's goroutine.
func (r *Resolver[K, V]) Start(ctx context.Context, c *Cache[K, V], target Target[K], params Params) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.run != nil {
		return ErrAlreadyRunning
	}
	if params.Query && r.fetcher == nil {
		panic("cache: resolve with Query requires a fetcher")
	}
	target.frontier(c.Has)

	run := &resolveRun[K, V]{
		done:  make(chan struct{}),
		cache: c.Take(),
	}
	r.run = run

	go func() {
		defer close(run.done)
		run.result.Report, run.result.Err = Resolve(ctx, run.cache, target, params, r.fetcher, r.onChange)
	}()
	return nil
}

// Running reports whether a run is in flight. A finished run that has not
// been collected yet is not running, but still blocks Start.
func (r *Resolver[K, V]) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.run == nil {
		return false
	}
	select {
	case <-r.run.done:
		return false
	default:
		return true
	}
}

// Pending reports whether a run has been started and not yet collected.
func (r *Resolver[K, V]) Pending() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.run != nil
}

// Poll collects a finished run without blocking. When the run is done, its
// cache is merged into dst (worker entries win on conflicts) and the result
// is returned with ok set. Otherwise ok is false and dst is untouched.
func (r *Resolver[K, V]) Poll(dst *Cache[K, V]) (Result[K], bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.run == nil {
		return Result[K]{}, false
	}
	select {
	case <-r.run.done:
	default:
		return Result[K]{}, false
	}
	return r.collect(dst), true
}

// Wait blocks until the pending run finishes or ctx is done, then collects it
// like Poll. ok is false when no run was pending.
func (r *Resolver[K, V]) Wait(ctx context.Context, dst *Cache[K, V]) (result Result[K], ok bool, err error) {
	r.mu.Lock()
	run := r.run
	r.mu.Unlock()

	if run == nil {
		return Result[K]{}, false, nil
	}
	select {
	case <-run.done:
	case <-ctx.Done():
		return Result[K]{}, false, ctx.Err()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.run != run {
		// Collected by a concurrent Poll.
		return run.result, true, nil
	}
	return r.collect(dst), true, nil
}

// collect merges the finished run into dst. r.mu must be held.
func (r *Resolver[K, V]) collect(dst *Cache[K, V]) Result[K] {
	run := r.run
	r.run = nil
	dst.Merge(run.cache)
	return run.result
}
