package cache

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"
)

// Target selects the roots of a resolution.
type Target[K cmp.Ordered] struct {
	all   bool
	roots []K
}

// All targets every cached entry. Each iteration rescans the whole cache.
func All[K cmp.Ordered]() Target[K] {
	return Target[K]{all: true}
}

// Single targets one root. Later iterations only scan the entries whose
// references changed state in the previous one.
func Single[K cmp.Ordered](key K) Target[K] {
	return Target[K]{roots: []K{key}}
}

// Multiple targets several roots, with the same frontier rule as Single.
func Multiple[K cmp.Ordered](keys ...K) Target[K] {
	return Target[K]{roots: slices.Clone(keys)}
}

// IsAll reports whether the target is All.
func (t Target[K]) IsAll() bool { return t.all }

// Roots returns the root keys of a Single or Multiple target.
func (t Target[K]) Roots() []K { return slices.Clone(t.roots) }

func (t Target[K]) String() string {
	switch {
	case t.all:
		return "All"
	case len(t.roots) == 1:
		return fmt.Sprintf("Single(%v)", t.roots[0])
	default:
		return fmt.Sprintf("Multiple(%v)", t.roots)
	}
}

// frontier returns the initial frontier, or nil for All.
// Panics if a root is not cached: resolving from an absent root is a caller bug.
func (t Target[K]) frontier(has func(K) bool) map[K]struct{} {
	if t.all {
		return nil
	}
	frontier := make(map[K]struct{}, len(t.roots))
	for _, root := range t.roots {
		if !has(root) {
			panic(fmt.Sprintf("cache: resolve root %v is not cached", root))
		}
		frontier[root] = struct{}{}
	}
	return frontier
}

// Params controls a resolution.
type Params struct {
	// Depth bounds the number of iterations. Zero or less means unbounded.
	Depth int

	// Query fetches newly discovered keys. When false, references are only
	// retagged against the entries already cached.
	Query bool

	// Verbose logs per-iteration diagnostics at Info instead of Debug.
	Verbose bool

	// Parallelism limits concurrent fetches. Zero or less means no limit.
	Parallelism int
}

// Halt says why a resolution stopped. None of these is an error.
type Halt int

const (
	// HaltConverged: discovery found no unknown reference in the frontier.
	HaltConverged Halt = iota
	// HaltMaxDepth: Params.Depth iterations ran. Unknown references may
	// remain that more iterations would resolve.
	HaltMaxDepth
	// HaltStalled: an All resolution fetched nothing and changed no tag, so
	// every further iteration would repeat the last one.
	HaltStalled
	// HaltCanceled: the context was canceled between iterations.
	HaltCanceled
)

func (h Halt) String() string {
	switch h {
	case HaltConverged:
		return "converged"
	case HaltMaxDepth:
		return "max_depth"
	case HaltStalled:
		return "stalled"
	case HaltCanceled:
		return "canceled"
	default:
		return fmt.Sprintf("Halt(%d)", int(h))
	}
}

// Report summarises a resolution.
type Report[K cmp.Ordered] struct {
	// Iterations is the number of rewrite passes performed.
	Iterations int
	Halt       Halt
	// Fetched lists the keys fetched and inserted, in fetch order.
	Fetched []K
	// Failed holds the fetch error of every key that could not be fetched.
	// Failed keys are not retried within the same resolution.
	Failed map[K]error
	// Changed counts change callbacks across all iterations.
	Changed int
}

// Resolve discovers, optionally fetches, and links the entries referenced
// from target, iterating until convergence or params.Depth.
//
// onChange, when non-nil, is called for every entry whose unknown count
// changed in a rewrite pass. Fetch errors are collected in the report; the
// returned error is non-nil only when ctx is canceled.
//
// Resolve panics if a Single or Multiple root is not cached, or if
// params.Query is set without a fetcher.
func Resolve[K cmp.Ordered, V Relational[K]](
	ctx context.Context,
	c *Cache[K, V],
	target Target[K],
	params Params,
	fetcher Fetcher[K, V],
	onChange ChangeFunc[K, V],
) (Report[K], error) {
	if params.Query && fetcher == nil {
		panic("cache: resolve with Query requires a fetcher")
	}

	logf := slog.Debug
	if params.Verbose {
		logf = slog.Info
	}
	logf("resolving dependencies", "target", target, "depth", params.Depth, "query", params.Query)

	report := Report[K]{Failed: make(map[K]error)}
	frontier := target.frontier(c.Has)

	for {
		if err := ctx.Err(); err != nil {
			report.Halt = HaltCanceled
			return report, err
		}

		// The first iteration rewrites even when discovery is empty, so that
		// Cached tags left stale by removals are corrected.
		toUpdate := discover(c, frontier, report.Failed)
		if len(toUpdate) == 0 && report.Iterations > 0 {
			report.Halt = HaltConverged
			logf("early stop, no new entries found", "iterations", report.Iterations)
			return report, nil
		}

		var fetched []K
		if params.Query && len(toUpdate) > 0 {
			fetched = acquire(ctx, c, toUpdate, params.Parallelism, fetcher, &report)
			if err := ctx.Err(); err != nil {
				report.Halt = HaltCanceled
				return report, err
			}
		}

		// Next frontier: only the entries whose tags changed in this pass.
		var next map[K]struct{}
		if frontier != nil {
			next = make(map[K]struct{})
		}

		known := make(map[K]struct{}, c.Len())
		for _, key := range c.keys {
			known[key] = struct{}{}
		}
		changed := rewrite(c, func(key K) bool {
			_, ok := known[key]
			return ok
		}, func(key K, value V, delta int) {
			if next != nil {
				next[key] = struct{}{}
			}
			if onChange != nil {
				onChange(key, value, delta)
			}
		})
		report.Changed += changed
		if frontier != nil {
			frontier = next
		}

		report.Iterations++
		logf("resolve iteration done",
			"depth", report.Iterations,
			"candidates", len(toUpdate),
			"fetched", len(fetched),
			"changed", changed,
		)

		if len(toUpdate) == 0 && changed == 0 {
			report.Halt = HaltConverged
			logf("early stop, no new entries found", "iterations", report.Iterations)
			return report, nil
		}
		if params.Depth > 0 && report.Iterations >= params.Depth {
			report.Halt = HaltMaxDepth
			logf("reached max depth", "max_depth", params.Depth)
			return report, nil
		}
		if frontier == nil && len(fetched) == 0 && changed == 0 {
			report.Halt = HaltStalled
			logf("stop, unknown references cannot be resolved without fetching", "iterations", report.Iterations)
			return report, nil
		}
	}
}

// UpdateRelations retags every reference in c against the keys currently
// cached, without discovery or fetching. It returns the number of entries
// that changed.
//
// Callers run it after Merge, Retain, Remove, or loading a snapshot so that
// tags reflect the new key set.
func UpdateRelations[K cmp.Ordered, V Relational[K]](
	c *Cache[K, V],
	onChange ChangeFunc[K, V],
) int {
	return rewrite(c, c.Has, func(key K, value V, delta int) {
		if onChange != nil {
			onChange(key, value, delta)
		}
	})
}

// discover unions the unknown relations of the frontier entries, or of every
// entry when frontier is nil. Keys whose fetch already failed are skipped.
func discover[K cmp.Ordered, V Relational[K]](
	c *Cache[K, V],
	frontier map[K]struct{},
	failed map[K]error,
) map[K]struct{} {
	toUpdate := make(map[K]struct{})
	collect := func(v V) {
		for key := range v.UnknownRelations() {
			if _, skip := failed[key]; !skip {
				toUpdate[key] = struct{}{}
			}
		}
	}

	if frontier == nil {
		for _, v := range c.All() {
			collect(v)
		}
		return toUpdate
	}
	for key := range frontier {
		if v, ok := c.Get(key); ok {
			collect(v)
		}
	}
	return toUpdate
}

// acquire fetches every candidate not yet cached, in parallel, caches the
// successes, and returns their keys. Failures are logged and recorded in
// report.Failed; they never stop the other fetches.
func acquire[K cmp.Ordered, V Relational[K]](
	ctx context.Context,
	c *Cache[K, V],
	candidates map[K]struct{},
	parallelism int,
	fetcher Fetcher[K, V],
	report *Report[K],
) []K {
	missing := make([]K, 0, len(candidates))
	for key := range candidates {
		if !c.Has(key) {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	slices.Sort(missing)

	values := make([]V, len(missing))
	errs := make([]error, len(missing))

	var g errgroup.Group
	if parallelism > 0 {
		g.SetLimit(parallelism)
	}
	for i, key := range missing {
		g.Go(func() error {
			values[i], errs[i] = fetcher.Fetch(ctx, key)
			return nil // fetch errors are per key
		})
	}
	_ = g.Wait()

	var fetched []K
	for i, key := range missing {
		if errs[i] != nil {
			slog.Warn("fetch failed", "key", key, "error", errs[i])
			report.Failed[key] = errs[i]
			continue
		}
		c.Put(key, values[i])
		report.Fetched = append(report.Fetched, key)
		fetched = append(fetched, key)
	}
	return fetched
}

// rewrite calls UpdateReferences on every entry in key order and reports the
// entries with a non-zero delta. It returns how many entries changed.
func rewrite[K cmp.Ordered, V Relational[K]](
	c *Cache[K, V],
	isKnown func(K) bool,
	onChange func(K, V, int),
) int {
	changed := 0
	for _, key := range c.Keys() {
		v, ok := c.Get(key)
		if !ok {
			continue
		}
		if delta := v.UpdateReferences(isKnown); delta != 0 {
			changed++
			onChange(key, v, delta)
		}
	}
	return changed
}
