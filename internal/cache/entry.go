package cache

import "context"

// Relational is implemented by values that hold References to other entries.
//
// Implementations must keep UpdateReferences consistent with the counts:
// the returned delta equals the unknown count before the call minus the
// unknown count after it.
type Relational[K comparable] interface {
	// UnknownRelations returns every referenced key currently tagged Unknown.
	UnknownRelations() map[K]struct{}

	// UpdateReferences retags every reference as Cached when isKnown reports
	// its key present and Unknown otherwise. It returns the number of
	// references that became Cached minus the number that became Unknown.
	UpdateReferences(isKnown func(K) bool) int

	// UnknownRelationCount counts references tagged Unknown without
	// building the key set.
	UnknownRelationCount() int
}

// Fetcher builds a complete value from its key alone.
//
// Errors are per key: a failed fetch leaves the key Unknown and never aborts
// a resolution.
type Fetcher[K comparable, V any] interface {
	Fetch(ctx context.Context, key K) (V, error)
}

// FetcherFunc adapts a function to the Fetcher interface.
type FetcherFunc[K comparable, V any] func(ctx context.Context, key K) (V, error)

// Fetch calls f(ctx, key).
func (f FetcherFunc[K, V]) Fetch(ctx context.Context, key K) (V, error) {
	return f(ctx, key)
}

// ChangeFunc is called for every entry whose tags changed during a rewrite
// pass, with the signed delta returned by UpdateReferences.
type ChangeFunc[K comparable, V any] func(key K, value V, delta int)
