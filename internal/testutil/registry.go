package testutil

import (
	"context"
	"fmt"
	"maps"
	"sync"

	"github.com/mxyns/ietf-rfc-dep/internal/doc"
	"github.com/mxyns/ietf-rfc-dep/internal/registry"
)

// CountingRegistry wraps a registry, counts fetches per id, and can be
// told to fail chosen ids.
//
// Thread-safety: safe for concurrent use; the resolver fetches in
// parallel.
type CountingRegistry struct {
	registry.Registry

	mu     sync.Mutex
	counts map[string]int
	fail   map[string]error
}

var _ registry.Registry = (*CountingRegistry)(nil)

// NewCountingRegistry wraps inner.
func NewCountingRegistry(inner registry.Registry) *CountingRegistry {
	return &CountingRegistry{
		Registry: inner,
		counts:   make(map[string]int),
		fail:     make(map[string]error),
	}
}

// FailWith makes every later fetch of id return err. A nil err uses a
// generic injected failure.
func (r *CountingRegistry) FailWith(id string, err error) {
	if err == nil {
		err = fmt.Errorf("injected failure for %s", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fail[doc.NameToID(id)] = err
}

func (r *CountingRegistry) Fetch(ctx context.Context, id string) (*doc.State, error) {
	id = doc.NameToID(id)

	r.mu.Lock()
	r.counts[id]++
	err := r.fail[id]
	r.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return r.Registry.Fetch(ctx, id)
}

// Count returns how many times id was fetched.
func (r *CountingRegistry) Count(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[doc.NameToID(id)]
}

// Counts returns a copy of every fetch count.
func (r *CountingRegistry) Counts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return maps.Clone(r.counts)
}
