package cache

import (
	"context"
	"fmt"
	"sync"
)

// node is a minimal Relational value: a flat list of references.
type node struct {
	Refs []Reference[string] `json:"refs"`
}

func newNode(keys ...string) *node {
	n := &node{Refs: []Reference[string]{}}
	for _, key := range keys {
		n.Refs = append(n.Refs, Unknown(key))
	}
	return n
}

func (n *node) UnknownRelations() map[string]struct{} {
	keys := make(map[string]struct{})
	for _, ref := range n.Refs {
		if !ref.IsCached() {
			keys[ref.Key()] = struct{}{}
		}
	}
	return keys
}

func (n *node) UpdateReferences(isKnown func(string) bool) int {
	delta := 0
	for i, ref := range n.Refs {
		var d int
		n.Refs[i], d = ref.Retag(isKnown(ref.Key()))
		delta += d
	}
	return delta
}

func (n *node) UnknownRelationCount() int {
	count := 0
	for _, ref := range n.Refs {
		if !ref.IsCached() {
			count++
		}
	}
	return count
}

// graphFetcher serves nodes from an adjacency list and counts fetches.
type graphFetcher struct {
	mu    sync.Mutex
	graph map[string][]string
	calls map[string]int
}

func newGraphFetcher(graph map[string][]string) *graphFetcher {
	return &graphFetcher{graph: graph, calls: make(map[string]int)}
}

func (f *graphFetcher) Fetch(_ context.Context, key string) (*node, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls[key]++
	refs, ok := f.graph[key]
	if !ok {
		return nil, fmt.Errorf("no such node %q", key)
	}
	return newNode(refs...), nil
}

func (f *graphFetcher) Calls(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[key]
}

func (f *graphFetcher) TotalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := 0
	for _, n := range f.calls {
		total += n
	}
	return total
}

type change struct {
	Key   string
	Delta int
}

// recorder collects change callbacks in call order.
type recorder struct {
	mu      sync.Mutex
	changes []change
}

func (r *recorder) record(key string, _ *node, delta int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change{Key: key, Delta: delta})
}

func (r *recorder) all() []change {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]change(nil), r.changes...)
}

// tags renders the references of key as strings for compact assertions.
func tags(c *Cache[string, *node], key string) []string {
	n, ok := c.Get(key)
	if !ok {
		return nil
	}
	out := make([]string, len(n.Refs))
	for i, ref := range n.Refs {
		out[i] = ref.String()
	}
	return out
}
