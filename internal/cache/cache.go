package cache

import (
	"cmp"
	"encoding/json"
	"iter"
	"slices"
)

// Cache is an ordered mapping from K to V.
//
// Iteration always follows the total order of K, never insertion order.
// The zero value is an empty cache ready for use.
//
// Cache is not safe for concurrent use. A Resolver hands a cache to its
// worker by moving it (see Take), never by sharing it.
type Cache[K cmp.Ordered, V any] struct {
	entries map[K]V
	keys    []K // sorted, mirrors entries
}

// New creates an empty cache.
func New[K cmp.Ordered, V any]() *Cache[K, V] {
	return &Cache[K, V]{entries: make(map[K]V)}
}

// Get returns the value cached under key.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	v, ok := c.entries[key]
	return v, ok
}

// Has reports whether key is cached.
func (c *Cache[K, V]) Has(key K) bool {
	_, ok := c.entries[key]
	return ok
}

// Put caches value under key and returns the value it replaced, if any.
func (c *Cache[K, V]) Put(key K, value V) (V, bool) {
	if c.entries == nil {
		c.entries = make(map[K]V)
	}

	prev, replaced := c.entries[key]
	c.entries[key] = value
	if !replaced {
		i, _ := slices.BinarySearch(c.keys, key)
		c.keys = slices.Insert(c.keys, i, key)
	}
	return prev, replaced
}

// Remove deletes key and returns the value it held, if any.
func (c *Cache[K, V]) Remove(key K) (V, bool) {
	v, ok := c.entries[key]
	if !ok {
		return v, false
	}

	delete(c.entries, key)
	if i, found := slices.BinarySearch(c.keys, key); found {
		c.keys = slices.Delete(c.keys, i, i+1)
	}
	return v, true
}

// Merge consumes other and inserts all of its entries into c.
// On key conflicts the value from other wins. other is left empty.
func (c *Cache[K, V]) Merge(other *Cache[K, V]) {
	if other == nil || other == c {
		return
	}
	for _, key := range other.keys {
		c.Put(key, other.entries[key])
	}
	other.Clear()
}

// Retain keeps only the entries for which keep returns true.
func (c *Cache[K, V]) Retain(keep func(K, V) bool) {
	kept := c.keys[:0]
	for _, key := range c.keys {
		if keep(key, c.entries[key]) {
			kept = append(kept, key)
			continue
		}
		delete(c.entries, key)
	}
	clear(c.keys[len(kept):])
	c.keys = kept
}

// Clear removes every entry.
func (c *Cache[K, V]) Clear() {
	clear(c.entries)
	c.keys = nil
}

// Take moves every entry of c into a new cache and leaves c empty.
func (c *Cache[K, V]) Take() *Cache[K, V] {
	moved := &Cache[K, V]{entries: c.entries, keys: c.keys}
	if moved.entries == nil {
		moved.entries = make(map[K]V)
	}
	c.entries = make(map[K]V)
	c.keys = nil
	return moved
}

// Len returns the number of entries.
func (c *Cache[K, V]) Len() int {
	return len(c.keys)
}

// IsEmpty reports whether the cache holds no entries.
func (c *Cache[K, V]) IsEmpty() bool {
	return len(c.keys) == 0
}

// Keys returns a copy of the cached keys in order.
func (c *Cache[K, V]) Keys() []K {
	return slices.Clone(c.keys)
}

// All iterates over the entries in key order.
//
// When V is a pointer type the yielded values are the cached values
// themselves, so callers may mutate them in place. The cache must not be
// structurally modified (Put, Remove, ...) during iteration.
func (c *Cache[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for _, key := range c.keys {
			if !yield(key, c.entries[key]) {
				return
			}
		}
	}
}

// MarshalJSON encodes the cache as a JSON object. encoding/json writes map
// keys in sorted order, so the output is deterministic.
func (c *Cache[K, V]) MarshalJSON() ([]byte, error) {
	if c.entries == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.entries)
}

// UnmarshalJSON replaces the cache contents with the decoded object.
func (c *Cache[K, V]) UnmarshalJSON(data []byte) error {
	entries := make(map[K]V)
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}

	keys := make([]K, 0, len(entries))
	for key := range entries {
		keys = append(keys, key)
	}
	slices.Sort(keys)

	c.entries = entries
	c.keys = keys
	return nil
}
