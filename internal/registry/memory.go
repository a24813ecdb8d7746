package registry

import (
	"context"
	"sync"

	"github.com/mxyns/ietf-rfc-dep/internal/doc"
)

// Memory is a registry over documents held in memory. It is safe for
// concurrent use.
type Memory struct {
	mu   sync.RWMutex
	docs map[string]doc.Document
}

var _ Registry = (*Memory)(nil)

// NewMemory creates a registry holding docs.
func NewMemory(docs ...doc.Document) *Memory {
	m := &Memory{docs: make(map[string]doc.Document, len(docs))}
	m.Add(docs...)
	return m
}

// Add stores copies of docs, replacing documents with the same id.
func (m *Memory) Add(docs ...doc.Document) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range docs {
		m.docs[d.Summary.ID] = d.Clone()
	}
}

// Len returns the number of documents held.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docs)
}

func (m *Memory) Fetch(ctx context.Context, id string) (*doc.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id = doc.NameToID(id)
	if err := checkID(id); err != nil {
		return nil, err
	}

	m.mu.RLock()
	d, ok := m.docs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, &FetchError{Code: ErrCodeNotFound, ID: id}
	}
	return doc.NewState(d.Clone()), nil
}

func (m *Memory) Lookup(ctx context.Context, title string, limit int, includeDrafts bool) ([]doc.Summary, error) {
	if title == "" {
		return nil, ErrEmptyQuery
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	all := make([]doc.Summary, 0, len(m.docs))
	for _, d := range m.docs {
		all = append(all, d.Summary)
	}
	m.mu.RUnlock()
	return filterSummaries(all, title, limit, includeDrafts), nil
}
