package doc

import "github.com/mxyns/ietf-rfc-dep/internal/cache"

// State is a cached document together with its user-facing flags.
//
// MissingDeps mirrors UnknownRelationCount. NewState seeds it and
// ApplyDelta keeps it in step with resolution.
type State struct {
	Doc         Document `json:"content"`
	IsRead      bool     `json:"is_read"`
	IsSelected  bool     `json:"is_selected"`
	MissingDeps int      `json:"missing_dep_count"`

	// ToResolve marks the entry for the next automatic resolution. It is
	// never persisted.
	ToResolve bool `json:"-"`
}

var _ cache.Relational[string] = (*State)(nil)

// NewState wraps d with cleared flags.
func NewState(d Document) *State {
	s := &State{Doc: d}
	s.MissingDeps = s.UnknownRelationCount()
	return s
}

// ID returns the document id, which is also the cache key.
func (s *State) ID() string { return s.Doc.Summary.ID }

// ApplyDelta subtracts a resolution delta from MissingDeps.
func (s *State) ApplyDelta(delta int) {
	s.MissingDeps = max(s.MissingDeps-delta, 0)
}

// References yields every reference of the list relations in order.
func (s *State) References() []cache.Reference[string] {
	var refs []cache.Reference[string]
	for _, m := range s.Doc.Meta {
		if m.Kind.IsList() {
			refs = append(refs, m.Refs...)
		}
	}
	return refs
}

func (s *State) UnknownRelations() map[string]struct{} {
	ids := make(map[string]struct{})
	for _, ref := range s.References() {
		if !ref.IsCached() {
			ids[ref.Key()] = struct{}{}
		}
	}
	return ids
}

func (s *State) UpdateReferences(isKnown func(string) bool) int {
	delta := 0
	for i := range s.Doc.Meta {
		m := &s.Doc.Meta[i]
		if !m.Kind.IsList() {
			continue
		}
		for j, ref := range m.Refs {
			var d int
			m.Refs[j], d = ref.Retag(isKnown(ref.Key()))
			delta += d
		}
	}
	return delta
}

func (s *State) UnknownRelationCount() int {
	n := 0
	for _, ref := range s.References() {
		if !ref.IsCached() {
			n++
		}
	}
	return n
}
