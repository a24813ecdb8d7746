package doc

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mxyns/ietf-rfc-dep/internal/cache"
)

// Kind names a relation between two documents.
type Kind string

const (
	KindUpdates     Kind = "updates"
	KindUpdatedBy   Kind = "updated_by"
	KindObsoletes   Kind = "obsoletes"
	KindObsoletedBy Kind = "obsoleted_by"
	KindAlsoKnownAs Kind = "also_known_as"
	KindReplaces    Kind = "replaces"
	KindWas         Kind = "was"
)

// Kinds lists every relation kind in display order.
var Kinds = []Kind{
	KindUpdates,
	KindUpdatedBy,
	KindObsoletes,
	KindObsoletedBy,
	KindAlsoKnownAs,
	KindReplaces,
	KindWas,
}

// ErrUnknownMeta is returned by ParseKind for an unrecognised kind.
var ErrUnknownMeta = errors.New("unknown meta kind")

// ParseKind accepts a kind as stored ("obsoleted_by") or as displayed
// ("Obsoleted by").
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.Join(strings.Fields(strings.ToLower(s)), "_"))
	switch k {
	case KindUpdates, KindUpdatedBy, KindObsoletes, KindObsoletedBy,
		KindAlsoKnownAs, KindReplaces, KindWas:
		return k, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMeta, s)
}

// IsList reports whether the kind holds a list of references.
func (k Kind) IsList() bool {
	switch k {
	case KindUpdates, KindUpdatedBy, KindObsoletes, KindObsoletedBy:
		return true
	}
	return false
}

// Meta is one relation entry. List kinds use Refs; the others use Name.
type Meta struct {
	Kind Kind                      `json:"kind"`
	Refs []cache.Reference[string] `json:"refs,omitempty"`
	Name string                    `json:"name,omitempty"`
}

// ListMeta builds a list relation. Every name is normalised and starts out
// Unknown.
func ListMeta(kind Kind, names ...string) Meta {
	refs := make([]cache.Reference[string], 0, len(names))
	for _, name := range names {
		refs = append(refs, cache.Unknown(NameToID(name)))
	}
	return Meta{Kind: kind, Refs: refs}
}

// NameMeta builds a single-name relation.
func NameMeta(kind Kind, name string) Meta {
	return Meta{Kind: kind, Name: strings.TrimSpace(name)}
}

// Validate checks that the kind is known and the payload matches it.
func (m Meta) Validate() error {
	if _, err := ParseKind(string(m.Kind)); err != nil {
		return err
	}
	if m.Kind.IsList() {
		if m.Name != "" {
			return fmt.Errorf("meta %s: list relation has a name", m.Kind)
		}
		return nil
	}
	if len(m.Refs) > 0 {
		return fmt.Errorf("meta %s: name relation has references", m.Kind)
	}
	if m.Name == "" {
		return fmt.Errorf("meta %s: name is empty", m.Kind)
	}
	return nil
}

// Len counts the documents the entry mentions: the list length, or one.
func (m Meta) Len() int {
	if m.Kind.IsList() {
		return len(m.Refs)
	}
	return 1
}
