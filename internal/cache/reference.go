package cache

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Tag is the resolution state of a Reference.
type Tag uint8

const (
	// TagUnknown marks a reference whose target is believed absent.
	TagUnknown Tag = iota
	// TagCached marks a reference whose target is believed present.
	TagCached
)

func (t Tag) String() string {
	switch t {
	case TagUnknown:
		return "unknown"
	case TagCached:
		return "cached"
	default:
		return fmt.Sprintf("Tag(%d)", uint8(t))
	}
}

// Reference is a non-owning edge to another cache entry, named by key.
//
// The tag is only as fresh as the last Resolve or UpdateRelations call.
// References are comparable by (tag, key) and can be used as map keys.
type Reference[K comparable] struct {
	tag Tag
	key K
}

// Unknown returns a reference to key tagged TagUnknown.
func Unknown[K comparable](key K) Reference[K] {
	return Reference[K]{tag: TagUnknown, key: key}
}

// Cached returns a reference to key tagged TagCached.
func Cached[K comparable](key K) Reference[K] {
	return Reference[K]{tag: TagCached, key: key}
}

// Key returns the referenced key regardless of the tag.
func (r Reference[K]) Key() K { return r.key }

// Tag returns the resolution state.
func (r Reference[K]) Tag() Tag { return r.tag }

// IsCached reports whether the reference is tagged TagCached.
func (r Reference[K]) IsCached() bool { return r.tag == TagCached }

// Retag returns the reference tagged Cached when known is true and Unknown
// otherwise, along with its contribution to an UpdateReferences delta:
// +1 for Unknown to Cached, -1 for Cached to Unknown, 0 when unchanged.
func (r Reference[K]) Retag(known bool) (Reference[K], int) {
	switch {
	case known && r.tag == TagUnknown:
		return Cached(r.key), 1
	case !known && r.tag == TagCached:
		return Unknown(r.key), -1
	default:
		return r, 0
	}
}

func (r Reference[K]) String() string {
	if r.tag == TagCached {
		return fmt.Sprintf("Cached(%v)", r.key)
	}
	return fmt.Sprintf("Unknown(%v)", r.key)
}

var errBadReference = errors.New("reference must have exactly one of \"unknown\" or \"cached\"")

// MarshalJSON encodes the reference as {"unknown": key} or {"cached": key}.
func (r Reference[K]) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]K{r.tag.String(): r.key})
}

// UnmarshalJSON decodes the form written by MarshalJSON.
func (r *Reference[K]) UnmarshalJSON(data []byte) error {
	var raw struct {
		Unknown *K `json:"unknown"`
		Cached  *K `json:"cached"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode reference: %w", err)
	}

	switch {
	case raw.Unknown != nil && raw.Cached == nil:
		*r = Unknown(*raw.Unknown)
	case raw.Cached != nil && raw.Unknown == nil:
		*r = Cached(*raw.Cached)
	default:
		return errBadReference
	}
	return nil
}
