package doc

import (
	"fmt"
	"net/url"
	"path"
	"slices"
	"strings"
)

const (
	htmlBase = "https://datatracker.ietf.org/doc/"
	xmlBase  = "https://www.ietf.org/archive/id/"
)

// SourceURL holds where a document can be read.
type SourceURL struct {
	HTML string `json:"html"`
	XML  string `json:"xml"`
}

// NewSourceURL derives the datatracker page and the XML archive location
// of id.
func NewSourceURL(id string) SourceURL {
	return SourceURL{
		HTML: htmlBase + id,
		XML:  xmlBase + id + ".xml",
	}
}

// ID extracts the document id from the HTML location.
func (u SourceURL) ID() (string, error) {
	parsed, err := url.Parse(u.HTML)
	if err != nil {
		return "", fmt.Errorf("parse source url: %w", err)
	}
	id := path.Base(strings.TrimRight(parsed.Path, "/"))
	if id == "" || id == "." || id == "/" {
		return "", fmt.Errorf("source url %q has no document id", u.HTML)
	}
	return id, nil
}

// Summary identifies a document.
type Summary struct {
	ID       string    `json:"id"`
	Revision string    `json:"revision"`
	IsRFC    bool      `json:"is_rfc"`
	URL      SourceURL `json:"url"`
	Title    string    `json:"title"`
}

// NewSummary builds a summary from a display name. An empty revision
// becomes "00".
func NewSummary(name, revision, title string) Summary {
	id := NameToID(name)
	if revision == "" {
		revision = "00"
	}
	return Summary{
		ID:       id,
		Revision: revision,
		IsRFC:    strings.HasPrefix(id, "rfc"),
		URL:      NewSourceURL(id),
		Title:    title,
	}
}

// Document is a summary plus its relations.
type Document struct {
	Summary Summary `json:"summary"`
	Meta    []Meta  `json:"meta"`
}

// MetaCount counts every document mentioned in the relations.
func (d *Document) MetaCount() int {
	n := 0
	for _, m := range d.Meta {
		n += m.Len()
	}
	return n
}

// Validate checks the id and every relation.
func (d *Document) Validate() error {
	if d.Summary.ID == "" {
		return fmt.Errorf("document has no id")
	}
	if d.Summary.ID != NameToID(d.Summary.ID) {
		return fmt.Errorf("document id %q is not normalised", d.Summary.ID)
	}
	for i, m := range d.Meta {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("document %s: meta[%d]: %w", d.Summary.ID, i, err)
		}
	}
	return nil
}

// Clone returns a deep copy, so the copy's tags can change independently.
func (d Document) Clone() Document {
	out := Document{Summary: d.Summary}
	if d.Meta != nil {
		out.Meta = make([]Meta, len(d.Meta))
		for i, m := range d.Meta {
			out.Meta[i] = Meta{Kind: m.Kind, Name: m.Name, Refs: slices.Clone(m.Refs)}
		}
	}
	return out
}
