package registry

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/mxyns/ietf-rfc-dep/internal/doc"
)

// docFile is the on-disk form of a document. Relations are plain names;
// unknown keys are rejected.
type docFile struct {
	Name     string `yaml:"name"`
	Revision string `yaml:"revision,omitempty"`
	Title    string `yaml:"title"`

	Updates     []string `yaml:"updates,omitempty"`
	UpdatedBy   []string `yaml:"updated_by,omitempty"`
	Obsoletes   []string `yaml:"obsoletes,omitempty"`
	ObsoletedBy []string `yaml:"obsoleted_by,omitempty"`
	AlsoKnownAs string   `yaml:"also_known_as,omitempty"`
	Replaces    string   `yaml:"replaces,omitempty"`
	Was         string   `yaml:"was,omitempty"`
}

// ParseDocument decodes one YAML document.
func ParseDocument(data []byte) (doc.Document, error) {
	var f docFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return doc.Document{}, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if f.Name == "" {
		return doc.Document{}, fmt.Errorf("name is required")
	}

	d := doc.Document{Summary: doc.NewSummary(f.Name, f.Revision, f.Title)}
	lists := []struct {
		kind  doc.Kind
		names []string
	}{
		{doc.KindUpdates, f.Updates},
		{doc.KindUpdatedBy, f.UpdatedBy},
		{doc.KindObsoletes, f.Obsoletes},
		{doc.KindObsoletedBy, f.ObsoletedBy},
	}
	for _, l := range lists {
		if len(l.names) > 0 {
			d.Meta = append(d.Meta, doc.ListMeta(l.kind, l.names...))
		}
	}
	names := []struct {
		kind doc.Kind
		name string
	}{
		{doc.KindAlsoKnownAs, f.AlsoKnownAs},
		{doc.KindReplaces, f.Replaces},
		{doc.KindWas, f.Was},
	}
	for _, n := range names {
		if n.name != "" {
			d.Meta = append(d.Meta, doc.NameMeta(n.kind, n.name))
		}
	}

	if err := d.Validate(); err != nil {
		return doc.Document{}, err
	}
	return d, nil
}

// MarshalDocument encodes d in the form ParseDocument reads. Reference tags
// are dropped.
func MarshalDocument(d doc.Document) ([]byte, error) {
	f := docFile{
		Name:     d.Summary.ID,
		Revision: d.Summary.Revision,
		Title:    d.Summary.Title,
	}
	for _, m := range d.Meta {
		ids := make([]string, len(m.Refs))
		for i, ref := range m.Refs {
			ids[i] = ref.Key()
		}
		switch m.Kind {
		case doc.KindUpdates:
			f.Updates = append(f.Updates, ids...)
		case doc.KindUpdatedBy:
			f.UpdatedBy = append(f.UpdatedBy, ids...)
		case doc.KindObsoletes:
			f.Obsoletes = append(f.Obsoletes, ids...)
		case doc.KindObsoletedBy:
			f.ObsoletedBy = append(f.ObsoletedBy, ids...)
		case doc.KindAlsoKnownAs:
			f.AlsoKnownAs = m.Name
		case doc.KindReplaces:
			f.Replaces = m.Name
		case doc.KindWas:
			f.Was = m.Name
		default:
			return nil, fmt.Errorf("meta %s: %w", m.Kind, doc.ErrUnknownMeta)
		}
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(&f); err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode YAML: %w", err)
	}
	return buf.Bytes(), nil
}
