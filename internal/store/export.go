package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"

	"github.com/natefinch/atomic"

	"github.com/mxyns/ietf-rfc-dep/internal/cache"
	"github.com/mxyns/ietf-rfc-dep/internal/doc"
)

// ExportJSON writes c to path as indented JSON keyed by id. The file is
// replaced atomically, so readers never see a partial export.
func ExportJSON(path string, c *DocCache) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := atomic.WriteFile(path, &buf); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}

// ImportJSON reads a file written by ExportJSON. Tags are returned as
// stored; callers run cache.UpdateRelations once the entries are merged.
func ImportJSON(path string) (*DocCache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("import: %w", err)
	}
	c := cache.New[string, *doc.State]()
	if err := json.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("import %s: %w", path, err)
	}
	for id, st := range c.All() {
		if st == nil {
			return nil, fmt.Errorf("import %s: document %s is null", path, id)
		}
		if st.ID() != id {
			return nil, fmt.Errorf("import %s: key %s holds document %q", path, id, st.ID())
		}
	}
	return c, nil
}
