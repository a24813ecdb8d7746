package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/mxyns/ietf-rfc-dep/internal/doc"
)

const fileExt = ".yaml"

// Dir is a registry backed by a directory holding one <id>.yaml file per
// document.
type Dir struct {
	root string
}

var _ Registry = (*Dir)(nil)

// NewDir creates a registry reading from root.
func NewDir(root string) *Dir {
	return &Dir{root: root}
}

// Root returns the directory the registry reads from.
func (r *Dir) Root() string { return r.root }

// Fetch reads and parses the document named id.
func (r *Dir) Fetch(ctx context.Context, id string) (*doc.State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	id = doc.NameToID(id)
	if err := checkID(id); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(filepath.Join(r.root, id+fileExt))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &FetchError{Code: ErrCodeNotFound, ID: id}
	}
	if err != nil {
		return nil, &FetchError{Code: ErrCodeRead, ID: id, Err: err}
	}

	d, err := ParseDocument(data)
	if err != nil {
		return nil, &FetchError{Code: ErrCodeParse, ID: id, Err: err}
	}
	if d.Summary.ID != id {
		return nil, &FetchError{
			Code: ErrCodeParse,
			ID:   id,
			Err:  fmt.Errorf("file declares document %q", d.Summary.ID),
		}
	}
	return doc.NewState(d), nil
}

// Lookup scans every document file. Unreadable files are logged and skipped.
func (r *Dir) Lookup(ctx context.Context, title string, limit int, includeDrafts bool) ([]doc.Summary, error) {
	if title == "" {
		return nil, ErrEmptyQuery
	}
	entries, err := os.ReadDir(r.root)
	if err != nil {
		return nil, fmt.Errorf("lookup: read registry: %w", err)
	}

	var all []doc.Summary
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), fileExt) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(filepath.Join(r.root, e.Name()))
		if err != nil {
			slog.Warn("lookup: skipping unreadable document", "file", e.Name(), "error", err)
			continue
		}
		d, err := ParseDocument(data)
		if err != nil {
			slog.Warn("lookup: skipping malformed document", "file", e.Name(), "error", err)
			continue
		}
		all = append(all, d.Summary)
	}
	return filterSummaries(all, title, limit, includeDrafts), nil
}

// Put writes d to the registry, replacing any previous file.
func (r *Dir) Put(d doc.Document) error {
	if err := d.Validate(); err != nil {
		return err
	}
	data, err := MarshalDocument(d)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(r.root, 0o755); err != nil {
		return fmt.Errorf("create registry: %w", err)
	}
	return os.WriteFile(filepath.Join(r.root, d.Summary.ID+fileExt), data, 0o644)
}

func checkID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return &FetchError{Code: ErrCodeInvalidID, ID: id}
	}
	return nil
}

// filterSummaries applies the Lookup contract to an unordered list.
func filterSummaries(all []doc.Summary, title string, limit int, includeDrafts bool) []doc.Summary {
	needle := strings.ToLower(title)
	matches := []doc.Summary{}
	for _, s := range all {
		if !includeDrafts && !s.IsRFC {
			continue
		}
		if strings.Contains(strings.ToLower(s.Title), needle) {
			matches = append(matches, s)
		}
	}
	slices.SortFunc(matches, func(a, b doc.Summary) int { return strings.Compare(a.ID, b.ID) })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}
