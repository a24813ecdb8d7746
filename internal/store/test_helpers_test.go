package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/mxyns/ietf-rfc-dep/internal/cache"
	"github.com/mxyns/ietf-rfc-dep/internal/doc"
)

// createTestStore creates a new store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestState builds a document state with one obsoletes relation per
// target.
func createTestState(id, title string, obsoletes ...string) *doc.State {
	d := doc.Document{Summary: doc.NewSummary(id, "", title)}
	if len(obsoletes) > 0 {
		d.Meta = []doc.Meta{doc.ListMeta(doc.KindObsoletes, obsoletes...)}
	}
	return doc.NewState(d)
}

// createTestCache builds the rfc8200 -> rfc2460 -> rfc1883 chain, linked.
func createTestCache() *DocCache {
	c := cache.New[string, *doc.State]()
	for _, st := range []*doc.State{
		createTestState("rfc8200", "IPv6 Specification", "rfc2460"),
		createTestState("rfc2460", "IPv6 Specification", "rfc1883"),
		createTestState("rfc1883", "IPv6 Specification"),
	} {
		c.Put(st.ID(), st)
	}
	cache.UpdateRelations(c, func(_ string, st *doc.State, delta int) { st.ApplyDelta(delta) })
	return c
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("query indexes: %v", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan index: %v", err)
		}
		names = append(names, name)
	}
	return names
}

func contains(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
