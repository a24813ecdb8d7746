package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mxyns/ietf-rfc-dep/internal/cache"
	"github.com/mxyns/ietf-rfc-dep/internal/doc"
)

// DocCache is the cache shape persisted by the store.
type DocCache = cache.Cache[string, *doc.State]

// IntegrityError reports a stored row whose content no longer matches its
// hash.
type IntegrityError struct {
	ID   string
	Want string
	Got  string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("document %s: content hash mismatch (stored %s, computed %s)", e.ID, e.Want, e.Got)
}

// SaveCache replaces the stored snapshot with the contents of c, in one
// transaction.
func (s *Store) SaveCache(ctx context.Context, c *DocCache) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("save cache: %w", err)
	}
	defer tx.Rollback()

	var seq int64
	if err := tx.QueryRowContext(ctx, "UPDATE snapshot SET seq = seq + 1 WHERE id = 1 RETURNING seq").Scan(&seq); err != nil {
		return fmt.Errorf("save cache: bump seq: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return fmt.Errorf("save cache: clear: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (id, content, content_hash, missing_deps, is_read, saved_seq)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("save cache: %w", err)
	}
	defer stmt.Close()

	for id, st := range c.All() {
		content, err := MarshalCanonical(st)
		if err != nil {
			return fmt.Errorf("save cache: document %s: %w", id, err)
		}
		if _, err := stmt.ExecContext(ctx,
			id,
			string(content),
			ContentHash(content),
			st.MissingDeps,
			st.IsRead,
			seq,
		); err != nil {
			return fmt.Errorf("save cache: document %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("save cache: commit: %w", err)
	}
	return nil
}

// LoadCache reads the stored snapshot. Every row's hash is checked; a
// mismatch fails the load with an *IntegrityError.
func (s *Store) LoadCache(ctx context.Context) (*DocCache, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, content_hash
		FROM documents
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}
	defer rows.Close()

	c := cache.New[string, *doc.State]()
	for rows.Next() {
		st, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("load cache: %w", err)
		}
		c.Put(st.ID(), st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load cache: %w", err)
	}
	return c, nil
}

// Get reads one document. ok is false when it is not stored.
func (s *Store) Get(ctx context.Context, id string) (st *doc.State, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, content_hash FROM documents WHERE id = ?
	`, id)
	st, err = scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get document: %w", err)
	}
	return st, true, nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Incomplete returns the ids of documents with missing dependencies, in id
// order.
func (s *Store) Incomplete(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM documents
		WHERE missing_deps > 0
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("incomplete documents: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("incomplete documents: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanDocument(row scanner) (*doc.State, error) {
	var id, content, hash string
	if err := row.Scan(&id, &content, &hash); err != nil {
		return nil, err
	}
	if got := ContentHash([]byte(content)); got != hash {
		return nil, &IntegrityError{ID: id, Want: hash, Got: got}
	}
	var st doc.State
	if err := json.Unmarshal([]byte(content), &st); err != nil {
		return nil, fmt.Errorf("document %s: %w", id, err)
	}
	if st.ID() != id {
		return nil, fmt.Errorf("document %s: content declares id %q", id, st.ID())
	}
	return &st, nil
}
