// Package registry supplies documents to the cache.
//
// A registry answers two questions: what is document <id> (Fetch, which
// makes every registry a cache.Fetcher) and which documents have a title
// matching a query (Lookup). Dir reads one YAML file per document from a
// directory; Memory serves documents held in a map.
//
// Fetch always returns a fresh *doc.State whose references are all Unknown;
// the resolution pass is responsible for tagging them.
package registry

import (
	"context"

	"github.com/mxyns/ietf-rfc-dep/internal/cache"
	"github.com/mxyns/ietf-rfc-dep/internal/doc"
)

// Registry is a document source.
type Registry interface {
	cache.Fetcher[string, *doc.State]

	// Lookup returns up to limit summaries whose title contains title,
	// ignoring case, ordered by id. A limit of zero or less means no limit.
	// Drafts are skipped unless includeDrafts is set.
	Lookup(ctx context.Context, title string, limit int, includeDrafts bool) ([]doc.Summary, error)
}
