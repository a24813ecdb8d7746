package engine

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"github.com/mxyns/ietf-rfc-dep/internal/cache"
	"github.com/mxyns/ietf-rfc-dep/internal/config"
	"github.com/mxyns/ietf-rfc-dep/internal/doc"
	"github.com/mxyns/ietf-rfc-dep/internal/registry"
)

// DocCache is the cache the engine coordinates.
type DocCache = cache.Cache[string, *doc.State]

// Engine owns the document cache, the background resolver, and the
// notification log.
//
// Thread-safety model:
//   - Every method must be called from one goroutine
//   - The resolver's worker only touches the entries moved to it
type Engine struct {
	cache    *DocCache
	resolver *cache.Resolver[string, *doc.State]
	registry registry.Registry
	settings config.Settings
	clock    Sequencer
	tokens   RunTokenGenerator
	verbose  bool

	notes   []Notification
	run     *activeRun
	history []RunSummary
}

type activeRun struct {
	token  string
	target cache.Target[string]
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock replaces the notification clock.
func WithClock(c Sequencer) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithRunTokens replaces the run token generator.
func WithRunTokens(g RunTokenGenerator) Option {
	return func(e *Engine) {
		e.tokens = g
	}
}

// WithVerbose logs resolution progress at Info instead of Debug.
func WithVerbose(verbose bool) Option {
	return func(e *Engine) {
		e.verbose = verbose
	}
}

// WithCache starts the engine from an existing cache, for example a loaded
// snapshot. Tags are taken as stored.
func WithCache(c *DocCache) Option {
	return func(e *Engine) {
		if c != nil {
			e.cache = c
		}
	}
}

// New creates an engine fetching documents from reg.
func New(reg registry.Registry, settings config.Settings, opts ...Option) *Engine {
	e := &Engine{
		cache:    cache.New[string, *doc.State](),
		registry: reg,
		settings: settings,
		clock:    NewClock(),
		tokens:   UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.resolver = cache.NewResolver[string, *doc.State](reg, applyDelta)
	return e
}

// applyDelta keeps MissingDeps in step with tag changes.
func applyDelta(_ string, st *doc.State, delta int) {
	st.ApplyDelta(delta)
}

// Cache returns the foreground cache. While a resolve is running it only
// holds entries added since the run started.
func (e *Engine) Cache() *DocCache { return e.cache }

// Settings returns the settings the engine was created with.
func (e *Engine) Settings() config.Settings { return e.settings }

// Get returns a cached document.
func (e *Engine) Get(id string) (*doc.State, bool) {
	return e.cache.Get(doc.NameToID(id))
}

// Import caches st, replacing any entry with the same id, and retags every
// relation against the new key set.
func (e *Engine) Import(st *doc.State) {
	e.cache.Put(st.ID(), st)
	e.updateRelations(false)
}

// ImportByID fetches name from the registry and imports it. A fetch
// failure is recorded as an error notification and returned.
func (e *Engine) ImportByID(ctx context.Context, name string) (*doc.State, error) {
	if name == "" {
		return nil, fmt.Errorf("import: empty name")
	}
	st, err := e.registry.Fetch(ctx, name)
	if err != nil {
		e.notify(LevelError, "", "Could not import %s: %v", name, err)
		return nil, fmt.Errorf("import %s: %w", name, err)
	}
	e.Import(st)
	slog.Debug("document imported", "id", st.ID(), "missing_deps", st.MissingDeps)
	return st, nil
}

// Merge moves every entry of other into the cache (other's entries win)
// and retags relations. other is left empty.
func (e *Engine) Merge(other *DocCache) {
	e.cache.Merge(other)
	e.updateRelations(false)
}

// Replace swaps the whole cache for c. With recompute, MissingDeps is
// recounted from the tags instead of adjusted by deltas, which repairs
// counts that were stored inconsistently.
func (e *Engine) Replace(c *DocCache, recompute bool) error {
	if e.resolver.Pending() {
		return newBusyError("replace")
	}
	if c == nil {
		c = cache.New[string, *doc.State]()
	}
	e.cache = c
	e.updateRelations(recompute)
	return nil
}

// Reset empties the cache.
func (e *Engine) Reset() error {
	if e.resolver.Pending() {
		return newBusyError("reset")
	}
	e.cache.Clear()
	return nil
}

// Remove deletes the named documents and retags relations. Unknown ids
// are reported and nothing is removed.
func (e *Engine) Remove(ids ...string) error {
	ids = normalise(ids)
	if missing := e.missing(ids); len(missing) > 0 {
		return newNotCachedError(missing)
	}
	for _, id := range ids {
		e.cache.Remove(id)
	}
	e.updateRelations(false)
	return nil
}

// RemoveSelected deletes every selected document, retags relations, and
// returns how many were removed.
func (e *Engine) RemoveSelected() int {
	before := e.cache.Len()
	e.cache.Retain(func(_ string, st *doc.State) bool { return !st.IsSelected })
	removed := before - e.cache.Len()
	if removed > 0 {
		e.updateRelations(false)
	}
	return removed
}

// Select marks documents as selected. With no ids every document is
// selected. It returns how many documents changed.
func (e *Engine) Select(ids ...string) (int, error) {
	return e.setSelected(true, ids)
}

// Deselect clears the selection of the named documents, or of every
// document when no ids are given.
func (e *Engine) Deselect(ids ...string) (int, error) {
	return e.setSelected(false, ids)
}

func (e *Engine) setSelected(selected bool, ids []string) (int, error) {
	changed := 0
	err := e.each(ids, func(st *doc.State) {
		if st.IsSelected != selected {
			st.IsSelected = selected
			changed++
		}
	})
	return changed, err
}

// SelectedIDs returns the selected document ids in key order.
func (e *Engine) SelectedIDs() []string {
	ids := []string{}
	for id, st := range e.cache.All() {
		if st.IsSelected {
			ids = append(ids, id)
		}
	}
	return ids
}

// MarkRead sets the read flag of one document.
func (e *Engine) MarkRead(id string, read bool) error {
	return e.each([]string{id}, func(st *doc.State) { st.IsRead = read })
}

// MarkToResolve flags documents for the next automatic resolution, which
// Tick starts. With no ids the selected documents are marked.
func (e *Engine) MarkToResolve(ids ...string) (int, error) {
	if len(ids) == 0 {
		ids = e.SelectedIDs()
		if len(ids) == 0 {
			return 0, &Error{Code: ErrCodeNothingToResolve, Message: "no document is selected"}
		}
	}
	marked := 0
	err := e.each(ids, func(st *doc.State) {
		if !st.ToResolve {
			st.ToResolve = true
			marked++
		}
	})
	return marked, err
}

// Lookup searches the registry by title using the configured limit and
// draft policy.
func (e *Engine) Lookup(ctx context.Context, title string) ([]doc.Summary, error) {
	q := e.settings.Query
	summaries, err := e.registry.Lookup(ctx, title, q.Limit, q.IncludeDrafts)
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", title, err)
	}
	return summaries, nil
}

// each applies fn to the named documents, or to all of them when ids is
// empty. Unknown ids fail the call before anything changes.
func (e *Engine) each(ids []string, fn func(*doc.State)) error {
	if len(ids) == 0 {
		for _, st := range e.cache.All() {
			fn(st)
		}
		return nil
	}
	ids = normalise(ids)
	if missing := e.missing(ids); len(missing) > 0 {
		return newNotCachedError(missing)
	}
	for _, id := range ids {
		st, _ := e.cache.Get(id)
		fn(st)
	}
	return nil
}

func (e *Engine) missing(ids []string) []string {
	var missing []string
	for _, id := range ids {
		if !e.cache.Has(id) {
			missing = append(missing, id)
		}
	}
	return missing
}

// updateRelations runs a rewrite-only pass over the foreground cache.
func (e *Engine) updateRelations(recompute bool) {
	changed := cache.UpdateRelations(e.cache, func(_ string, st *doc.State, delta int) {
		if recompute {
			return
		}
		st.ApplyDelta(delta)
	})
	if recompute {
		for _, st := range e.cache.All() {
			st.MissingDeps = st.UnknownRelationCount()
		}
	}
	if changed > 0 {
		slog.Debug("relations updated", "changed", changed)
	}
}

// normalise maps names to ids, sorted and de-duplicated.
func normalise(names []string) []string {
	ids := make([]string, len(names))
	for i, name := range names {
		ids[i] = doc.NameToID(name)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
