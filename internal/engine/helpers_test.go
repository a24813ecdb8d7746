package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mxyns/ietf-rfc-dep/internal/config"
	"github.com/mxyns/ietf-rfc-dep/internal/doc"
	"github.com/mxyns/ietf-rfc-dep/internal/registry"
)

// chainDocs is rfc8200 -> rfc2460 -> rfc1883 through obsoletes.
func chainDocs() []doc.Document {
	return []doc.Document{
		{
			Summary: doc.NewSummary("rfc8200", "", "Internet Protocol, Version 6 (IPv6) Specification"),
			Meta:    []doc.Meta{doc.ListMeta(doc.KindObsoletes, "rfc2460")},
		},
		{
			Summary: doc.NewSummary("rfc2460", "", "Internet Protocol, Version 6 (IPv6) Specification"),
			Meta:    []doc.Meta{doc.ListMeta(doc.KindObsoletes, "rfc1883")},
		},
		{Summary: doc.NewSummary("rfc1883", "", "Internet Protocol, Version 6 (IPv6) Specification")},
		{
			Summary: doc.NewSummary("draft-ietf-6man-rfc2460bis", "13", "IPv6 Specification"),
			Meta:    []doc.Meta{doc.ListMeta(doc.KindUpdates, "rfc8200"), doc.NameMeta(doc.KindReplaces, "rfc2460")},
		},
	}
}

// gatedRegistry blocks every fetch until release is closed.
type gatedRegistry struct {
	*registry.Memory
	started chan string
	release chan struct{}
}

func newGatedRegistry(docs ...doc.Document) *gatedRegistry {
	return &gatedRegistry{
		Memory:  registry.NewMemory(docs...),
		started: make(chan string, 16),
		release: make(chan struct{}),
	}
}

func (r *gatedRegistry) Fetch(ctx context.Context, id string) (*doc.State, error) {
	r.started <- id
	select {
	case <-r.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return r.Memory.Fetch(ctx, id)
}

func (r *gatedRegistry) waitStarted(t *testing.T) string {
	t.Helper()
	select {
	case id := <-r.started:
		return id
	case <-time.After(5 * time.Second):
		t.Fatal("fetch never started")
		return ""
	}
}

func newTestEngine(reg registry.Registry, opts ...Option) *Engine {
	opts = append([]Option{
		WithClock(NewClock()),
		WithRunTokens(NewFixedGenerator("run-1", "run-2", "run-3", "run-4")),
	}, opts...)
	return New(reg, config.Default(), opts...)
}

func mustImport(t *testing.T, e *Engine, names ...string) {
	t.Helper()
	for _, name := range names {
		_, err := e.ImportByID(context.Background(), name)
		require.NoError(t, err)
	}
}

func missingDeps(t *testing.T, e *Engine) map[string]int {
	t.Helper()
	out := make(map[string]int)
	for id, st := range e.Cache().All() {
		out[id] = st.MissingDeps
	}
	return out
}

func messages(notes []Notification) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = string(n.Level) + ": " + n.Message
	}
	return out
}
