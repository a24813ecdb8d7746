package cache

import (
	"context"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolve_FetchesSingleDependency(t *testing.T) {
	c := New[string, *node]()
	c.Put("A", newNode("B"))
	fetcher := newGraphFetcher(map[string][]string{"B": {}})
	rec := &recorder{}

	report, err := Resolve(context.Background(), c, Single("A"), Params{Depth: 1, Query: true}, fetcher, rec.record)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B"}, c.Keys())
	assert.Equal(t, []string{"Cached(B)"}, tags(c, "A"))
	assert.Empty(t, tags(c, "B"))
	assert.Equal(t, []change{{"A", 1}}, rec.all())
	assert.Equal(t, 1, report.Iterations)
	assert.Equal(t, HaltMaxDepth, report.Halt)
	assert.Equal(t, []string{"B"}, report.Fetched)
}

func TestResolve_LinksCachedTargetWithoutFetching(t *testing.T) {
	c := New[string, *node]()
	c.Put("A", newNode("B"))
	c.Put("B", newNode())
	rec := &recorder{}

	_, err := Resolve(context.Background(), c, Single("A"), Params{Depth: 1}, nil, rec.record)
	require.NoError(t, err)

	assert.Equal(t, []string{"Cached(B)"}, tags(c, "A"))
	assert.Equal(t, []change{{"A", 1}}, rec.all())
}

func TestResolve_StaleCachedTagFlipsBackOnNextCall(t *testing.T) {
	c := New[string, *node]()
	c.Put("A", &node{Refs: []Reference[string]{Cached("B")}})
	c.Put("B", newNode())

	c.Retain(func(key string, _ *node) bool { return key != "B" })
	assert.Equal(t, []string{"Cached(B)"}, tags(c, "A"), "tags are not eagerly updated")

	rec := &recorder{}
	report, err := Resolve(context.Background(), c, Single("A"), Params{Depth: 1}, nil, rec.record)
	require.NoError(t, err)

	assert.Equal(t, []string{"Unknown(B)"}, tags(c, "A"))
	assert.Equal(t, []change{{"A", -1}}, rec.all())
	assert.Equal(t, 1, report.Iterations)
}

func TestResolve_ConvergesOnCycles(t *testing.T) {
	graph := map[string][]string{
		"B": {"C"},
		"C": {"D", "A"},
		"D": {"B"},
	}
	c := New[string, *node]()
	c.Put("A", newNode("B"))
	fetcher := newGraphFetcher(graph)

	report, err := Resolve(context.Background(), c, All[string](), Params{Query: true}, fetcher, nil)
	require.NoError(t, err)

	assert.Equal(t, HaltConverged, report.Halt)
	assert.Equal(t, []string{"A", "B", "C", "D"}, c.Keys())
	for _, key := range c.Keys() {
		n, _ := c.Get(key)
		assert.Zero(t, n.UnknownRelationCount(), "entry %s", key)
	}
	for key := range graph {
		assert.Equal(t, 1, fetcher.Calls(key), "each key is fetched once")
	}
}

func TestResolve_ConvergesForAllTarget(t *testing.T) {
	graph := map[string][]string{
		"B": {"A"},
		"C": {"E"},
		"E": {},
	}
	c := New[string, *node]()
	c.Put("A", newNode("B"))
	c.Put("D", newNode("C"))
	fetcher := newGraphFetcher(graph)

	report, err := Resolve(context.Background(), c, All[string](), Params{Query: true}, fetcher, nil)
	require.NoError(t, err)

	assert.Equal(t, HaltConverged, report.Halt)
	assert.Equal(t, []string{"A", "B", "C", "D", "E"}, c.Keys())
	assert.Equal(t, []string{"B", "C", "E"}, report.Fetched)
}

func TestResolve_SingleFrontierFollowsChangedEntriesOnly(t *testing.T) {
	// B is fetched but its own tags do not change, so it never joins the
	// frontier and C stays unknown.
	graph := map[string][]string{"B": {"C"}, "C": {"D"}, "D": {}}
	c := New[string, *node]()
	c.Put("A", newNode("B"))
	fetcher := newGraphFetcher(graph)

	report, err := Resolve(context.Background(), c, Single("A"), Params{Query: true}, fetcher, nil)
	require.NoError(t, err)

	assert.Equal(t, HaltConverged, report.Halt)
	assert.Equal(t, []string{"B"}, report.Fetched)
	assert.Equal(t, 1, report.Iterations)
	assert.Equal(t, []string{"A", "B"}, c.Keys())
	assert.Equal(t, []string{"Unknown(C)"}, tags(c, "B"))
	assert.Zero(t, fetcher.Calls("C"))
}

func TestResolve_DepthBoundsRewritePasses(t *testing.T) {
	// A chain A -> B -> C -> D -> E needs four fetch levels.
	graph := map[string][]string{"B": {"C"}, "C": {"D"}, "D": {"E"}, "E": {}}

	for depth := 1; depth <= 3; depth++ {
		c := New[string, *node]()
		c.Put("A", newNode("B"))

		report, err := Resolve(context.Background(), c, All[string](), Params{Depth: depth, Query: true}, newGraphFetcher(graph), nil)
		require.NoError(t, err)

		assert.Equal(t, depth, report.Iterations)
		assert.Equal(t, HaltMaxDepth, report.Halt)
		assert.Equal(t, depth+1, c.Len(), "depth %d fetches one level per iteration", depth)
	}
}

func TestResolve_DeltaMatchesUnknownCounts(t *testing.T) {
	c := New[string, *node]()
	c.Put("A", &node{Refs: []Reference[string]{Unknown("B"), Cached("X"), Unknown("C"), Unknown("missing")}})
	c.Put("B", newNode("A"))
	fetcher := newGraphFetcher(map[string][]string{"C": {"B"}})

	before := map[string]int{}
	for key, n := range c.All() {
		before[key] = n.UnknownRelationCount()
	}

	deltas := map[string]int{}
	_, err := Resolve(context.Background(), c, Single("A"), Params{Depth: 1, Query: true}, fetcher, func(key string, n *node, delta int) {
		deltas[key] += delta
	})
	require.NoError(t, err)

	// A: B and C became known (+2), X is not cached (-1), missing failed.
	assert.Equal(t, 1, deltas["A"])
	for key, delta := range deltas {
		old, existed := before[key]
		if !existed {
			continue // fetched during the run
		}
		n, _ := c.Get(key)
		assert.Equal(t, old-n.UnknownRelationCount(), delta, "entry %s", key)
	}
}

func TestResolve_IdempotentWithoutQuery(t *testing.T) {
	c := New[string, *node]()
	c.Put("A", newNode("B", "Z"))
	c.Put("B", newNode("A", "Y"))

	for _, target := range []Target[string]{All[string](), Single("A"), Multiple("A", "B")} {
		t.Run(target.String(), func(t *testing.T) {
			_, err := Resolve(context.Background(), c, target, Params{}, nil, nil)
			require.NoError(t, err)
			snapshot := map[string][]string{"A": tags(c, "A"), "B": tags(c, "B")}

			rec := &recorder{}
			_, err = Resolve(context.Background(), c, target, Params{}, nil, rec.record)
			require.NoError(t, err)

			assert.Empty(t, rec.all(), "second call reports no changes")
			if diff := cmp.Diff(snapshot, map[string][]string{"A": tags(c, "A"), "B": tags(c, "B")}); diff != "" {
				t.Errorf("cache changed on second call (-first +second):\n%s", diff)
			}
		})
	}
}

func TestResolve_FetchFailuresAreNonFatal(t *testing.T) {
	c := New[string, *node]()
	c.Put("A", newNode("B", "gone"))
	fetcher := newGraphFetcher(map[string][]string{"B": {}})

	report, err := Resolve(context.Background(), c, All[string](), Params{Query: true}, fetcher, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Cached(B)", "Unknown(gone)"}, tags(c, "A"))
	require.Contains(t, report.Failed, "gone")
	assert.Equal(t, 1, fetcher.Calls("gone"), "failed keys are not retried within a run")
	assert.False(t, c.Has("gone"))
}

func TestResolve_FailedKeyRetriedOnNextCall(t *testing.T) {
	c := New[string, *node]()
	c.Put("A", newNode("B"))
	graph := map[string][]string{}
	fetcher := newGraphFetcher(graph)

	_, err := Resolve(context.Background(), c, Single("A"), Params{Query: true}, fetcher, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Unknown(B)"}, tags(c, "A"))

	graph["B"] = []string{}
	_, err = Resolve(context.Background(), c, Single("A"), Params{Query: true}, fetcher, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"Cached(B)"}, tags(c, "A"))
	assert.Equal(t, 2, fetcher.Calls("B"))
}

func TestResolve_FrontierLimitsDiscovery(t *testing.T) {
	c := New[string, *node]()
	c.Put("A", newNode("B"))
	c.Put("Other", newNode("Elsewhere"))
	fetcher := newGraphFetcher(map[string][]string{"B": {}, "Elsewhere": {}})

	_, err := Resolve(context.Background(), c, Single("A"), Params{Query: true}, fetcher, nil)
	require.NoError(t, err)

	assert.Zero(t, fetcher.Calls("Elsewhere"), "entries outside the frontier are not scanned")
	assert.Equal(t, []string{"Unknown(Elsewhere)"}, tags(c, "Other"))
}

func TestResolve_RewriteReachesEntriesOutsideFrontier(t *testing.T) {
	c := New[string, *node]()
	c.Put("A", newNode("B"))
	c.Put("Other", newNode("B"))
	fetcher := newGraphFetcher(map[string][]string{"B": {}})
	rec := &recorder{}

	_, err := Resolve(context.Background(), c, Single("A"), Params{Depth: 1, Query: true}, fetcher, rec.record)
	require.NoError(t, err)

	assert.Equal(t, []string{"Cached(B)"}, tags(c, "Other"))
	assert.Equal(t, []change{{"A", 1}, {"Other", 1}}, rec.all())
}

func TestResolve_MultipleRoots(t *testing.T) {
	c := New[string, *node]()
	c.Put("A", newNode("B"))
	c.Put("C", newNode("D"))
	fetcher := newGraphFetcher(map[string][]string{"B": {}, "D": {}})

	report, err := Resolve(context.Background(), c, Multiple("A", "C"), Params{Query: true}, fetcher, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"A", "B", "C", "D"}, c.Keys())
	assert.Equal(t, HaltConverged, report.Halt)
}

func TestResolve_AllWithoutQueryStalls(t *testing.T) {
	c := New[string, *node]()
	c.Put("A", newNode("missing"))

	report, err := Resolve(context.Background(), c, All[string](), Params{}, nil, nil)
	require.NoError(t, err)

	assert.Equal(t, HaltStalled, report.Halt)
	assert.Equal(t, 1, report.Iterations)
}

func TestResolve_EmptyCacheConverges(t *testing.T) {
	c := New[string, *node]()

	report, err := Resolve(context.Background(), c, All[string](), Params{Query: true}, newGraphFetcher(nil), nil)
	require.NoError(t, err)

	assert.Equal(t, HaltConverged, report.Halt)
}

func TestResolve_PanicsOnAbsentRoot(t *testing.T) {
	c := New[string, *node]()

	assert.PanicsWithValue(t, "cache: resolve root nope is not cached", func() {
		_, _ = Resolve(context.Background(), c, Single("nope"), Params{}, nil, nil)
	})
}

func TestResolve_PanicsOnQueryWithoutFetcher(t *testing.T) {
	c := New[string, *node]()
	c.Put("A", newNode())

	assert.Panics(t, func() {
		_, _ = Resolve(context.Background(), c, All[string](), Params{Query: true}, nil, nil)
	})
}

func TestResolve_CanceledContext(t *testing.T) {
	c := New[string, *node]()
	c.Put("A", newNode("B"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := Resolve(ctx, c, All[string](), Params{Query: true}, newGraphFetcher(nil), nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, HaltCanceled, report.Halt)
	assert.Zero(t, report.Iterations)
}

func TestResolve_CanceledDuringFetch(t *testing.T) {
	c := New[string, *node]()
	c.Put("A", newNode("B"))
	ctx, cancel := context.WithCancel(context.Background())

	fetcher := FetcherFunc[string, *node](func(ctx context.Context, _ string) (*node, error) {
		cancel()
		return nil, ctx.Err()
	})
	report, err := Resolve(ctx, c, All[string](), Params{Query: true}, fetcher, nil)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, HaltCanceled, report.Halt)
	assert.Contains(t, report.Failed, "B")
	assert.Equal(t, []string{"Unknown(B)"}, tags(c, "A"))
}

func TestResolve_ParallelismLimit(t *testing.T) {
	graph := map[string][]string{}
	refs := []string{}
	for _, k := range []string{"b", "c", "d", "e", "f", "g"} {
		graph[k] = []string{}
		refs = append(refs, k)
	}
	c := New[string, *node]()
	c.Put("a", newNode(refs...))
	fetcher := newGraphFetcher(graph)

	report, err := Resolve(context.Background(), c, Single("a"), Params{Query: true, Parallelism: 2}, fetcher, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"b", "c", "d", "e", "f", "g"}, report.Fetched)
	assert.Equal(t, 6, fetcher.TotalCalls())
}

func TestUpdateRelations(t *testing.T) {
	c := New[string, *node]()
	c.Put("A", &node{Refs: []Reference[string]{Cached("gone"), Unknown("B"), Unknown("C")}})
	c.Put("B", newNode())
	c.Put("C", newNode())
	rec := &recorder{}

	changed := UpdateRelations(c, rec.record)

	assert.Equal(t, 1, changed)
	assert.Equal(t, []string{"Unknown(gone)", "Cached(B)", "Cached(C)"}, tags(c, "A"))
	assert.Equal(t, []change{{"A", 1}}, rec.all())
}

func TestTarget_String(t *testing.T) {
	assert.Equal(t, "All", All[string]().String())
	assert.Equal(t, "Single(a)", Single("a").String())
	assert.Equal(t, "Multiple([a b])", Multiple("a", "b").String())
	assert.True(t, All[string]().IsAll())
	assert.Equal(t, []string{"a", "b"}, Multiple("a", "b").Roots())
}
