package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mxyns/ietf-rfc-dep/internal/doc"
	"github.com/mxyns/ietf-rfc-dep/internal/engine"
	"github.com/mxyns/ietf-rfc-dep/internal/registry"
)

const ipv6Title = "Internet Protocol, Version 6 (IPv6) Specification"

// cliEnv is a temp directory holding a registry and a database.
type cliEnv struct {
	dir      string
	db       string
	registry string
}

func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	dir := t.TempDir()
	env := &cliEnv{
		dir:      dir,
		db:       filepath.Join(dir, "rfcdep.db"),
		registry: filepath.Join(dir, "registry"),
	}

	reg := registry.NewDir(env.registry)
	docs := []doc.Document{
		{
			Summary: doc.NewSummary("RFC 8200", "", ipv6Title),
			Meta:    []doc.Meta{doc.ListMeta(doc.KindObsoletes, "RFC 2460")},
		},
		{
			Summary: doc.NewSummary("RFC 2460", "", ipv6Title),
			Meta:    []doc.Meta{doc.ListMeta(doc.KindObsoletes, "RFC 1883")},
		},
		{Summary: doc.NewSummary("RFC 1883", "", ipv6Title)},
		{
			Summary: doc.NewSummary("draft-ietf-6man-rfc2460bis", "13", ipv6Title),
			Meta:    []doc.Meta{doc.NameMeta(doc.KindReplaces, "draft-hinden-6man-rfc2460bis")},
		},
	}
	for _, d := range docs {
		require.NoError(t, reg.Put(d))
	}
	return env
}

// run executes the CLI against the environment's database and registry.
func (env *cliEnv) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	base := []string{
		"--db", env.db,
		"--registry", env.registry,
		"--config", filepath.Join(env.dir, "absent.cue"),
	}
	return env.runRaw(t, append(base, args...)...)
}

// runRaw executes the CLI with exactly args.
func (env *cliEnv) runRaw(t *testing.T, args ...string) (string, error) {
	t.Helper()
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	opts := &RootOptions{RunTokens: engine.NewFixedGenerator("run-1", "run-2", "run-3")}
	cmd := newRootCommand(opts)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func (env *cliEnv) mustRun(t *testing.T, args ...string) string {
	t.Helper()
	out, err := env.run(t, args...)
	require.NoError(t, err, "output:\n%s", out)
	return out
}

// jsonResponse mirrors Response with a raw payload.
type jsonResponse struct {
	Status        string                `json:"status"`
	Data          json.RawMessage       `json:"data"`
	Error         *ResponseError        `json:"error"`
	Notifications []engine.Notification `json:"notifications"`
}

func decodeResponse[T any](t *testing.T, out string) (T, jsonResponse) {
	t.Helper()
	var resp jsonResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp), "output:\n%s", out)
	var data T
	if len(resp.Data) > 0 {
		require.NoError(t, json.Unmarshal(resp.Data, &data))
	}
	return data, resp
}

func listIDs(t *testing.T, env *cliEnv, args ...string) []string {
	t.Helper()
	out := env.mustRun(t, append([]string{"--format", "json", "ls"}, args...)...)
	views, _ := decodeResponse[[]DocumentView](t, out)
	ids := []string{}
	for _, v := range views {
		ids = append(ids, v.ID)
	}
	return ids
}

func TestAdd_CachesAcrossInvocations(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "add", "RFC 8200")
	assert.Equal(t, "Added rfc8200 (1 missing dependencies)\n", out)

	out = env.mustRun(t, "--format", "json", "ls")
	views, resp := decodeResponse[[]DocumentView](t, out)
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, views, 1)
	assert.Equal(t, "rfc8200", views[0].ID)
	assert.Equal(t, 1, views[0].MissingDeps)
	assert.True(t, views[0].IsRFC)
	assert.Equal(t, "https://datatracker.ietf.org/doc/rfc8200", views[0].URL)

	out = env.mustRun(t, "add", "rfc2460")
	assert.Equal(t, "Added rfc2460 (1 missing dependencies)\n", out)

	out = env.mustRun(t, "--format", "json", "show", "rfc8200")
	view, _ := decodeResponse[DocumentView](t, out)
	assert.Equal(t, 0, view.MissingDeps, "adding rfc2460 completes rfc8200")
	assert.Equal(t, []RelationView{{Kind: doc.KindObsoletes, References: []string{"Cached(rfc2460)"}}}, view.Relations)
}

func TestAdd_UnknownDocumentFails(t *testing.T) {
	env := newCLIEnv(t)

	out, err := env.run(t, "add", "rfc8200", "rfc9999")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "[1] error: Could not import rfc9999")
	assert.Contains(t, out, "Error [NOT_FOUND]")

	assert.Equal(t, []string{"rfc8200"}, listIDs(t, env), "documents fetched before the failure are kept")
}

func TestShow(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "add", "draft-ietf-6man-rfc2460bis")

	out := env.mustRun(t, "show", "draft-ietf-6man-rfc2460bis")
	assert.Equal(t, "draft-ietf-6man-rfc2460bis-13  "+ipv6Title+"\n"+
		"  url:      https://datatracker.ietf.org/doc/draft-ietf-6man-rfc2460bis\n"+
		"  missing:  0\n"+
		"  flags:    --\n"+
		"  replaces: draft-hinden-6man-rfc2460bis\n", out)

	out, err := env.run(t, "--format", "json", "show", "rfc1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	_, resp := decodeResponse[any](t, out)
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "NOT_CACHED", resp.Error.Code)
}

func TestResolve_SingleFollowsChangedDocuments(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "add", "rfc8200")

	out := env.mustRun(t, "--format", "json", "resolve", "RFC 8200")
	view, resp := decodeResponse[ResolveView](t, out)

	require.Len(t, view.Runs, 1)
	run := view.Runs[0]
	assert.Equal(t, "run-1", run.RunToken)
	assert.Equal(t, "Single(rfc8200)", run.Target)
	assert.Equal(t, "converged", run.Halt)
	assert.Equal(t, 1, run.Iterations)
	// rfc2460 was fetched but none of its own references changed state, so
	// its reference to rfc1883 is not followed.
	assert.Equal(t, []string{"rfc2460"}, run.Fetched)
	assert.Empty(t, run.Failed)
	assert.Equal(t, []string{"rfc2460"}, view.Incomplete)

	require.Len(t, resp.Notifications, 2)
	assert.Equal(t, "Resolving Single(rfc8200)...", resp.Notifications[0].Message)
	assert.Equal(t, engine.LevelSuccess, resp.Notifications[1].Level)

	assert.Equal(t, []string{"rfc2460", "rfc8200"}, listIDs(t, env), "fetched documents are saved")
	assert.Equal(t, []string{"rfc2460"}, listIDs(t, env, "--incomplete"))

	out = env.mustRun(t, "--format", "json", "resolve")
	view, _ = decodeResponse[ResolveView](t, out)
	assert.Equal(t, []string{"rfc1883"}, view.Runs[0].Fetched, "an All run rescans every document")
	assert.Empty(t, view.Incomplete)
}

func TestResolve_TextOutput(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "add", "rfc8200")

	out := env.mustRun(t, "resolve", "--depth", "1")
	assert.Equal(t, "[1] info: Resolving All... (run=run-1)\n"+
		"[2] success: Resolve completed! (1 fetched, 1 updated, max_depth after 1 iterations) (run=run-1)\n"+
		"1 documents have missing dependencies: [rfc2460]\n", out)
}

func TestResolve_NoQueryOnlyRetags(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "add", "rfc8200", "rfc2460")

	out := env.mustRun(t, "--format", "json", "resolve", "--no-query")
	view, _ := decodeResponse[ResolveView](t, out)

	require.Len(t, view.Runs, 1)
	assert.Empty(t, view.Runs[0].Fetched)
	assert.Equal(t, []string{"rfc2460"}, view.Incomplete)
	assert.Equal(t, []string{"rfc2460", "rfc8200"}, listIDs(t, env))
}

func TestResolve_RejectsAbsentRoot(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "add", "rfc8200")

	out, err := env.run(t, "resolve", "rfc8200", "rfc1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, engine.IsNotCached(err))
	assert.Contains(t, out, "Error [NOT_CACHED]")
	assert.Equal(t, []string{"rfc8200"}, listIDs(t, env), "a rejected resolve keeps the snapshot")
}

func TestResolve_Selected(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "add", "rfc8200", "draft-ietf-6man-rfc2460bis")

	_, err := env.run(t, "resolve", "--selected")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, err.Error(), "NOTHING_TO_RESOLVE")

	env.mustRun(t, "mark", "--select", "rfc8200")
	out := env.mustRun(t, "--format", "json", "resolve", "--selected")
	view, _ := decodeResponse[ResolveView](t, out)

	require.Len(t, view.Runs, 1)
	assert.Equal(t, "Single(rfc8200)", view.Runs[0].Target)
	assert.Equal(t, []string{"rfc2460"}, view.Runs[0].Fetched)

	_, err = env.run(t, "resolve", "--selected", "--depth", "2")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRemove(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "add", "rfc8200")
	env.mustRun(t, "resolve")

	out := env.mustRun(t, "rm", "RFC 2460")
	assert.Equal(t, "Removed 1 documents\n", out)
	assert.Equal(t, []string{"rfc1883", "rfc8200"}, listIDs(t, env))
	assert.Equal(t, []string{"rfc8200"}, listIDs(t, env, "--incomplete"), "references to a removed document become unknown")

	_, err := env.run(t, "rm", "rfc2460")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.True(t, engine.IsNotCached(err))

	_, err = env.run(t, "rm")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMark(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "add", "rfc8200", "rfc2460")

	env.mustRun(t, "mark", "--read", "rfc8200")
	out := env.mustRun(t, "mark", "--select")
	assert.Equal(t, "2 documents selected\n", out)
	out = env.mustRun(t, "mark", "--deselect", "rfc2460")
	assert.Equal(t, "1 documents selected\n", out)

	out = env.mustRun(t, "ls")
	assert.Contains(t, out, "ID")
	assert.Regexp(t, `rfc8200\s+00\s+0\s+rs\s+`, out)
	assert.Regexp(t, `rfc2460\s+00\s+1\s+--\s+`, out)
	assert.Equal(t, []string{"rfc8200"}, listIDs(t, env, "--selected"))

	out = env.mustRun(t, "rm", "--selected")
	assert.Equal(t, "Removed 1 documents\n", out)
	assert.Equal(t, []string{"rfc2460"}, listIDs(t, env))

	for _, args := range [][]string{
		{"mark"},
		{"mark", "--read"},
		{"mark", "--read", "--unread", "rfc2460"},
		{"mark", "--select", "--deselect"},
	} {
		_, err := env.run(t, args...)
		require.Error(t, err, "%v", args)
		assert.Equal(t, ExitCommandError, GetExitCode(err), "%v", args)
	}

	_, err := env.run(t, "mark", "--read", "rfc1")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

func TestExportImport(t *testing.T) {
	env := newCLIEnv(t)
	env.mustRun(t, "add", "rfc8200")
	env.mustRun(t, "resolve")
	path := filepath.Join(env.dir, "cache.json")

	out := env.mustRun(t, "export", path)
	assert.Equal(t, "Exported 3 documents to "+path+"\n", out)

	other := newCLIEnv(t)
	other.mustRun(t, "add", "draft-ietf-6man-rfc2460bis")
	out = other.mustRun(t, "import", path)
	assert.Equal(t, "Imported 3 documents (4 cached)\n", out)
	assert.Equal(t, []string{"draft-ietf-6man-rfc2460bis", "rfc1883", "rfc2460", "rfc8200"}, listIDs(t, other))
	assert.Empty(t, listIDs(t, other, "--incomplete"))

	out = other.mustRun(t, "import", "--replace", path)
	assert.Equal(t, "Imported 3 documents (3 cached)\n", out)
	assert.Equal(t, []string{"rfc1883", "rfc2460", "rfc8200"}, listIDs(t, other))

	_, err := other.run(t, "import", filepath.Join(env.dir, "missing.json"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestLookup(t *testing.T) {
	env := newCLIEnv(t)

	out := env.mustRun(t, "--format", "json", "lookup", "ipv6")
	summaries, _ := decodeResponse[[]doc.Summary](t, out)
	ids := []string{}
	for _, s := range summaries {
		ids = append(ids, s.ID)
	}
	assert.Equal(t, []string{"draft-ietf-6man-rfc2460bis", "rfc1883", "rfc2460", "rfc8200"}, ids)
	assert.Empty(t, listIDs(t, env), "lookup alone caches nothing")

	out = env.mustRun(t, "lookup", "no such title")
	assert.Equal(t, "No match.\n", out)

	_, err := env.run(t, "lookup", "")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.ErrorIs(t, err, registry.ErrEmptyQuery)
}

func TestLookup_AddUsesConfiguredQuery(t *testing.T) {
	env := newCLIEnv(t)
	cfg := filepath.Join(env.dir, "rfcdep.cue")
	require.NoError(t, os.WriteFile(cfg, []byte(`
database: "`+env.db+`"
registry: "`+env.registry+`"
query: {
	limit:          2
	include_drafts: false
}
`), 0o644))

	out, err := env.runRaw(t, "--config", cfg, "lookup", "--add", "ipv6")
	require.NoError(t, err, "output:\n%s", out)
	assert.Equal(t, "rfc1883\t"+ipv6Title+"\nrfc2460\t"+ipv6Title+"\nAdded 2 documents\n", out)
	assert.Equal(t, []string{"rfc1883", "rfc2460"}, listIDs(t, env))
}

func TestConfigErrors(t *testing.T) {
	env := newCLIEnv(t)
	cfg := filepath.Join(env.dir, "bad.cue")
	require.NoError(t, os.WriteFile(cfg, []byte(`max_depth: -1`), 0o644))

	_, err := env.runRaw(t, "--config", cfg, "ls")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Equal(t, "CONFIG_INVALID", ErrorCode(err))

	_, err = env.runRaw(t, "--config", cfg, "--db", env.db, "ls")
	require.Error(t, err, "flags override values, not a broken file")
}

func TestDatabaseErrors(t *testing.T) {
	env := newCLIEnv(t)

	_, err := env.runRaw(t,
		"--config", filepath.Join(env.dir, "absent.cue"),
		"--db", filepath.Join(env.dir, "no", "such", "dir", "rfcdep.db"),
		"ls",
	)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), "failed to open database")
}
