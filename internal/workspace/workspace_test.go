package workspace_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "archstatus/internal/errors"
	"archstatus/internal/merge"
	"archstatus/internal/model"
	"archstatus/internal/status"
	"archstatus/internal/workspace"
)

// withTempHome redirects os.UserHomeDir to a temp directory for the test.
func withTempHome(t *testing.T) string {
	t.Helper()
	tmp := t.TempDir()
	t.Setenv("HOME", tmp)
	return tmp
}

func newWorkspace(t *testing.T, name string) *workspace.Workspace {
	t.Helper()
	w, err := workspace.Init(name)
	require.NoError(t, err)
	return w
}

func doc(id string) *model.Document {
	return &model.Document{
		GraphID:  id,
		LastScan: "2026-10-18T10:00:00Z",
		Assets:   []model.Asset{{ID: "a", Type: "library.go", Metadata: model.Metadata{Language: "go"}, Status: status.New(status.Built)}},
		Edges:    []model.Edge{},
	}
}

func TestInitAndOpen(t *testing.T) {
	tmp := withTempHome(t)

	w := newWorkspace(t, "team")
	dir := filepath.Join(tmp, ".archstatus", "team")
	assert.Equal(t, dir, w.Dir)
	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	_, err = workspace.Init("team")
	assert.True(t, apperrors.IsType(err, apperrors.TypeInput), "duplicate init: %v", err)

	opened, err := workspace.Open("team")
	require.NoError(t, err)
	assert.Equal(t, dir, opened.Dir)
}

func TestOpenMissing(t *testing.T) {
	withTempHome(t)
	_, err := workspace.Open("nope")
	assert.True(t, apperrors.IsType(err, apperrors.TypeNotFound))
}

func TestInvalidNames(t *testing.T) {
	withTempHome(t)
	for _, name := range []string{"", "..", "a/b", `a\b`} {
		_, err := workspace.Init(name)
		assert.True(t, apperrors.IsType(err, apperrors.TypeInput), "name %q", name)
	}
	w := newWorkspace(t, "ok")
	assert.Error(t, w.AddSource("../escape", workspace.Source{}))
}

func TestListAndRemove(t *testing.T) {
	withTempHome(t)
	names, err := workspace.List()
	require.NoError(t, err)
	assert.Empty(t, names)

	newWorkspace(t, "b")
	newWorkspace(t, "a")
	names, err = workspace.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, names)

	require.NoError(t, workspace.Remove("a"))
	names, _ = workspace.List()
	assert.Equal(t, []string{"b"}, names)
	assert.True(t, apperrors.IsType(workspace.Remove("a"), apperrors.TypeNotFound))
}

func TestSourceRoundtrip(t *testing.T) {
	withTempHome(t)
	w := newWorkspace(t, "ws")

	src := workspace.Source{
		Scanner:    "gopkg",
		Repository: "https://github.com/org/repo",
		Metadata:   merge.SourceMetadata{Topics: []string{"cli"}, Language: "go"},
		Options:    map[string]string{"branch": "main"},
	}
	require.NoError(t, w.AddSource("repo", src))
	assert.Error(t, w.AddSource("repo", src), "duplicate source")

	got, err := w.LoadSource("repo")
	require.NoError(t, err)
	assert.Equal(t, src, *got)
	assert.Equal(t, "https://github.com/org/repo", got.Location())

	_, err = w.LoadSource("ghost")
	assert.True(t, apperrors.IsType(err, apperrors.TypeNotFound))
}

func TestListAndRemoveSources(t *testing.T) {
	withTempHome(t)
	w := newWorkspace(t, "ws")

	names, err := w.ListSources()
	require.NoError(t, err)
	assert.Empty(t, names)

	require.NoError(t, w.AddSource("zeta", workspace.Source{Scanner: "gopkg", Path: "/src/zeta"}))
	require.NoError(t, w.AddSource("alpha", workspace.Source{Scanner: "gopkg", Path: "/src/alpha"}))
	require.NoError(t, w.WriteStatus("alpha", doc("alpha")))

	names, err = w.ListSources()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, names, "status directories are not sources")

	require.NoError(t, w.RemoveSource("alpha"))
	_, err = os.Stat(filepath.Join(w.Dir, "alpha"))
	assert.True(t, os.IsNotExist(err), "status directory removed with the source")
	assert.True(t, apperrors.IsType(w.RemoveSource("alpha"), apperrors.TypeNotFound))
}

func TestStatusAndGraphs(t *testing.T) {
	withTempHome(t)
	w := newWorkspace(t, "ws")
	require.NoError(t, w.AddSource("api", workspace.Source{Scanner: "gopkg", Metadata: merge.SourceMetadata{Topics: []string{"http"}}}))
	require.NoError(t, w.AddSource("later", workspace.Source{Scanner: "gopkg"}))

	_, err := w.ReadStatus("api")
	assert.True(t, apperrors.IsType(err, apperrors.TypeNotFound))

	require.NoError(t, w.WriteStatus("api", doc("api-graph")))
	got, err := w.ReadStatus("api")
	require.NoError(t, err)
	assert.Equal(t, "api-graph", got.GraphID)

	graphs, missing, err := w.Graphs()
	require.NoError(t, err)
	assert.Equal(t, []string{"later"}, missing)
	require.Len(t, graphs, 1)
	assert.Equal(t, "api", graphs[0].Name)
	assert.Equal(t, []string{"http"}, graphs[0].Metadata.Topics)
	assert.Equal(t, "go", graphs[0].Metadata.Language)
}

func TestSnapshot(t *testing.T) {
	withTempHome(t)
	w := newWorkspace(t, "ws")
	require.NoError(t, w.AddSource("api", workspace.Source{Scanner: "gopkg"}))
	require.NoError(t, w.AddSource("web", workspace.Source{Scanner: "gopkg"}))
	require.NoError(t, w.WriteStatus("api", doc("api")))

	dst := filepath.Join(t.TempDir(), "snap")
	require.NoError(t, w.Snapshot(dst, "# Weekly\n"))

	data, err := os.ReadFile(filepath.Join(dst, "api.status.json"))
	require.NoError(t, err)
	parsed, err := model.Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "api", parsed.GraphID)

	_, err = os.Stat(filepath.Join(dst, "web.status.json"))
	assert.True(t, os.IsNotExist(err), "unscanned sources are skipped")

	note, err := os.ReadFile(filepath.Join(dst, "index.md"))
	require.NoError(t, err)
	assert.Equal(t, "# Weekly\n", string(note))

	assert.Error(t, w.Snapshot(dst, ""), "existing target")
}
