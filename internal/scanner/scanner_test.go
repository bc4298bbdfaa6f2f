package scanner

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "archstatus/internal/errors"
	"archstatus/internal/model"
	"archstatus/internal/status"
)

var fixedNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// demoModule writes a module with a command, a tested library, an
// untested library and a denied generated package.
func demoModule(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeFiles(t, root, map[string]string{
		"go.mod": "module example.com/demo\n\ngo 1.22\n",
		"main.go": `package main

import (
	"fmt"

	"example.com/demo/internal/store"
	"example.com/demo/internal/api"
)

func main() { fmt.Println(store.Name, api.Name) }
`,
		"internal/store/store.go":      "package store\n\nconst Name = \"store\"\n",
		"internal/store/store_test.go": "package store\n",
		"internal/api/api.go": `package api

import "example.com/demo/internal/store"

const Name = "api:" + store.Name
`,
		"gen/gen.go":                 "package gen\n",
		"testdata/skip.go":           "package skip\n",
		".archstatus/settings.yaml":  "permissions:\n  deny:\n    - Read(./gen/**)\n",
	})
	return root
}

func newScanner(t *testing.T) *GoPackages {
	return &GoPackages{Options: Options{Logger: zaptest.NewLogger(t), Now: func() time.Time { return fixedNow }}}
}

func TestNew(t *testing.T) {
	s, err := New("gopkg", Options{})
	require.NoError(t, err)
	assert.Equal(t, "gopkg", s.Name())
	assert.Equal(t, []string{"gopkg"}, Names())

	qs := s.Questions()
	require.NotEmpty(t, qs)
	assert.Equal(t, "repository", qs[0].Key)

	_, err = New("svn", Options{})
	assert.True(t, apperrors.IsType(err, apperrors.TypeNotFound))
}

func TestScan_MissingLocation(t *testing.T) {
	_, err := newScanner(t).Scan(context.Background(), map[string]string{})
	assert.True(t, apperrors.IsType(err, apperrors.TypeInput))
}

func TestScan_NotADirectory(t *testing.T) {
	_, err := newScanner(t).Scan(context.Background(), map[string]string{"path": filepath.Join(t.TempDir(), "missing")})
	assert.True(t, apperrors.IsType(err, apperrors.TypeInput))
}

func assertDemoDocument(t *testing.T, doc *model.Document) {
	t.Helper()
	ids := make([]string, len(doc.Assets))
	for i, a := range doc.Assets {
		ids[i] = a.ID
	}
	assert.Equal(t, []string{"example.com/demo", "example.com/demo/internal/api", "example.com/demo/internal/store"}, ids)

	root := doc.AssetByID("example.com/demo")
	require.NotNil(t, root)
	assert.Equal(t, commandType, root.Type)
	assert.Equal(t, status.Building, root.Status.State, "untested packages are still building")

	store := doc.AssetByID("example.com/demo/internal/store")
	require.NotNil(t, store)
	assert.Equal(t, libraryType, store.Type)
	assert.Equal(t, "internal/store", store.Location)
	assert.Equal(t, status.Built, store.Status.State)
	assert.Equal(t, 2.0, *store.Analytics.Connectivity)
	assert.Equal(t, 1.0, *store.Analytics.CentralityScore)
	assert.Nil(t, store.Analytics.ActivityLast30Days, "no git history outside a repository")
	require.NotNil(t, store.Status.Reliability, "documents are enriched")

	assert.ElementsMatch(t, []string{
		"example.com/demo->example.com/demo/internal/api",
		"example.com/demo->example.com/demo/internal/store",
		"example.com/demo/internal/api->example.com/demo/internal/store",
	}, edgeKeys(doc))
	for _, e := range doc.Edges {
		assert.Equal(t, model.DependsOn, e.Type)
	}
}

func edgeKeys(doc *model.Document) []string {
	var out []string
	for _, e := range doc.Edges {
		out = append(out, e.From+"->"+e.To)
	}
	return out
}

func TestScanDir(t *testing.T) {
	root := demoModule(t)
	doc, err := newScanner(t).ScanDir(context.Background(), root, "https://github.com/example/demo")
	require.NoError(t, err)

	assertDemoDocument(t, doc)
	assert.Equal(t, "2026-10-18T12:00:00Z", doc.LastScan)
	assert.NotEmpty(t, doc.GraphID)

	again, err := newScanner(t).ScanDir(context.Background(), root, "https://github.com/example/demo")
	require.NoError(t, err)
	assert.Equal(t, doc.GraphID, again.GraphID, "graph id is derived from the source")
}

func TestParsePackages(t *testing.T) {
	root := demoModule(t)
	deny, err := RepoDeny(root)
	require.NoError(t, err)
	dirs, err := collectGoFiles(root, deny)
	require.NoError(t, err)

	pkgs, err := parsePackages(root, dirs)
	require.NoError(t, err)
	assertDemoDocument(t, enriched(buildDocument(pkgs, func(string) *dirHistory { return nil }, fixedNow)))
}

func enriched(doc *model.Document) *model.Document {
	doc.Enrich()
	return doc
}

func TestCollectGoFiles(t *testing.T) {
	root := demoModule(t)
	dirs, err := collectGoFiles(root, DenyList{"Read(./gen/**)"})
	require.NoError(t, err)

	assert.Equal(t, []string{".", "internal/api", "internal/store"}, sortedDirs(dirs))
	assert.Equal(t, []string{"internal/store/store_test.go"}, dirs["internal/store"].Tests)
}

func TestBuildDocument_History(t *testing.T) {
	pkgs := []pkgInfo{{Rel: "svc", Path: "m/svc", Name: "svc", Files: 1}}
	hist := func(rel string) *dirHistory {
		return &dirHistory{Commits: 12, Authors: []string{"ana", "bo"}, LastUpdate: fixedNow.Add(-time.Hour)}
	}
	doc := buildDocument(pkgs, hist, fixedNow)
	a := doc.Assets[0]
	assert.Equal(t, 12.0, *a.Analytics.ActivityLast30Days)
	assert.Equal(t, []string{"ana", "bo"}, a.Metadata.Authors)
	assert.Equal(t, "2026-10-18T11:00:00Z", a.Metadata.LastUpdate)
	assert.Equal(t, 0.0, *a.Analytics.CentralityScore, "a lone package has no centrality")
}

func TestPackageStatus(t *testing.T) {
	broken := packageStatus(pkgInfo{Files: 1, Errors: []string{"undefined: x"}})
	assert.Equal(t, status.Broken, broken.State)
	assert.Equal(t, "undefined: x", broken.Quality.Notes)

	built := packageStatus(pkgInfo{Files: 4, Tests: 2})
	assert.Equal(t, status.Built, built.State)
	assert.Equal(t, 0.5, *built.Quality.QualityScore)

	assert.Equal(t, status.Building, packageStatus(pkgInfo{Files: 2}).State)
}

func TestParseHistory(t *testing.T) {
	out := "\x1eana\x1f2026-10-17T10:00:00+00:00\n\ninternal/store/store.go\ninternal/store/db.go\nmain.go\n" +
		"\x1ebo\x1f2026-10-18T09:00:00+00:00\n\ninternal/store/store.go\n" +
		"\x1eana\x1f2026-10-10T09:00:00+00:00\n\ninternal/api/api.go\n"
	h := parseHistory([]byte(out))

	require.Contains(t, h, "internal/store")
	assert.Equal(t, 2, h["internal/store"].Commits, "one commit per directory touched")
	assert.Equal(t, []string{"ana", "bo"}, h["internal/store"].Authors)
	assert.Equal(t, time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC), h["internal/store"].LastUpdate.UTC())
	assert.Equal(t, 1, h["."].Commits)
	assert.Equal(t, 1, h["internal/api"].Commits)
}

func TestDenyList(t *testing.T) {
	deny := DenyList{"Read(./gen/**)", "**/*_mock.go", "docs/*.go"}
	cases := map[string]bool{
		"gen":                  true,
		"gen/api/client.go":    true,
		"internal/x_mock.go":   true,
		"docs/a.go":            true,
		"docs/nested/a.go":     false,
		"internal/store/db.go": false,
		"generated/x.go":       false,
	}
	for p, want := range cases {
		assert.Equal(t, want, deny.Denied(p), p)
	}
	assert.False(t, DenyList(nil).Denied("anything"))
}

func TestRepoDeny(t *testing.T) {
	root := t.TempDir()
	deny, err := RepoDeny(root)
	require.NoError(t, err)
	assert.Empty(t, deny)

	writeFiles(t, root, map[string]string{".archstatus/settings.yaml": "permissions: [broken\n"})
	_, err = RepoDeny(root)
	assert.True(t, apperrors.IsType(err, apperrors.TypeConfig))
}
