package merge

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	apperrors "archstatus/internal/errors"
	"archstatus/internal/model"
	"archstatus/internal/status"
)

var fixedNow = time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)

func fptr(f float64) *float64 { return &f }

func source(name, lang string, topics ...string) SourceGraph {
	return SourceGraph{
		Name:        name,
		ProjectName: name,
		Status:      status.New(status.Built),
		Metadata:    SourceMetadata{Language: lang, Topics: topics},
		Stats:       SourceStats{TotalCommitsLast30Days: 10},
		Nodes: []Node{
			{ID: "api", Name: "API", Type: "service.api", Status: status.New(status.Building), Position: Position{X: 100, Y: 5, Z: 50}},
			{ID: "db", Name: "DB", Type: "store.sql", Status: status.New(status.Built)},
		},
		Edges: []Edge{{ID: "e1", From: "api", To: "db", Type: model.DependsOn}},
	}
}

func newMerger(t *testing.T) *Merger {
	return &Merger{Logger: zaptest.NewLogger(t), Now: func() time.Time { return fixedNow }}
}

func inferred(g *Graph) []Edge {
	var out []Edge
	for _, e := range g.Edges {
		if len(e.ID) > len("inter-edge-") && e.ID[:len("inter-edge-")] == "inter-edge-" {
			out = append(out, e)
		}
	}
	return out
}

func TestMerge_SharedTopic(t *testing.T) {
	res := newMerger(t).Merge([]SourceGraph{
		source("cli", "python", "python", "cli"),
		source("web", "python", "python", "web"),
	})
	require.Empty(t, res.Skipped)

	edges := inferred(res.Graph)
	require.Len(t, edges, 1, "a pair is linked at most once")
	e := edges[0]
	assert.Equal(t, "project-0", e.From)
	assert.Equal(t, "project-1", e.To)
	assert.Equal(t, model.RelatedTo, e.Type)
	assert.Equal(t, 0.3, *e.Strength)
	assert.Equal(t, "Shared: python", e.Label)
}

func TestMerge_SameLanguage(t *testing.T) {
	res := newMerger(t).Merge([]SourceGraph{
		source("a", "go", "infra"),
		source("b", "go", "web"),
		source("c", "rust"),
	})
	edges := inferred(res.Graph)
	require.Len(t, edges, 1)
	assert.Equal(t, "Same language: go", edges[0].Label)
	assert.Equal(t, 0.2, *edges[0].Strength)
}

func TestMerge_LabelCapsSharedTags(t *testing.T) {
	res := newMerger(t).Merge([]SourceGraph{
		source("a", "", "z", "b", "a", "c"),
		source("b", "", "c", "a", "b"),
	})
	edges := inferred(res.Graph)
	require.Len(t, edges, 1)
	assert.Equal(t, "Shared: a, b", edges[0].Label)
}

func TestMerge_EmptyLanguageNeverMatches(t *testing.T) {
	res := newMerger(t).Merge([]SourceGraph{source("a", ""), source("b", "")})
	assert.Empty(t, inferred(res.Graph))
}

func TestMerge_EdgeCount(t *testing.T) {
	sources := []SourceGraph{
		source("s0", "python", "python", "cli"),
		source("s1", "python", "web"),
		source("s2", "go", "web", "python"),
		source("s3", "go"),
		source("s4", ""),
	}
	sources[3].Edges = append(sources[3].Edges, Edge{From: "db", To: "api", Type: model.References})

	inputEdges := 0
	for _, s := range sources {
		inputEdges += len(s.Edges)
	}
	// s0-s1 language, s0-s2 tags, s1-s2 tags, s2-s3 language.
	const qualifyingPairs = 4

	res := newMerger(t).Merge(sources)
	assert.Len(t, res.Graph.Edges, inputEdges+qualifyingPairs)
	assert.Len(t, inferred(res.Graph), qualifyingPairs)
	assert.Equal(t, len(res.Graph.Edges), res.Graph.Stats.TotalEdges)
}

func TestMerge_Namespacing(t *testing.T) {
	res := newMerger(t).Merge([]SourceGraph{source("alpha", "go"), source("beta", "go")})
	g := res.Graph

	ids := map[string]bool{}
	for _, n := range g.Nodes {
		assert.False(t, ids[n.ID], "duplicate node id %s", n.ID)
		ids[n.ID] = true
	}
	assert.True(t, ids["alpha-api"])
	assert.True(t, ids["beta-db"])

	var alphaAPI Node
	for _, n := range g.Nodes {
		if n.ID == "alpha-api" {
			alphaAPI = n
		}
	}
	assert.Equal(t, "project-0", alphaAPI.Metadata["parent"])

	for _, e := range g.Edges {
		if e.ID == "alpha-e1" {
			assert.Equal(t, "alpha-api", e.From)
			assert.Equal(t, "alpha-db", e.To)
		}
		assert.True(t, ids[e.From], "dangling edge %s", e.ID)
		assert.True(t, ids[e.To], "dangling edge %s", e.ID)
	}
}

func assertUniqueIDs(t *testing.T, g *Graph) {
	t.Helper()
	nodes := map[string]int{}
	for _, n := range g.Nodes {
		nodes[n.ID]++
	}
	for id, c := range nodes {
		assert.Equal(t, 1, c, "node id %q", id)
	}
	edges := map[string]int{}
	for _, e := range g.Edges {
		edges[e.ID]++
		assert.Contains(t, nodes, e.From, "edge %s", e.ID)
		assert.Contains(t, nodes, e.To, "edge %s", e.ID)
	}
	for id, c := range edges {
		assert.Equal(t, 1, c, "edge id %q", id)
	}
}

func TestMerge_DuplicateSourceNames(t *testing.T) {
	res := newMerger(t).Merge([]SourceGraph{
		source("status", "go"),
		source("status", "go"),
	})
	g := res.Graph
	assertUniqueIDs(t, g)
	assert.Equal(t, []string{"status", "status-2"}, g.Sources)

	second := map[string]bool{}
	for _, n := range g.Nodes {
		second[n.ID] = true
	}
	assert.True(t, second["status-2-api"])
	assert.True(t, second["status-2-db"])

	var e Edge
	for _, edge := range g.Edges {
		if edge.ID == "status-2-e1" {
			e = edge
		}
	}
	assert.Equal(t, "status-2-api", e.From)
	assert.Equal(t, "status-2-db", e.To)
}

func TestMerge_RootIDsNeverShadowed(t *testing.T) {
	goMeta := SourceMetadata{Language: "go"}
	res := newMerger(t).Merge([]SourceGraph{
		{Name: "api", Metadata: goMeta, Nodes: []Node{{ID: "db"}}, Edges: []Edge{}},
		{Name: "api", Metadata: goMeta, Nodes: []Node{{ID: "db"}}, Edges: []Edge{}},
		{Name: "project", Nodes: []Node{{ID: "0"}, {ID: "1"}}, Edges: []Edge{{ID: "x", From: "0", To: "1"}}},
		{Name: "inter", Nodes: []Node{{ID: "a"}}, Edges: []Edge{{ID: "edge-0", From: "a", To: "a"}}},
	})
	g := res.Graph
	assertUniqueIDs(t, g)
	assert.Equal(t, []string{"api", "api-2", "project", "inter"}, g.Sources)

	ids := map[string]bool{}
	for _, n := range g.Nodes {
		ids[n.ID] = true
	}
	for _, id := range []string{"project-0", "project-1", "project-2", "project-3", "api-db", "api-2-db", "project-0-2", "project-1-2", "inter-a"} {
		assert.True(t, ids[id], "missing node %q", id)
	}

	edges := map[string]Edge{}
	for _, e := range g.Edges {
		edges[e.ID] = e
	}
	assert.Equal(t, "project-0-2", edges["project-x"].From, "edges follow the renamed node")
	assert.Equal(t, "project-1-2", edges["project-x"].To)
	assert.Equal(t, "inter-a", edges["inter-edge-0"].From, "source edge keeps its namespaced id")

	link, ok := edges["inter-edge-0-2"]
	require.True(t, ok, "inferred edge moves aside")
	assert.Equal(t, "project-0", link.From)
	assert.Equal(t, "project-1", link.To)
	assert.Equal(t, "inter-edge-0-2", link.Metadata["edgeId"])
}

func TestIDSet(t *testing.T) {
	ids := idSet{}
	assert.Equal(t, "a", ids.claim("a"))
	assert.Equal(t, "a-2", ids.claim("a"))
	assert.Equal(t, "a-3", ids.claim("a"))
	assert.Equal(t, "a-2-2", ids.claim("a-2"))
}

func TestMerge_EmptyEdgeID(t *testing.T) {
	src := source("s", "go")
	src.Edges = []Edge{{From: "api", To: "db"}, {ID: "x", From: "db", To: "api"}}
	res := newMerger(t).Merge([]SourceGraph{src})
	got := []string{res.Graph.Edges[0].ID, res.Graph.Edges[1].ID}
	assert.Equal(t, []string{"s-edge-0", "s-x"}, got)
}

func TestMerge_Layout(t *testing.T) {
	res := newMerger(t).Merge([]SourceGraph{source("a", ""), source("b", ""), source("c", "")})
	g := res.Graph

	pos := map[string]Position{}
	for _, n := range g.Nodes {
		pos[n.ID] = n.Position
	}
	// Three sources sit on a 2x2 grid of 200-unit cells centred on the origin.
	assert.Equal(t, Position{X: -200, Z: -200}, pos["project-0"])
	assert.Equal(t, Position{X: 0, Z: -200}, pos["project-1"])
	assert.Equal(t, Position{X: -200, Z: 0}, pos["project-2"])
	// Children are scaled down and moved into their cell.
	assert.Equal(t, Position{X: -170, Y: 5, Z: -185}, pos["a-api"])
	assert.Equal(t, Position{X: -170, Y: 5, Z: 15}, pos["c-api"])
}

func TestMerge_InputsUntouched(t *testing.T) {
	src := source("s", "go", "t")
	src.Nodes[0].Metadata = map[string]any{"k": "v"}
	before := source("s", "go", "t")
	before.Nodes[0].Metadata = map[string]any{"k": "v"}

	newMerger(t).Merge([]SourceGraph{src})
	if diff := cmp.Diff(before, src); diff != "" {
		t.Errorf("merge mutated its input (-want +got):\n%s", diff)
	}
}

func TestMerge_SkipsIncompleteSources(t *testing.T) {
	noNodes := source("no-nodes", "go")
	noNodes.Nodes = nil
	noEdges := source("no-edges", "go")
	noEdges.Edges = nil

	res := newMerger(t).Merge([]SourceGraph{noNodes, source("ok", "go"), noEdges})
	assert.Equal(t, []string{"no-nodes", "no-edges"}, res.Skipped)
	assert.Equal(t, 1, res.Graph.TotalProjects)
	assert.Equal(t, []string{"ok"}, res.Graph.Sources)
	assert.Equal(t, "project-0", res.Graph.Nodes[0].ID, "root ids index accepted sources only")
	assert.Equal(t, Position{X: -100, Z: -100}, res.Graph.Nodes[0].Position)
}

func TestMerge_EmptyInput(t *testing.T) {
	res := Merge(nil)
	require.NotNil(t, res.Graph)
	assert.Empty(t, res.Graph.Nodes)
	assert.Empty(t, res.Graph.Edges)
	assert.Zero(t, res.Graph.TotalProjects)
}

func TestMerge_Stats(t *testing.T) {
	a := source("a", "go")
	a.Stats.TotalCommitsLast30Days = 7
	a.Nodes[0].Activity = fptr(100)
	b := source("b", "go")
	b.Status = status.New(status.Broken)

	g := newMerger(t).Merge([]SourceGraph{a, b}).Graph
	assert.Equal(t, 6, g.Stats.TotalNodes)
	assert.Equal(t, 17.0, g.Stats.TotalActivity, "only root activity is summed")
	assert.Equal(t, 1, g.Stats.StatusCounts[status.Broken])
	assert.Equal(t, 3, g.Stats.StatusCounts[status.Built])
	assert.Equal(t, 2, g.Stats.StatusCounts[status.Building])
	assert.Equal(t, 0, g.Stats.StatusCounts[status.Burned])
	assert.Equal(t, "2026-10-18T12:00:00Z", g.LastUpdate)
	assert.Equal(t, "aggregated", g.Source)
}

func TestMerge_GraphIDStable(t *testing.T) {
	m := newMerger(t)
	a := m.Merge([]SourceGraph{source("a", ""), source("b", "")}).Graph.GraphID
	b := m.Merge([]SourceGraph{source("a", "x"), source("b", "y")}).Graph.GraphID
	c := m.Merge([]SourceGraph{source("b", ""), source("a", "")}).Graph.GraphID
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestGraph_Document(t *testing.T) {
	g := newMerger(t).Merge([]SourceGraph{
		source("cli", "python", "python"),
		source("web", "python", "python"),
	}).Graph
	doc := g.Document()

	assert.Equal(t, g.GraphID, doc.GraphID)
	assert.Len(t, doc.Assets, len(g.Nodes))
	assert.Len(t, doc.Edges, len(g.Edges))
	root := doc.AssetByID("project-1")
	require.NotNil(t, root)
	assert.Equal(t, RootType, root.Type)
	assert.Equal(t, "web", root.Title())
	assert.NotNil(t, root.Status.Reliability)

	// The merged document is a valid v3 document.
	path := filepath.Join(t.TempDir(), "merged.json")
	require.NoError(t, model.WriteDocument(doc, path))
	_, err := model.ReadDocument(path)
	require.NoError(t, err)
}

func TestParseSource(t *testing.T) {
	src, err := ParseSource("svc", []byte(`{
	  "projectName": "svc",
	  "status": "orange",
	  "metadata": {"topics": ["go"], "language": "Go"},
	  "stats": {"totalCommitsLast30Days": 12},
	  "nodes": [{"id": "n", "status": {"phase": "green"}}],
	  "edges": []
	}`))
	require.NoError(t, err)
	assert.Equal(t, status.Building, src.Status.State)
	assert.Equal(t, status.Built, src.Nodes[0].Status.State)
	assert.NotNil(t, src.Edges, "an empty edge list is not a missing one")
	assert.Equal(t, 12, src.Stats.TotalCommitsLast30Days)

	missing, err := ParseSource("m", []byte(`{"projectName": "m", "nodes": []}`))
	require.NoError(t, err)
	assert.Nil(t, missing.Edges)

	_, err = ParseSource("bad", []byte(`{`))
	assert.True(t, apperrors.IsType(err, apperrors.TypeInput))
}

func TestReadSource_NamesAfterFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "payments.status.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"nodes": [], "edges": []}`), 0o644))
	src, err := ReadSource(path)
	require.NoError(t, err)
	assert.Equal(t, "payments", src.Name)
}

func TestReadSource_StatusFileNamedAfterDir(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{"billing", "search"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, dir), 0o755))
		require.NoError(t, os.WriteFile(filepath.Join(root, dir, "status.json"), []byte(`{"nodes": [], "edges": []}`), 0o644))
	}
	a, err := ReadSource(filepath.Join(root, "billing", "status.json"))
	require.NoError(t, err)
	b, err := ReadSource(filepath.Join(root, "search", "status.json"))
	require.NoError(t, err)
	assert.Equal(t, "billing", a.Name)
	assert.Equal(t, "search", b.Name)
}

func TestFromDocument(t *testing.T) {
	doc := &model.Document{
		GraphID: "g",
		Assets: []model.Asset{
			{ID: "a", Location: "cmd/a", Metadata: model.Metadata{Language: "go"}, Status: status.New(status.Built), Analytics: model.Analytics{ActivityLast30Days: fptr(4)}},
			{ID: "b", Metadata: model.Metadata{Language: "go"}, Status: status.New(status.Broken), Analytics: model.Analytics{ActivityLast30Days: fptr(3.5)}},
			{ID: "c", Metadata: model.Metadata{Language: "python"}, Status: status.New(status.Built)},
		},
		Edges: []model.Edge{{From: "a", To: "b", Type: model.DependsOn}},
	}
	src := FromDocument("repo", doc, SourceMetadata{Topics: []string{"infra"}})

	assert.Equal(t, status.Broken, src.Status.State)
	assert.Equal(t, "go", src.Metadata.Language)
	assert.Equal(t, 7, src.Stats.TotalCommitsLast30Days)
	require.Len(t, src.Nodes, 3)
	assert.Equal(t, "cmd/a", src.Nodes[0].Metadata["location"])
	assert.Equal(t, []Edge{{ID: "edge-0", From: "a", To: "b", Type: model.DependsOn}}, src.Edges)

	g := newMerger(t).Merge([]SourceGraph{src}).Graph
	assert.Equal(t, "cmd/a", g.Document().AssetByID("repo-a").Location)
}

func TestDominant(t *testing.T) {
	assert.Equal(t, "", dominant(nil))
	assert.Equal(t, "go", dominant(map[string]int{"go": 2, "rust": 1}))
	assert.Equal(t, "a", dominant(map[string]int{"b": 1, "a": 1}), "ties break alphabetically")
}

func TestGridSize(t *testing.T) {
	for n, want := range map[int]int{0: 0, 1: 1, 2: 2, 4: 2, 5: 3, 9: 3, 10: 4} {
		assert.Equal(t, want, gridSize(n), fmt.Sprintf("n=%d", n))
	}
}
