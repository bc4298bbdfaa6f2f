package merge

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"archstatus/internal/model"
	"archstatus/internal/status"
)

const (
	// RootType is the asset type given to synthesized source roots.
	RootType = "service.repository"

	cellSize   = 200.0
	childScale = 0.3

	sharedTagStrength = 0.3
	languageStrength  = 0.2
	maxLabelTags      = 2
)

// Stats summarizes a merged graph. It is recomputed on every merge.
type Stats struct {
	TotalNodes    int                  `json:"totalNodes"`
	TotalEdges    int                  `json:"totalEdges"`
	TotalActivity float64              `json:"totalActivity"`
	StatusCounts  map[status.State]int `json:"statusCounts"`
}

// Graph is the merged result.
type Graph struct {
	GraphID       string   `json:"graphId"`
	ProjectName   string   `json:"projectName"`
	LastUpdate    string   `json:"lastUpdate"`
	Source        string   `json:"source"`
	TotalProjects int      `json:"totalProjects"`
	Stats         Stats    `json:"stats"`
	Nodes         []Node   `json:"nodes"`
	Edges         []Edge   `json:"edges"`
	Sources       []string `json:"sources"`
}

// Result is a merged graph plus the names of the sources left out of it.
type Result struct {
	Graph   *Graph
	Skipped []string
}

// Merger merges source graphs. The zero value is usable.
type Merger struct {
	Logger *zap.Logger
	Now    func() time.Time
}

// Merge merges sources with a no-op logger and the wall clock.
func Merge(sources []SourceGraph) Result {
	return (&Merger{}).Merge(sources)
}

// Merge namespaces every source, lays the sources out on a square grid,
// links related source roots and recomputes the graph statistics. Inputs
// are not modified. Sources with no nodes or no edges key are skipped.
// Every node id and edge id of the result is unique: a repeated source name
// or a namespaced id that is already taken gets a "-N" suffix.
func (m *Merger) Merge(sources []SourceGraph) Result {
	logger := m.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}

	res := Result{Skipped: []string{}}
	var accepted []SourceGraph
	names := idSet{}
	for i, src := range sources {
		name := sourceName(src, i)
		if src.Nodes == nil || src.Edges == nil {
			logger.Warn("skipping source graph without nodes or edges", zap.String("source", name))
			res.Skipped = append(res.Skipped, name)
			continue
		}
		src.Name = names.claim(name)
		if src.Name != name {
			logger.Warn("renamed duplicate source", zap.String("source", name), zap.String("as", src.Name))
		}
		accepted = append(accepted, src)
	}

	g := &Graph{
		ProjectName:   "Unified Repository Network",
		LastUpdate:    now().UTC().Format(time.RFC3339),
		Source:        "aggregated",
		TotalProjects: len(accepted),
		Nodes:         []Node{},
		Edges:         []Edge{},
		Sources:       make([]string, 0, len(accepted)),
	}

	grid := gridSize(len(accepted))
	nodeIDs, edgeIDs := idSet{}, idSet{}
	roots := make([]Node, len(accepted))
	for idx, src := range accepted {
		cx, cz := cellCenter(idx, grid)
		roots[idx] = rootNode(idx, src, cx, cz)
		nodeIDs.claim(roots[idx].ID)
	}
	for idx, src := range accepted {
		g.Sources = append(g.Sources, src.Name)
		root := roots[idx]
		cx, cz := root.Position.X, root.Position.Z
		g.Nodes = append(g.Nodes, root)

		ids := make(map[string]string, len(src.Nodes))
		for _, n := range src.Nodes {
			id := nodeIDs.claim(src.Name + "-" + n.ID)
			if _, dup := ids[n.ID]; !dup {
				ids[n.ID] = id
			}
			g.Nodes = append(g.Nodes, embed(n, id, root.ID, cx, cz))
		}
		for i, e := range src.Edges {
			g.Edges = append(g.Edges, prefixEdge(e, src.Name, i, ids, edgeIDs))
		}
	}
	for _, e := range inferEdges(roots) {
		e.ID = edgeIDs.claim(e.ID)
		e.Metadata["edgeId"] = e.ID
		g.Edges = append(g.Edges, e)
	}

	g.GraphID = graphID(g.Sources)
	g.Stats = computeStats(g)
	res.Graph = g

	logger.Info("merged source graphs",
		zap.Int("sources", len(accepted)),
		zap.Int("skipped", len(res.Skipped)),
		zap.Int("nodes", g.Stats.TotalNodes),
		zap.Int("edges", g.Stats.TotalEdges))
	return res
}

func sourceName(src SourceGraph, i int) string {
	switch {
	case src.Name != "":
		return src.Name
	case src.ProjectName != "":
		return src.ProjectName
	}
	return fmt.Sprintf("source-%d", i)
}

// gridSize is the width of the smallest square grid holding n cells.
func gridSize(n int) int {
	if n <= 0 {
		return 0
	}
	return int(math.Ceil(math.Sqrt(float64(n))))
}

func cellCenter(idx, grid int) (x, z float64) {
	x = float64(idx%grid)*cellSize - float64(grid)*cellSize/2
	z = float64(idx/grid)*cellSize - float64(grid)*cellSize/2
	return x, z
}

func rootNode(idx int, src SourceGraph, x, z float64) Node {
	id := fmt.Sprintf("project-%d", idx)
	name := src.ProjectName
	if name == "" {
		name = src.Name
	}
	desc := src.Metadata.Description
	if desc == "" {
		desc = name + " repository"
	}
	activity := float64(src.Stats.TotalCommitsLast30Days)
	return Node{
		ID:          id,
		Name:        name,
		Type:        RootType,
		Description: desc,
		Status:      status.Normalize(src.Status),
		Tags:        slices.Clone(src.Metadata.Topics),
		Language:    src.Metadata.Language,
		Activity:    &activity,
		Metadata: map[string]any{
			"nodeId":   id,
			"category": "Repository",
			"source":   src.Name,
		},
		Position: Position{X: x, Y: 0, Z: z},
	}
}

// embed copies n into the merged graph under id.
func embed(n Node, id, parent string, cx, cz float64) Node {
	out := n
	out.ID = id
	out.Status = status.Normalize(n.Status)
	out.Tags = slices.Clone(n.Tags)
	out.Metadata = maps.Clone(n.Metadata)
	if out.Metadata == nil {
		out.Metadata = map[string]any{}
	}
	out.Metadata["parent"] = parent
	out.Position = Position{
		X: cx + n.Position.X*childScale,
		Y: n.Position.Y,
		Z: cz + n.Position.Z*childScale,
	}
	return out
}

// prefixEdge moves e into the source namespace. Endpoints resolve through
// ids, the merged ids of the source's nodes; dangling endpoints are only
// prefixed.
func prefixEdge(e Edge, source string, i int, ids map[string]string, edgeIDs idSet) Edge {
	out := e
	if e.ID == "" {
		out.ID = edgeIDs.claim(fmt.Sprintf("%s-edge-%d", source, i))
	} else {
		out.ID = edgeIDs.claim(source + "-" + e.ID)
	}
	out.From = endpoint(e.From, source, ids)
	out.To = endpoint(e.To, source, ids)
	out.Metadata = maps.Clone(e.Metadata)
	return out
}

func endpoint(id, source string, ids map[string]string) string {
	if merged, ok := ids[id]; ok {
		return merged
	}
	return source + "-" + id
}

// idSet hands out ids unique within one merged graph.
type idSet map[string]bool

// claim returns id, or id with the first free "-N" suffix (N >= 2) when id
// is already taken, and marks the result as used.
func (s idSet) claim(id string) string {
	out := id
	for n := 2; s[out]; n++ {
		out = fmt.Sprintf("%s-%d", id, n)
	}
	s[out] = true
	return out
}

// inferEdges links every unordered pair of roots at most once: shared tags
// first, otherwise a shared non-empty language.
func inferEdges(roots []Node) []Edge {
	var out []Edge
	next := 0
	add := func(from, to, label, reason string, strength float64) {
		id := fmt.Sprintf("inter-edge-%d", next)
		next++
		s := strength
		out = append(out, Edge{
			ID:       id,
			From:     from,
			To:       to,
			Type:     model.RelatedTo,
			Label:    label,
			Strength: &s,
			Metadata: map[string]any{"edgeId": id, "reason": reason},
		})
	}

	for i, a := range roots {
		for _, b := range roots[i+1:] {
			if shared := sharedTags(a.Tags, b.Tags); len(shared) > 0 {
				if len(shared) > maxLabelTags {
					shared = shared[:maxLabelTags]
				}
				add(a.ID, b.ID, "Shared: "+strings.Join(shared, ", "), "shared_topics", sharedTagStrength)
				continue
			}
			if a.Language != "" && a.Language == b.Language {
				add(a.ID, b.ID, "Same language: "+a.Language, "same_language", languageStrength)
			}
		}
	}
	return out
}

// sharedTags returns the sorted intersection of a and b.
func sharedTags(a, b []string) []string {
	in := make(map[string]bool, len(a))
	for _, t := range a {
		in[t] = true
	}
	seen := map[string]bool{}
	var out []string
	for _, t := range b {
		if in[t] && !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

// graphID is a name-based UUID over the merged source names, so merging the
// same sources always yields the same id.
func graphID(sources []string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("archstatus:merge:"+strings.Join(sources, "\x00"))).String()
}

func computeStats(g *Graph) Stats {
	st := Stats{
		TotalNodes:   len(g.Nodes),
		TotalEdges:   len(g.Edges),
		StatusCounts: make(map[status.State]int, len(status.States)),
	}
	for _, s := range status.States {
		st.StatusCounts[s] = 0
	}
	for _, n := range g.Nodes {
		st.StatusCounts[status.Normalize(n.Status).State]++
		if n.Type == RootType && n.Activity != nil {
			st.TotalActivity += *n.Activity
		}
	}
	return st
}

// Document converts g into a v3 status document so it can be validated and
// rendered like any single-source document.
func (g *Graph) Document() *model.Document {
	doc := &model.Document{
		GraphID:  g.GraphID,
		LastScan: g.LastUpdate,
		Assets:   make([]model.Asset, 0, len(g.Nodes)),
		Edges:    make([]model.Edge, 0, len(g.Edges)),
	}
	for _, n := range g.Nodes {
		a := model.Asset{
			ID:     n.ID,
			Type:   n.Type,
			Source: "aggregated",
			Metadata: model.Metadata{
				Title:       n.Name,
				Description: n.Description,
				Tags:        n.Tags,
				Language:    n.Language,
			},
			Analytics: model.Analytics{ActivityLast30Days: n.Activity},
			Status:    n.Status,
		}
		if loc, ok := n.Metadata["location"].(string); ok {
			a.Location = loc
		}
		doc.Assets = append(doc.Assets, a)
	}
	for _, e := range g.Edges {
		t := e.Type
		if !t.Valid() {
			t = model.RelatedTo
		}
		doc.Edges = append(doc.Edges, model.Edge{From: e.From, To: e.To, Type: t, Strength: e.Strength, Label: e.Label})
	}
	doc.Enrich()
	return doc
}
