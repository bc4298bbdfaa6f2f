package export

import (
	"fmt"
	"strings"

	"archstatus/internal/model"
	"archstatus/internal/status"
)

// Default node caps for the diagram exporters.
const (
	DefaultMermaidMaxNodes = 120
	DefaultDotMaxNodes     = 200
)

// stateColors are the Graphviz fill colors per state.
var stateColors = map[status.State]string{
	status.Built:      "#4ade80",
	status.Building:   "#fb923c",
	status.Broken:     "#f87171",
	status.Blocked:    "#f59e0b",
	status.Backlogged: "#9ca3af",
	status.Burned:     "#6b7280",
}

// StateColor returns the fill color for s.
func StateColor(s status.State) string {
	if c, ok := stateColors[s]; ok {
		return c
	}
	return stateColors[status.Backlogged]
}

// rendered returns the first limit assets of doc (all of them when limit is
// not positive) and the set of their ids.
func rendered(doc *model.Document, limit int) ([]model.Asset, map[string]bool) {
	assets := doc.Assets
	if limit > 0 && len(assets) > limit {
		assets = assets[:limit]
	}
	ids := make(map[string]bool, len(assets))
	for _, a := range assets {
		ids[a.ID] = true
	}
	return assets, ids
}

func edgeLabel(e model.Edge) string {
	if e.Label != "" {
		return e.Label
	}
	return string(e.Type)
}

func reliabilityOf(s status.StatusInfo) float64 {
	if s.Reliability == nil {
		return 0
	}
	return *s.Reliability
}

// ---------------------------------------------------------------------------
// Mermaid
// ---------------------------------------------------------------------------

// Mermaid renders doc as a top-to-bottom Mermaid flowchart. Only the first
// maxNodes assets are drawn, in document order, and an edge is drawn only
// when both of its endpoints are.
func Mermaid(doc *model.Document, maxNodes int) string {
	assets, ids := rendered(doc, maxNodes)
	names := mermaidIDs(assets)

	var b strings.Builder
	b.WriteString("graph TB\n")
	b.WriteString("    %% Architecture\n")
	for _, a := range assets {
		s := status.Normalize(a.Status)
		label := fmt.Sprintf("%s<br/>state: %s<br/>progress: %d%%<br/>rel: %.2f",
			mermaidText(a.Title()), s.State, s.Progress, reliabilityOf(s))
		fmt.Fprintf(&b, "    %s[\"%s\"]\n", names[a.ID], label)
	}

	b.WriteString("\n    %% Relationships\n")
	for _, e := range doc.Edges {
		if !ids[e.From] || !ids[e.To] {
			continue
		}
		fmt.Fprintf(&b, "    %s -->|%s| %s\n", names[e.From], mermaidText(edgeLabel(e)), names[e.To])
	}
	return b.String()
}

// mermaidIDs maps asset ids onto unique Mermaid node identifiers.
func mermaidIDs(assets []model.Asset) map[string]string {
	out := make(map[string]string, len(assets))
	used := make(map[string]bool, len(assets))
	for _, a := range assets {
		if _, ok := out[a.ID]; ok {
			continue
		}
		base := mermaidIdent(a.ID)
		name := base
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		used[name] = true
		out[a.ID] = name
	}
	return out
}

func mermaidIdent(id string) string {
	var b strings.Builder
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return "asset"
	}
	return b.String()
}

var mermaidEscaper = strings.NewReplacer(`"`, "#quot;", "|", "#124;", "\n", "<br/>")

func mermaidText(s string) string {
	return mermaidEscaper.Replace(s)
}

// ---------------------------------------------------------------------------
// Graphviz
// ---------------------------------------------------------------------------

// Graphviz renders doc as a left-to-right DOT digraph with nodes filled by
// state. Node capping and edge filtering follow Mermaid.
func Graphviz(doc *model.Document, maxNodes int) string {
	assets, ids := rendered(doc, maxNodes)

	var b strings.Builder
	b.WriteString("digraph G {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, style=rounded, fontsize=10];\n")
	for _, a := range assets {
		s := status.Normalize(a.Status)
		label := fmt.Sprintf(`%s\n%s %d%% rel %.2f`, dotText(a.Title()), s.State, s.Progress, reliabilityOf(s))
		fmt.Fprintf(&b, "  %q [label=\"%s\", fillcolor=\"%s\", style=\"filled,rounded\"];\n",
			a.ID, label, StateColor(s.State))
	}
	for _, e := range doc.Edges {
		if !ids[e.From] || !ids[e.To] {
			continue
		}
		fmt.Fprintf(&b, "  %q -> %q [label=\"%s\"];\n", e.From, e.To, dotText(edgeLabel(e)))
	}
	b.WriteString("}\n")
	return b.String()
}

var dotEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func dotText(s string) string {
	return dotEscaper.Replace(s)
}
