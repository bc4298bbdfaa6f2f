// Package export renders status documents as Mermaid and Graphviz diagrams
// and as a browsable markdown report.
//
// Report layout:
//
//	index.md                 overview and state breakdown
//	assets.md                one table row per asset
//	assets/<id>.md           one note per asset
//	validation.md            validation report summary
//	risk.md                  dependency cycles, low reliability, broken assets
//	graphs/architecture.md   Mermaid architecture graph
package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"archstatus/internal/frontmatter"
	"archstatus/internal/model"
	"archstatus/internal/status"
	"archstatus/internal/validate"
)

// LowReliability is the reliability below which an asset is listed on the
// risk page.
const LowReliability = 0.5

// Options tunes bundle generation.
type Options struct {
	MermaidMaxNodes int
	// Generated is stamped into every page header. Empty omits it.
	Generated string
}

// Bundle holds pre-generated page content keyed by slash-separated path
// relative to the output directory.
type Bundle struct {
	pages map[string]string
}

// Paths returns the page paths in sorted order.
func (b *Bundle) Paths() []string {
	paths := make([]string, 0, len(b.pages))
	for p := range b.pages {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Page returns the content of the page at path.
func (b *Bundle) Page(path string) (string, bool) {
	s, ok := b.pages[path]
	return s, ok
}

type pageHeader struct {
	Tags      []string `yaml:"tags"`
	GraphID   string   `yaml:"graph_id,omitempty"`
	Generated string   `yaml:"generated,omitempty"`
}

type builder struct {
	doc   *model.Document
	rep   *validate.Report
	opts  Options
	pages map[string]string
	names map[string]string
}

// GenerateBundle builds every report page for doc. rep may be nil. No files
// are written.
func GenerateBundle(doc *model.Document, rep *validate.Report, opts Options) (*Bundle, error) {
	if opts.MermaidMaxNodes == 0 {
		opts.MermaidMaxNodes = DefaultMermaidMaxNodes
	}
	b := &builder{doc: doc, rep: rep, opts: opts, pages: map[string]string{}, names: noteNames(doc.Assets)}

	steps := []struct {
		path  string
		tags  []string
		build func() string
	}{
		{"index.md", []string{"archstatus/index"}, b.overview},
		{"assets.md", []string{"archstatus/assets"}, b.assetTable},
		{"validation.md", []string{"archstatus/validation"}, b.validation},
		{"risk.md", []string{"archstatus/risk"}, b.risk},
		{"graphs/architecture.md", []string{"archstatus/graph"}, b.graph},
	}
	for _, s := range steps {
		if err := b.add(s.path, s.tags, s.build()); err != nil {
			return nil, err
		}
	}
	for _, a := range doc.Assets {
		st := status.Normalize(a.Status)
		tags := []string{"asset", "state-" + string(st.State), reliabilityTag(reliabilityOf(st))}
		if err := b.add("assets/"+b.names[a.ID]+".md", tags, b.assetNote(a)); err != nil {
			return nil, err
		}
	}
	return &Bundle{pages: b.pages}, nil
}

// WriteBundle writes every page of bundle under outputDir in sorted path
// order. graphs/ and assets/ are always created.
func WriteBundle(bundle *Bundle, outputDir string) error {
	for _, sub := range []string{"assets", "graphs"} {
		if err := os.MkdirAll(filepath.Join(outputDir, sub), 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", sub, err)
		}
	}
	for _, p := range bundle.Paths() {
		abs := filepath.Join(outputDir, filepath.FromSlash(p))
		if err := writeNote(abs, bundle.pages[p]); err != nil {
			return err
		}
	}
	return nil
}

// ExistingGraphID returns the graph id recorded in the index page of a
// bundle already written to outputDir, or "" when outputDir holds no index
// page. An index page without a readable header is an error.
func ExistingGraphID(outputDir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(outputDir, "index.md"))
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read index.md: %w", err)
	}
	var h pageHeader
	if _, err := frontmatter.Decode(data, &h); err != nil {
		return "", fmt.Errorf("index.md in %s: %w", outputDir, err)
	}
	return h.GraphID, nil
}

func (b *builder) add(path string, tags []string, body string) error {
	sorted := append([]string(nil), tags...)
	sort.Strings(sorted)
	page, err := frontmatter.Render(pageHeader{Tags: sorted, GraphID: b.doc.GraphID, Generated: b.opts.Generated}, body)
	if err != nil {
		return fmt.Errorf("render %s: %w", path, err)
	}
	b.pages[path] = page
	return nil
}

// link is a wiki link to the note of asset id, or plain text when the id is
// not an asset of the document.
func (b *builder) link(id string) string {
	name, ok := b.names[id]
	if !ok {
		return "`" + id + "`"
	}
	title := id
	if a := b.doc.AssetByID(id); a != nil {
		title = a.Title()
	}
	return fmt.Sprintf("[[assets/%s|%s]]", name, title)
}

// ---------------------------------------------------------------------------
// Page builders
// ---------------------------------------------------------------------------

func (b *builder) overview() string {
	var s strings.Builder
	overall := b.doc.Overall()
	s.WriteString("# Architecture Status\n\n")
	fmt.Fprintf(&s, "- **Graph**: `%s`\n", b.doc.GraphID)
	fmt.Fprintf(&s, "- **Last scan**: %s\n", b.doc.LastScan)
	fmt.Fprintf(&s, "- **Assets**: %d\n", len(b.doc.Assets))
	fmt.Fprintf(&s, "- **Edges**: %d\n", len(b.doc.Edges))
	fmt.Fprintf(&s, "- **Overall**: %s (%d%%)\n", overall.State, overall.Progress)
	if b.rep != nil {
		fmt.Fprintf(&s, "- **Validation**: %s, reliability %.1f\n", b.rep.OverallStatus, b.rep.ReliabilityScore)
	}

	s.WriteString("\n## States\n\n")
	s.WriteString("| State | Assets |\n")
	s.WriteString("|-------|--------|\n")
	for _, st := range status.States {
		fmt.Fprintf(&s, "| %s | %d |\n", st, overall.Breakdown[st])
	}

	s.WriteString("\n## Pages\n\n")
	s.WriteString("- [[assets|Assets]]\n")
	s.WriteString("- [[validation|Validation]]\n")
	s.WriteString("- [[risk|Risk]]\n")
	s.WriteString("- [[graphs/architecture|Architecture Graph]]\n")
	return s.String()
}

func (b *builder) assetTable() string {
	var s strings.Builder
	s.WriteString("# Assets\n\n")
	if len(b.doc.Assets) == 0 {
		s.WriteString("_No assets._\n")
		return s.String()
	}
	s.WriteString("| Asset | Type | State | Progress | Reliability |\n")
	s.WriteString("|-------|------|-------|----------|-------------|\n")
	for _, a := range b.doc.Assets {
		st := status.Normalize(a.Status)
		fmt.Fprintf(&s, "| %s | %s | %s | %d%% | %.2f |\n",
			b.link(a.ID), a.Type, st.State, st.Progress, reliabilityOf(st))
	}
	return s.String()
}

func (b *builder) assetNote(a model.Asset) string {
	st := status.Normalize(a.Status)
	var s strings.Builder
	fmt.Fprintf(&s, "# %s\n\n", a.Title())
	if a.Metadata.Description != "" {
		s.WriteString(a.Metadata.Description + "\n\n")
	}
	fmt.Fprintf(&s, "- **Id**: `%s`\n", a.ID)
	fmt.Fprintf(&s, "- **Type**: %s\n", a.Type)
	if a.Location != "" {
		fmt.Fprintf(&s, "- **Location**: `%s`\n", a.Location)
	}
	fmt.Fprintf(&s, "- **State**: %s (%d%%)\n", st.State, st.Progress)
	fmt.Fprintf(&s, "- **Reliability**: %.2f\n", reliabilityOf(st))
	if len(a.Metadata.Authors) > 0 {
		fmt.Fprintf(&s, "- **Authors**: %s\n", strings.Join(a.Metadata.Authors, ", "))
	}

	if len(st.Evidence) > 0 {
		s.WriteString("\n## Evidence\n\n")
		s.WriteString("| Type | Ref | Score | Note |\n")
		s.WriteString("|------|-----|-------|------|\n")
		for _, ev := range st.Evidence {
			fmt.Fprintf(&s, "| %s | %s | %.3f | %s |\n", ev.Type, ev.Ref, ev.Score, ev.Note)
		}
	}

	var out, in []string
	for _, e := range b.doc.Edges {
		if e.From == a.ID {
			out = append(out, fmt.Sprintf("- %s %s", e.Type, b.link(e.To)))
		}
		if e.To == a.ID {
			in = append(in, fmt.Sprintf("- %s %s", b.link(e.From), e.Type))
		}
	}
	if len(out) > 0 {
		s.WriteString("\n## Outgoing\n\n" + strings.Join(out, "\n") + "\n")
	}
	if len(in) > 0 {
		s.WriteString("\n## Incoming\n\n" + strings.Join(in, "\n") + "\n")
	}
	return s.String()
}

func (b *builder) validation() string {
	var s strings.Builder
	s.WriteString("# Validation\n\n")
	rep := b.rep
	if rep == nil {
		s.WriteString("_No validation report._\n")
		return s.String()
	}
	fmt.Fprintf(&s, "- **Report**: `%s`\n", rep.ReportID)
	fmt.Fprintf(&s, "- **Overall status**: %s\n", rep.OverallStatus)
	fmt.Fprintf(&s, "- **Reliability score**: %.1f\n", rep.ReliabilityScore)
	fmt.Fprintf(&s, "- **Confidence**: %.2f\n", rep.ConfidenceLevel)
	fmt.Fprintf(&s, "- **Quality gates**: %d/%d passed\n", rep.QualityGatesPassed, rep.TotalQualityGates)

	if len(rep.QualityGateResults) > 0 {
		s.WriteString("\n## Quality Gates\n\n")
		s.WriteString("| Gate | Passed | Score | Threshold |\n")
		s.WriteString("|------|--------|-------|-----------|\n")
		for _, g := range rep.QualityGateResults {
			fmt.Fprintf(&s, "| %s | %t | %.3f | %.2f |\n", g.GateName, g.Passed, g.Score, g.Threshold)
		}
	}

	if len(rep.ValidationResults) > 0 {
		s.WriteString("\n## Rules\n\n")
		s.WriteString("| Rule | Status | Score | Message |\n")
		s.WriteString("|------|--------|-------|---------|\n")
		for _, r := range rep.ValidationResults {
			fmt.Fprintf(&s, "| %s | %s | %.2f | %s |\n", r.RuleID, r.Status, r.Score, tableCell(r.Message))
		}
	}

	writeList(&s, "Recommendations", rep.Recommendations)
	writeList(&s, "Errors", rep.Errors)
	writeList(&s, "Warnings", rep.Warnings)
	return s.String()
}

func (b *builder) risk() string {
	var s strings.Builder
	s.WriteString("# Risk Report\n\n")

	s.WriteString("## Dependency Cycles\n\n")
	cycles := findCycles(b.doc)
	if len(cycles) == 0 {
		s.WriteString("_None found._\n")
	}
	for _, c := range cycles {
		s.WriteString("- " + c + "\n")
	}

	type scored struct {
		id  string
		rel float64
	}
	var low []scored
	var troubled []string
	for _, a := range b.doc.Assets {
		st := status.Normalize(a.Status)
		if st.Reliability != nil && *st.Reliability < LowReliability {
			low = append(low, scored{a.ID, *st.Reliability})
		}
		if st.State == status.Broken || st.State == status.Blocked {
			troubled = append(troubled, fmt.Sprintf("%s (%s)", b.link(a.ID), st.State))
		}
	}
	sort.SliceStable(low, func(i, j int) bool { return low[i].rel < low[j].rel })

	s.WriteString("\n## Low Reliability\n\n")
	if len(low) == 0 {
		s.WriteString("_None._\n")
	} else {
		s.WriteString("| Asset | Reliability |\n")
		s.WriteString("|-------|-------------|\n")
		for _, l := range low {
			fmt.Fprintf(&s, "| %s | %.2f |\n", b.link(l.id), l.rel)
		}
	}

	s.WriteString("\n## Broken or Blocked\n\n")
	if len(troubled) == 0 {
		s.WriteString("_None._\n")
	}
	for _, t := range troubled {
		s.WriteString("- " + t + "\n")
	}
	return s.String()
}

func (b *builder) graph() string {
	var s strings.Builder
	s.WriteString("# Architecture Graph\n\n")
	if len(b.doc.Assets) == 0 {
		s.WriteString("_No assets._\n")
		return s.String()
	}
	s.WriteString("```mermaid\n")
	s.WriteString(Mermaid(b.doc, b.opts.MermaidMaxNodes))
	s.WriteString("```\n")
	return s.String()
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func writeList(s *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(s, "\n## %s\n\n", title)
	for _, it := range items {
		s.WriteString("- " + it + "\n")
	}
}

func tableCell(v string) string {
	return strings.NewReplacer("|", `\|`, "\n", " ").Replace(v)
}

// reliabilityTag maps a reliability score to a page tag.
func reliabilityTag(r float64) string {
	switch {
	case r >= 0.8:
		return "reliability-high"
	case r >= LowReliability:
		return "reliability-medium"
	default:
		return "reliability-low"
	}
}

// noteNames assigns every asset a unique sanitized note filename.
func noteNames(assets []model.Asset) map[string]string {
	out := make(map[string]string, len(assets))
	used := map[string]bool{}
	for _, a := range assets {
		if _, ok := out[a.ID]; ok {
			continue
		}
		base := sanitizeFilename(a.ID)
		if base == "" {
			base = "asset"
		}
		name := base
		for n := 2; used[name]; n++ {
			name = fmt.Sprintf("%s-%d", base, n)
		}
		used[name] = true
		out[a.ID] = name
	}
	return out
}

// sanitizeFilename replaces path separators, dots and spaces with -,
// collapses runs of - and trims them from both ends.
func sanitizeFilename(s string) string {
	s = strings.NewReplacer("/", "-", `\`, "-", ".", "-", " ", "-", ":", "-").Replace(s)
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "-")
	}
	return strings.Trim(s, "-")
}

// writeNote writes content to path, creating parent directories as needed.
func writeNote(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// findCycles runs a DFS over the dependsOn edges of doc and returns one
// "a → b → a" string per cycle found. Output is deterministic because nodes
// and neighbors are visited in sorted order.
func findCycles(doc *model.Document) []string {
	graph := make(map[string][]string)
	known := make(map[string]bool)
	for _, a := range doc.Assets {
		known[a.ID] = true
	}
	for _, e := range doc.Edges {
		if e.Type == model.DependsOn {
			graph[e.From] = append(graph[e.From], e.To)
		}
	}

	nodes := make([]string, 0, len(known))
	for n := range known {
		nodes = append(nodes, n)
	}
	sort.Strings(nodes)

	// 0 unvisited, 1 on the stack, 2 done.
	color := make(map[string]int)
	var cycles []string
	var path []string

	var dfs func(node string)
	dfs = func(node string) {
		if color[node] == 2 {
			return
		}
		if color[node] == 1 {
			for i, n := range path {
				if n == node {
					loop := append(append([]string(nil), path[i:]...), node)
					cycles = append(cycles, strings.Join(loop, " → "))
					return
				}
			}
			return
		}
		color[node] = 1
		path = append(path, node)
		neighbors := append([]string(nil), graph[node]...)
		sort.Strings(neighbors)
		for _, next := range neighbors {
			if known[next] {
				dfs(next)
			}
		}
		path = path[:len(path)-1]
		color[node] = 2
	}

	for _, n := range nodes {
		if color[n] == 0 {
			dfs(n)
		}
	}
	return cycles
}
