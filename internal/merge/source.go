// Package merge combines per-source architecture graphs into one
// namespaced, laid-out and cross-linked graph.
package merge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	apperrors "archstatus/internal/errors"
	"archstatus/internal/model"
	"archstatus/internal/status"
)

// Position is a presentation-only coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Node is one vertex of a source or merged graph.
type Node struct {
	ID          string            `json:"id"`
	Name        string            `json:"name,omitempty"`
	Type        string            `json:"type,omitempty"`
	Description string            `json:"description,omitempty"`
	Status      status.StatusInfo `json:"status"`
	Tags        []string          `json:"tags,omitempty"`
	Language    string            `json:"language,omitempty"`
	Activity    *float64          `json:"activity,omitempty"`
	Metadata    map[string]any    `json:"metadata,omitempty"`
	Position    Position          `json:"position"`
}

// Edge is a directed relationship between two nodes.
type Edge struct {
	ID       string         `json:"id,omitempty"`
	From     string         `json:"from"`
	To       string         `json:"to"`
	Type     model.EdgeType `json:"type"`
	Label    string         `json:"label,omitempty"`
	Strength *float64       `json:"strength,omitempty"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// SourceMetadata describes the repository a source graph was scanned from.
type SourceMetadata struct {
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Topics      []string `json:"topics,omitempty" yaml:"topics,omitempty"`
	Language    string   `json:"language,omitempty" yaml:"language,omitempty"`
}

// SourceStats carries the activity figures of a source.
type SourceStats struct {
	TotalCommitsLast30Days int `json:"totalCommitsLast30Days"`
}

// SourceGraph is one independently produced graph. Nil Nodes or Edges mean
// the source document lacked the key; such sources are skipped by Merge.
type SourceGraph struct {
	Name        string            `json:"-"`
	ProjectName string            `json:"projectName"`
	Status      status.StatusInfo `json:"status"`
	Metadata    SourceMetadata    `json:"metadata"`
	Stats       SourceStats       `json:"stats"`
	Nodes       []Node            `json:"nodes"`
	Edges       []Edge            `json:"edges"`
}

// ParseSource decodes a source graph. name namespaces its node ids; when
// empty the project name is used.
func ParseSource(name string, data []byte) (SourceGraph, error) {
	var src SourceGraph
	if err := json.Unmarshal(data, &src); err != nil {
		return SourceGraph{}, apperrors.Wrap(apperrors.TypeInput, "malformed source graph "+name, err)
	}
	src.Name = name
	return src, nil
}

// ReadSource reads a source graph from path, named after the file. A file
// named status.json is named after its directory, the layout a workspace
// stores sources in.
func ReadSource(path string) (SourceGraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return SourceGraph{}, fmt.Errorf("read %s: %w", path, err)
	}
	return ParseSource(sourceFileName(path), data)
}

func sourceFileName(path string) string {
	base := filepath.Base(path)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	name = strings.TrimSuffix(name, ".status")
	if name == "status" {
		if dir := filepath.Base(filepath.Dir(path)); dir != "." && dir != string(filepath.Separator) {
			return dir
		}
	}
	return name
}

// FromDocument turns a v3 status document into a source graph. The source
// status is the rolled-up status of its assets and its activity is the sum
// of asset activity.
func FromDocument(name string, doc *model.Document, meta SourceMetadata) SourceGraph {
	src := SourceGraph{
		Name:        name,
		ProjectName: name,
		Metadata:    meta,
		Nodes:       make([]Node, 0, len(doc.Assets)),
		Edges:       make([]Edge, 0, len(doc.Edges)),
	}
	overall := doc.Overall()
	src.Status = status.New(overall.State).WithProgress(overall.Progress)

	langs := map[string]int{}
	commits := 0.0
	for _, a := range doc.Assets {
		n := Node{
			ID:          a.ID,
			Name:        a.Title(),
			Type:        a.Type,
			Description: a.Metadata.Description,
			Status:      a.Status,
			Tags:        a.Metadata.Tags,
			Language:    a.Metadata.Language,
			Activity:    a.Analytics.ActivityLast30Days,
			Metadata:    map[string]any{},
		}
		if a.Location != "" {
			n.Metadata["location"] = a.Location
		}
		if a.Analytics.ActivityLast30Days != nil {
			commits += *a.Analytics.ActivityLast30Days
		}
		if a.Metadata.Language != "" {
			langs[a.Metadata.Language]++
		}
		src.Nodes = append(src.Nodes, n)
	}
	for i, e := range doc.Edges {
		src.Edges = append(src.Edges, Edge{
			ID:       fmt.Sprintf("edge-%d", i),
			From:     e.From,
			To:       e.To,
			Type:     e.Type,
			Label:    e.Label,
			Strength: e.Strength,
		})
	}
	src.Stats.TotalCommitsLast30Days = int(commits)
	if src.Metadata.Language == "" {
		src.Metadata.Language = dominant(langs)
	}
	return src
}

// dominant returns the most frequent key, ties broken alphabetically.
func dominant(counts map[string]int) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	best := ""
	for _, k := range keys {
		if best == "" || counts[k] > counts[best] {
			best = k
		}
	}
	return best
}
