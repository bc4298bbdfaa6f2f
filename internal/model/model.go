// Package model defines the v3 architecture status document: assets with a
// normalized status, the edges between them, and the reliability evidence
// attached to each asset.
package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	apperrors "archstatus/internal/errors"
	"archstatus/internal/status"
)

// RequiredFields are the top-level keys every v3 document must carry.
var RequiredFields = []string{"graphId", "lastScan", "assets", "edges"}

// Document is the v3 status document.
type Document struct {
	GraphID         string         `json:"graphId"`
	LastScan        string         `json:"lastScan"`
	Assets          []Asset        `json:"assets"`
	Edges           []Edge         `json:"edges"`
	AIMetadata      map[string]any `json:"ai_metadata,omitempty"`
	WorkflowResults map[string]any `json:"workflow_results,omitempty"`
}

// Asset is one scanned unit of architecture.
type Asset struct {
	ID           string            `json:"id,omitempty"`
	Type         string            `json:"type,omitempty"`
	Source       string            `json:"source,omitempty"`
	Location     string            `json:"location,omitempty"`
	Metadata     Metadata          `json:"metadata"`
	Analytics    Analytics         `json:"analytics"`
	Status       status.StatusInfo `json:"status"`
	Dependencies *Dependencies     `json:"dependencies,omitempty"`
}

// Metadata describes an asset for humans.
type Metadata struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Authors     []string `json:"authors,omitempty"`
	Language    string   `json:"language,omitempty"`
	CreatedAt   string   `json:"createdAt,omitempty"`
	LastUpdate  string   `json:"lastUpdate,omitempty"`
}

// Analytics holds the measured signals reliability is derived from. A nil
// field means the signal was not collected.
type Analytics struct {
	ActivityLast30Days *float64 `json:"activityLast30Days,omitempty"`
	CentralityScore    *float64 `json:"centralityScore,omitempty"`
	Connectivity       *float64 `json:"connectivity,omitempty"`
}

// Dependencies lists dependencies declared by an analyzer.
type Dependencies struct {
	AIValidated []DependencyRef `json:"ai_validated_dependencies,omitempty"`
}

// DependencyRef points at another asset by id.
type DependencyRef struct {
	DependencyID string `json:"dependency_id"`
}

// EdgeType is a relationship kind between two assets.
type EdgeType string

const (
	DependsOn     EdgeType = "dependsOn"
	Implements    EdgeType = "implements"
	References    EdgeType = "references"
	RelatedTo     EdgeType = "relatedTo"
	ConflictsWith EdgeType = "conflictsWith"
	PartOf        EdgeType = "partOf"
	Uses          EdgeType = "uses"
	Queries       EdgeType = "queries"
	Generates     EdgeType = "generates"
	Processes     EdgeType = "processes"
)

var edgeTypes = []EdgeType{
	DependsOn, Implements, References, RelatedTo, ConflictsWith,
	PartOf, Uses, Queries, Generates, Processes,
}

// Valid reports whether t is a known edge type.
func (t EdgeType) Valid() bool {
	return slices.Contains(edgeTypes, t)
}

// Edge is a directed relationship between two assets.
type Edge struct {
	From     string   `json:"from"`
	To       string   `json:"to"`
	Type     EdgeType `json:"type"`
	Strength *float64 `json:"strength,omitempty"`
	Label    string   `json:"label,omitempty"`
}

// StrengthOr returns the edge strength, or def when none was recorded.
func (e Edge) StrengthOr(def float64) float64 {
	if e.Strength == nil {
		return def
	}
	return *e.Strength
}

// Parse decodes a v3 document. Malformed JSON and missing required
// top-level fields are input errors. Every asset status is normalized.
func Parse(data []byte) (*Document, error) {
	var keys map[string]json.RawMessage
	if err := json.Unmarshal(data, &keys); err != nil {
		return nil, apperrors.Wrap(apperrors.TypeInput, "malformed status document", err)
	}
	var missing []string
	for _, f := range RequiredFields {
		if _, ok := keys[f]; !ok {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return nil, apperrors.Inputf("status document missing required fields %v", missing).
			WithContext("missing_fields", missing)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.Wrap(apperrors.TypeInput, "decode status document", err)
	}
	doc.normalize()
	return &doc, nil
}

// ReadDocument reads and parses a v3 document from path.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

// WriteDocument writes doc to path as indented JSON, creating parent
// directories as needed.
func WriteDocument(doc *Document, path string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Map returns doc as a generic JSON object, the form validation rules read.
func (d *Document) Map() (map[string]any, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return m, nil
}

// Enrich attaches a reliability score and its evidence to every asset.
func (d *Document) Enrich() {
	for i := range d.Assets {
		a := &d.Assets[i]
		a.Status = status.Normalize(a.Status).WithReliability(ComputeReliability(*a), BuildEvidence(*a))
	}
}

// Overall rolls every asset status up into one.
func (d *Document) Overall() status.Overall {
	statuses := make([]status.StatusInfo, len(d.Assets))
	for i, a := range d.Assets {
		statuses[i] = a.Status
	}
	return status.CalculateOverall(statuses)
}

// AssetByID returns the asset with id, or nil.
func (d *Document) AssetByID(id string) *Asset {
	for i := range d.Assets {
		if d.Assets[i].ID == id {
			return &d.Assets[i]
		}
	}
	return nil
}

// Title returns the display name of a.
func (a Asset) Title() string {
	if a.Metadata.Title != "" {
		return a.Metadata.Title
	}
	if a.ID != "" {
		return a.ID
	}
	return "asset"
}

func (d *Document) normalize() {
	if d.Assets == nil {
		d.Assets = []Asset{}
	}
	if d.Edges == nil {
		d.Edges = []Edge{}
	}
	for i := range d.Assets {
		d.Assets[i].Status = status.Normalize(d.Assets[i].Status)
	}
}
