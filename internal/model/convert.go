package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	apperrors "archstatus/internal/errors"
)

// Defaults applied to assets converted from a power document.
const (
	DefaultAssetType   = "component.application"
	DefaultAssetSource = "github"
)

// Convert turns a power-format status document into a v3 document. Missing
// ids and scan times are generated, unknown edge types become relatedTo,
// edges without a strength get 1.0, and every asset is enriched with its
// reliability evidence.
func Convert(data []byte, now time.Time) (*Document, error) {
	var power Document
	if err := json.Unmarshal(data, &power); err != nil {
		return nil, apperrors.Wrap(apperrors.TypeInput, "malformed power document", err)
	}

	doc := &Document{
		GraphID:         power.GraphID,
		LastScan:        power.LastScan,
		Assets:          make([]Asset, 0, len(power.Assets)),
		Edges:           make([]Edge, 0, len(power.Edges)),
		AIMetadata:      power.AIMetadata,
		WorkflowResults: power.WorkflowResults,
	}
	if doc.GraphID == "" {
		doc.GraphID = uuid.NewString()
	}
	if doc.LastScan == "" {
		doc.LastScan = now.UTC().Format(time.RFC3339)
	}

	for _, a := range power.Assets {
		if a.Type == "" {
			a.Type = DefaultAssetType
		}
		if a.Source == "" {
			a.Source = DefaultAssetSource
		}
		doc.Assets = append(doc.Assets, a)
	}

	for _, e := range power.Edges {
		if !e.Type.Valid() {
			e.Type = RelatedTo
		}
		if e.Strength == nil {
			s := 1.0
			e.Strength = &s
		}
		doc.Edges = append(doc.Edges, e)
	}

	doc.normalize()
	doc.Enrich()
	return doc, nil
}
