package model

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "archstatus/internal/errors"
	"archstatus/internal/status"
)

func f64(v float64) *float64 { return &v }

const sampleDoc = `{
  "graphId": "g-1",
  "lastScan": "2026-01-02T03:04:05Z",
  "assets": [
    {"id": "api", "type": "service.api", "status": "green",
     "metadata": {"title": "API", "authors": ["ana", "bo"]},
     "analytics": {"activityLast30Days": 25, "connectivity": 4}},
    {"id": "ui", "type": "component.ui", "status": {"phase": "orange", "completeness": 0.4}},
    {"id": "db", "type": "service.backend"}
  ],
  "edges": [
    {"from": "ui", "to": "api", "type": "dependsOn", "strength": 0.8}
  ],
  "ai_metadata": {"reliability_score": 80}
}`

// ---------------------------------------------------------------------------
// Parse
// ---------------------------------------------------------------------------

func TestParse(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)

	assert.Equal(t, "g-1", doc.GraphID)
	require.Len(t, doc.Assets, 3)
	assert.Equal(t, status.Built, doc.Assets[0].Status.State)
	assert.Equal(t, 40, doc.Assets[1].Status.Progress)

	// An asset without a status gets the default rather than a zero value.
	assert.Equal(t, status.Default(), doc.Assets[2].Status)

	require.Len(t, doc.Edges, 1)
	assert.Equal(t, 0.8, doc.Edges[0].StrengthOr(0))
	assert.Equal(t, 80.0, doc.AIMetadata["reliability_score"])
}

func TestParse_InputFaults(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"malformed", `{"graphId": `},
		{"not an object", `[1, 2]`},
		{"missing assets", `{"graphId": "g", "lastScan": "x", "edges": []}`},
		{"missing everything", `{}`},
		{"wrong field type", `{"graphId": "g", "lastScan": "x", "assets": "nope", "edges": []}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.data))
			require.Error(t, err)
			assert.True(t, apperrors.IsType(err, apperrors.TypeInput), "want input error, got %v", err)
		})
	}
}

func TestParse_MissingFieldsListed(t *testing.T) {
	_, err := Parse([]byte(`{"graphId": "g"}`))
	require.Error(t, err)
	var e *apperrors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, []string{"lastScan", "assets", "edges"}, e.Context["missing_fields"])
}

func TestParse_NullCollections(t *testing.T) {
	doc, err := Parse([]byte(`{"graphId": "g", "lastScan": "x", "assets": null, "edges": null}`))
	require.NoError(t, err)
	assert.NotNil(t, doc.Assets)
	assert.NotNil(t, doc.Edges)
}

func TestWriteAndReadDocument(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)
	doc.Enrich()

	path := filepath.Join(t.TempDir(), "nested", "status.json")
	require.NoError(t, WriteDocument(doc, path))

	got, err := ReadDocument(path)
	require.NoError(t, err)
	assert.Equal(t, doc, got)
}

func TestReadDocument_Missing(t *testing.T) {
	_, err := ReadDocument(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

// ---------------------------------------------------------------------------
// Map / Enrich / Overall
// ---------------------------------------------------------------------------

func TestMap_OmitsMissingIdentity(t *testing.T) {
	doc := &Document{
		GraphID:  "g",
		LastScan: "x",
		Assets:   []Asset{{Type: "service.api", Status: status.New(status.Built)}},
		Edges:    []Edge{},
	}
	m, err := doc.Map()
	require.NoError(t, err)

	assets := m["assets"].([]any)
	asset := assets[0].(map[string]any)
	assert.NotContains(t, asset, "id")
	assert.Contains(t, asset, "status")
	assert.Equal(t, "built", asset["status"].(map[string]any)["state"])
}

func TestEnrich(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)
	doc.Enrich()

	api := doc.AssetByID("api")
	require.NotNil(t, api)
	require.NotNil(t, api.Status.Reliability)
	// 25/50*0.40 + 4/20*0.20 + 2/5*0.15
	assert.InDelta(t, 0.3, *api.Status.Reliability, 1e-9)
	require.Len(t, api.Status.Evidence, 3)
	assert.Equal(t, "activityLast30Days", api.Status.Evidence[0].Type)
	assert.Equal(t, "connectivity", api.Status.Evidence[1].Type)
	assert.Equal(t, "authors", api.Status.Evidence[2].Type)

	ui := doc.AssetByID("ui")
	require.NotNil(t, ui.Status.Reliability)
	assert.Equal(t, 0.0, *ui.Status.Reliability)
	assert.Empty(t, ui.Status.Evidence)
	// Enrich leaves the normalized state alone.
	assert.Equal(t, status.Building, ui.Status.State)
}

func TestOverall(t *testing.T) {
	doc, err := Parse([]byte(sampleDoc))
	require.NoError(t, err)
	got := doc.Overall()
	// built(100) + building(40) + backlogged(0) -> building, 140/3.
	assert.Equal(t, status.Building, got.State)
	assert.Equal(t, 46, got.Progress)
}

func TestEdgeTypeValid(t *testing.T) {
	assert.True(t, DependsOn.Valid())
	assert.True(t, Processes.Valid())
	assert.False(t, EdgeType("owns").Valid())
	assert.False(t, EdgeType("").Valid())
}

func TestAssetTitle(t *testing.T) {
	assert.Equal(t, "API", Asset{ID: "api", Metadata: Metadata{Title: "API"}}.Title())
	assert.Equal(t, "api", Asset{ID: "api"}.Title())
	assert.Equal(t, "asset", Asset{}.Title())
}
