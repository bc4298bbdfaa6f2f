package validate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	reg, err := NewRegistry([]Rule{
		{ID: "a", Weight: 2, Enabled: true},
		{ID: "b", Weight: 1, Enabled: true},
		{ID: "c", Weight: 1, Enabled: true},
		{ID: "z", Weight: 0, Enabled: true},
	}, nil)
	require.NoError(t, err)
	return reg
}

func TestEvaluateGate_WeightedMean(t *testing.T) {
	gate := Gate{ID: "g", Name: "Gate", Rules: []string{"a", "b"}, Threshold: 0.8}
	results := []Result{
		{RuleID: "a", Status: Passed, Score: 1.0},
		{RuleID: "b", Status: Warning, Score: 0.5},
	}
	got := EvaluateGate(gate, testRegistry(t), results)

	assert.InDelta(t, 2.5/3.0, got.Score, 1e-9)
	assert.True(t, got.Passed)
	assert.Equal(t, []GateRuleResult{
		{RuleID: "a", Status: Passed, Score: 1.0},
		{RuleID: "b", Status: Warning, Score: 0.5},
	}, got.RuleResults)
	assert.Equal(t, "Gate passed with score 0.833 (threshold: 0.8)", got.Details)
}

func TestEvaluateGate_ExcludesMissingResults(t *testing.T) {
	// c has no result: it is left out instead of counting as zero.
	gate := Gate{ID: "g", Rules: []string{"a", "b", "c"}, Threshold: 0.8}
	results := []Result{
		{RuleID: "a", Score: 1.0},
		{RuleID: "b", Score: 0.5},
	}
	got := EvaluateGate(gate, testRegistry(t), results)
	assert.InDelta(t, 2.5/3.0, got.Score, 1e-9)
	assert.Len(t, got.RuleResults, 2)
}

func TestEvaluateGate_NoMatches(t *testing.T) {
	gate := Gate{ID: "g", Rules: []string{"missing"}, Threshold: 0.5}
	got := EvaluateGate(gate, testRegistry(t), []Result{{RuleID: "a", Score: 1}})
	assert.Equal(t, 0.0, got.Score)
	assert.False(t, got.Passed)
	assert.Empty(t, got.RuleResults)
	assert.Equal(t, "Gate failed with score 0.000 (threshold: 0.5)", got.Details)
}

func TestEvaluateGate_ZeroWeight(t *testing.T) {
	gate := Gate{ID: "g", Rules: []string{"z"}, Threshold: 0.1}
	got := EvaluateGate(gate, testRegistry(t), []Result{{RuleID: "z", Score: 1}})
	assert.Equal(t, 0.0, got.Score)
	assert.False(t, got.Passed)
}

func TestEvaluateGate_Boundary(t *testing.T) {
	gate := Gate{ID: "g", Rules: []string{"a"}, Threshold: 0.85}
	got := EvaluateGate(gate, testRegistry(t), []Result{{RuleID: "a", Score: 0.85}})
	assert.True(t, got.Passed, "score equal to threshold passes")
}

func TestEvaluateGate_FirstResultWins(t *testing.T) {
	gate := Gate{ID: "g", Rules: []string{"a"}, Threshold: 0.5}
	got := EvaluateGate(gate, testRegistry(t), []Result{
		{RuleID: "a", Score: 0.2},
		{RuleID: "a", Score: 1.0},
	})
	assert.InDelta(t, 0.2, got.Score, 1e-9)
}

func TestEvaluateGate_UnknownRuleWeighsOne(t *testing.T) {
	gate := Gate{ID: "g", Rules: []string{"a", "unregistered"}, Threshold: 0.5}
	got := EvaluateGate(gate, testRegistry(t), []Result{
		{RuleID: "a", Score: 1.0},
		{RuleID: "unregistered", Score: 0.1},
	})
	assert.InDelta(t, (2.0+0.1)/3.0, got.Score, 1e-9)
}

func TestEvaluateGate_Clamped(t *testing.T) {
	gate := Gate{ID: "g", Rules: []string{"a"}, Threshold: 1}
	got := EvaluateGate(gate, testRegistry(t), []Result{{RuleID: "a", Score: 3}})
	assert.Equal(t, 1.0, got.Score)
}
