package validate

import (
	"context"
	"fmt"
	"maps"
	"math"
)

// Outcome is what a check reports. The engine stamps rule id, timestamp
// and duration onto it to build a Result.
type Outcome struct {
	Status          ResultStatus
	Score           float64
	Message         string
	Details         map[string]any
	Recommendations []string
}

// Check evaluates one rule against an input. A returned error becomes an
// error result; checks never need to recover from their own panics.
type Check func(ctx context.Context, in *Input, rule Rule) (Outcome, error)

// builtinChecks maps every default rule id onto its check.
var builtinChecks = map[string]Check{
	"syntax_json_valid":               checkJSONSyntax,
	"syntax_schema_compliance":        checkSchemaCompliance,
	"semantic_status_consistency":     checkStatusConsistency,
	"semantic_dependency_validity":    checkDependencyValidity,
	"semantic_relationship_coherence": checkRelationshipCoherence,
	"consistency_cross_reference":     checkCrossReference,
	"consistency_temporal":            checkTemporal,
	"consistency_agent_outputs":       checkAgentOutputs,
	"quality_completeness":            checkCompleteness,
	"quality_accuracy":                checkAccuracy,
	"quality_reliability":             checkReliability,
	"performance_response_time":       checkResponseTime,
	"performance_memory_usage":        checkMemoryUsage,
	"security_sensitive_data":         checkSensitiveData,
	"security_access_control":         checkAccessControl,
}

// BuiltinChecks returns a copy of the built-in rule id to check mapping.
func BuiltinChecks() map[string]Check {
	return maps.Clone(builtinChecks)
}

// defaultRatioThreshold applies to score-producing rules configured
// without a threshold.
const defaultRatioThreshold = 1.0

// ratio returns 1 - issues/total floored at 0, with total at least 1.
func ratio(issues, total int) float64 {
	return math.Max(0, 1-float64(issues)/float64(max(1, total)))
}

// scored passes when score meets the rule threshold and warns otherwise.
// rec is attached whenever the check found at least one issue.
func scored(rule Rule, score, def float64, label string, issues issueList, details map[string]any, rec string) Outcome {
	out := Outcome{Score: score, Details: details, Recommendations: []string{}}
	if score >= rule.ThresholdOr(def) {
		out.Status = Passed
		out.Message = fmt.Sprintf("%s validation passed (score: %.2f)", label, score)
	} else {
		out.Status = Warning
		out.Message = fmt.Sprintf("%s issues found (score: %.2f)", label, score)
	}
	if len(issues) > 0 {
		out.Recommendations = []string{rec}
	}
	return out
}

// issueList keeps check findings as a JSON-friendly slice that is never nil.
type issueList []string

func (l *issueList) addf(format string, args ...any) {
	*l = append(*l, fmt.Sprintf(format, args...))
}

func (l issueList) list() []string {
	if l == nil {
		return []string{}
	}
	return l
}
