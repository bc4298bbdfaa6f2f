package validate

import (
	"slices"

	apperrors "archstatus/internal/errors"
)

func threshold(v float64) *float64 { return &v }

// DefaultRules returns a fresh copy of the built-in rule set.
func DefaultRules() []Rule {
	return []Rule{
		{
			ID: "syntax_json_valid", Name: "JSON Syntax Validation",
			Description: "Validate that all JSON data is syntactically correct",
			Level:       Critical, Category: "syntax", Weight: 2.0, Enabled: true,
		},
		{
			ID: "syntax_schema_compliance", Name: "Schema Compliance",
			Description: "Validate that data conforms to the v3 status document schema",
			Level:       Critical, Category: "syntax", Weight: 2.0, Enabled: true,
		},
		{
			ID: "semantic_status_consistency", Name: "Status Consistency",
			Description: "Validate that status information is consistent across components",
			Level:       High, Category: "semantic", Weight: 1.5, Threshold: threshold(0.8), Enabled: true,
		},
		{
			ID: "semantic_dependency_validity", Name: "Dependency Validity",
			Description: "Validate that all dependencies reference existing components",
			Level:       High, Category: "semantic", Weight: 1.5, Enabled: true,
		},
		{
			ID: "semantic_relationship_coherence", Name: "Relationship Coherence",
			Description: "Validate that relationships between components are coherent",
			Level:       Medium, Category: "semantic", Weight: 1.0, Threshold: threshold(0.7), Enabled: true,
		},
		{
			ID: "consistency_cross_reference", Name: "Cross-Reference Consistency",
			Description: "Validate consistency across different data sources",
			Level:       High, Category: "consistency", Weight: 1.5, Threshold: threshold(0.8), Enabled: true,
		},
		{
			ID: "consistency_temporal", Name: "Temporal Consistency",
			Description: "Validate temporal consistency of status changes",
			Level:       Medium, Category: "consistency", Weight: 1.0, Threshold: threshold(0.7), Enabled: true,
		},
		{
			ID: "consistency_agent_outputs", Name: "Agent Output Consistency",
			Description: "Validate consistency between different AI agent outputs",
			Level:       High, Category: "consistency", Weight: 1.5, Threshold: threshold(0.8), Enabled: true,
		},
		{
			ID: "quality_completeness", Name: "Data Completeness",
			Description: "Validate that all required data is present and complete",
			Level:       High, Category: "quality", Weight: 1.5, Threshold: threshold(0.9), Enabled: true,
		},
		{
			ID: "quality_accuracy", Name: "Data Accuracy",
			Description: "Validate accuracy of data and measurements",
			Level:       High, Category: "quality", Weight: 1.5, Threshold: threshold(0.8), Enabled: true,
		},
		{
			ID: "quality_reliability", Name: "Reliability Assessment",
			Description: "Validate reliability of status assessments",
			Level:       Critical, Category: "quality", Weight: 2.0, Threshold: threshold(0.9), Enabled: true,
		},
		{
			ID: "performance_response_time", Name: "Response Time",
			Description: "Validate that response times are within acceptable limits",
			Level:       Medium, Category: "performance", Weight: 1.0, Threshold: threshold(5.0), Enabled: true,
		},
		{
			ID: "performance_memory_usage", Name: "Memory Usage",
			Description: "Validate that memory usage is within acceptable limits",
			Level:       Medium, Category: "performance", Weight: 1.0, Threshold: threshold(1000), Enabled: true,
		},
		{
			ID: "security_sensitive_data", Name: "Sensitive Data Protection",
			Description: "Validate that sensitive data is properly protected",
			Level:       Critical, Category: "security", Weight: 2.0, Enabled: true,
		},
		{
			ID: "security_access_control", Name: "Access Control",
			Description: "Validate that access control is properly implemented",
			Level:       High, Category: "security", Weight: 1.5, Enabled: true,
		},
	}
}

// DefaultGates returns a fresh copy of the built-in quality gates.
func DefaultGates() []Gate {
	return []Gate{
		{
			ID: "gate_syntax", Name: "Syntax Validation Gate",
			Description: "All syntax validation rules must pass",
			Rules:       []string{"syntax_json_valid", "syntax_schema_compliance"},
			Threshold:   1.0, Level: Critical, Enabled: true,
		},
		{
			ID: "gate_semantic", Name: "Semantic Validation Gate",
			Description: "Semantic validation rules must pass with high confidence",
			Rules:       []string{"semantic_status_consistency", "semantic_dependency_validity", "semantic_relationship_coherence"},
			Threshold:   0.8, Level: High, Enabled: true,
		},
		{
			ID: "gate_consistency", Name: "Consistency Validation Gate",
			Description: "Consistency validation rules must pass",
			Rules:       []string{"consistency_cross_reference", "consistency_temporal", "consistency_agent_outputs"},
			Threshold:   0.8, Level: High, Enabled: true,
		},
		{
			ID: "gate_quality", Name: "Quality Validation Gate",
			Description: "Quality validation rules must pass",
			Rules:       []string{"quality_completeness", "quality_accuracy", "quality_reliability"},
			Threshold:   0.85, Level: Critical, Enabled: true,
		},
		{
			ID: "gate_performance", Name: "Performance Validation Gate",
			Description: "Performance validation rules must pass",
			Rules:       []string{"performance_response_time", "performance_memory_usage"},
			Threshold:   0.7, Level: Medium, Enabled: true,
		},
		{
			ID: "gate_security", Name: "Security Validation Gate",
			Description: "Security validation rules must pass",
			Rules:       []string{"security_sensitive_data", "security_access_control"},
			Threshold:   1.0, Level: Critical, Enabled: true,
		},
	}
}

// Registry is an immutable set of rules and gates. Accessors return copies.
type Registry struct {
	rules []Rule
	gates []Gate
	index map[string]int
}

// DefaultRegistry returns the built-in rules and gates.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(DefaultRules(), DefaultGates())
	if err != nil {
		panic(err)
	}
	return r
}

// NewRegistry checks and freezes rules and gates. Rule and gate ids must be
// unique, weights non-negative and gate thresholds within [0,1]. Gates may
// name rules the registry does not hold; such members never match a result.
func NewRegistry(rules []Rule, gates []Gate) (*Registry, error) {
	r := &Registry{
		rules: make([]Rule, len(rules)),
		gates: make([]Gate, len(gates)),
		index: make(map[string]int, len(rules)),
	}
	for i, rule := range rules {
		if rule.ID == "" {
			return nil, apperrors.Newf(apperrors.TypeConfig, "rule %d has no id", i)
		}
		if _, dup := r.index[rule.ID]; dup {
			return nil, apperrors.Newf(apperrors.TypeConfig, "duplicate rule id %q", rule.ID)
		}
		if rule.Weight < 0 {
			return nil, apperrors.Newf(apperrors.TypeConfig, "rule %q has negative weight %v", rule.ID, rule.Weight)
		}
		if rule.Threshold != nil {
			rule.Threshold = threshold(*rule.Threshold)
		}
		r.rules[i] = rule
		r.index[rule.ID] = i
	}
	seen := make(map[string]bool, len(gates))
	for i, g := range gates {
		if g.ID == "" {
			return nil, apperrors.Newf(apperrors.TypeConfig, "gate %d has no id", i)
		}
		if seen[g.ID] {
			return nil, apperrors.Newf(apperrors.TypeConfig, "duplicate gate id %q", g.ID)
		}
		if g.Threshold < 0 || g.Threshold > 1 {
			return nil, apperrors.Newf(apperrors.TypeConfig, "gate %q threshold %v outside [0,1]", g.ID, g.Threshold)
		}
		seen[g.ID] = true
		g.Rules = slices.Clone(g.Rules)
		r.gates[i] = g
	}
	return r, nil
}

// Rules returns every rule in registry order.
func (r *Registry) Rules() []Rule {
	out := make([]Rule, len(r.rules))
	for i, rule := range r.rules {
		if rule.Threshold != nil {
			rule.Threshold = threshold(*rule.Threshold)
		}
		out[i] = rule
	}
	return out
}

// Gates returns every gate in registry order.
func (r *Registry) Gates() []Gate {
	out := make([]Gate, len(r.gates))
	for i, g := range r.gates {
		g.Rules = slices.Clone(g.Rules)
		out[i] = g
	}
	return out
}

// Rule looks a rule up by id.
func (r *Registry) Rule(id string) (Rule, bool) {
	i, ok := r.index[id]
	if !ok {
		return Rule{}, false
	}
	rule := r.rules[i]
	if rule.Threshold != nil {
		rule.Threshold = threshold(*rule.Threshold)
	}
	return rule, true
}

// weight returns the weight of rule id, or 1.0 when the registry does not
// know it.
func (r *Registry) weight(id string) float64 {
	if i, ok := r.index[id]; ok {
		return r.rules[i].Weight
	}
	return 1.0
}
