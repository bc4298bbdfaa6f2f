// Package validate runs weighted validation rules over a v3 status document
// and rolls the results up through quality gates into a report.
package validate

import "time"

// Level is the severity a rule or gate carries.
type Level string

const (
	Critical Level = "critical"
	High     Level = "high"
	Medium   Level = "medium"
	Low      Level = "low"
)

// ResultStatus is the outcome of one rule.
type ResultStatus string

const (
	Passed  ResultStatus = "passed"
	Failed  ResultStatus = "failed"
	Warning ResultStatus = "warning"
	Skipped ResultStatus = "skipped"
	Error   ResultStatus = "error"
)

// Rule is a static validation rule definition.
type Rule struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Level       Level    `json:"level" yaml:"level"`
	Category    string   `json:"category" yaml:"category"`
	Weight      float64  `json:"weight" yaml:"weight"`
	Threshold   *float64 `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Enabled     bool     `json:"enabled" yaml:"enabled"`
}

// ThresholdOr returns the rule threshold, or def when the rule has none.
func (r Rule) ThresholdOr(def float64) float64 {
	if r.Threshold == nil {
		return def
	}
	return *r.Threshold
}

// Result is the outcome of executing one rule.
type Result struct {
	RuleID          string         `json:"rule_id"`
	Status          ResultStatus   `json:"status"`
	Score           float64        `json:"score"`
	Message         string         `json:"message"`
	Details         map[string]any `json:"details"`
	Recommendations []string       `json:"recommendations"`
	Timestamp       time.Time      `json:"timestamp"`
	ExecutionTime   float64        `json:"execution_time"`
}

// Gate groups rules under one pass/fail threshold.
type Gate struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Description string   `json:"description" yaml:"description"`
	Rules       []string `json:"rules" yaml:"rules"`
	Threshold   float64  `json:"threshold" yaml:"threshold"`
	Level       Level    `json:"level" yaml:"level"`
	Enabled     bool     `json:"enabled" yaml:"enabled"`
}

// GateRuleResult is the slice of a rule result a gate reports.
type GateRuleResult struct {
	RuleID string       `json:"rule_id"`
	Status ResultStatus `json:"status"`
	Score  float64      `json:"score"`
}

// GateResult is the verdict of one gate.
type GateResult struct {
	GateID      string           `json:"gate_id"`
	GateName    string           `json:"gate_name"`
	Passed      bool             `json:"passed"`
	Score       float64          `json:"score"`
	Threshold   float64          `json:"threshold"`
	RuleResults []GateRuleResult `json:"rule_results"`
	Details     string           `json:"details"`
}

// Report is the aggregated outcome of a validation run.
type Report struct {
	ReportID           string         `json:"report_id"`
	Timestamp          time.Time      `json:"timestamp"`
	OverallStatus      ResultStatus   `json:"overall_status"`
	ReliabilityScore   float64        `json:"reliability_score"`
	ConfidenceLevel    float64        `json:"confidence_level"`
	QualityGatesPassed int            `json:"quality_gates_passed"`
	TotalQualityGates  int            `json:"total_quality_gates"`
	ValidationResults  []Result       `json:"validation_results"`
	QualityGateResults []GateResult   `json:"quality_gate_results"`
	Recommendations    []string       `json:"recommendations"`
	Errors             []string       `json:"errors"`
	Warnings           []string       `json:"warnings"`
	Metadata           ReportMetadata `json:"metadata"`
}

// ReportMetadata records how much work a run did.
type ReportMetadata struct {
	RulesExecuted  int     `json:"validation_rules_executed"`
	GatesEvaluated int     `json:"quality_gates_evaluated"`
	ExecutionTime  float64 `json:"execution_time"`
}
