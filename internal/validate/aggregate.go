package validate

import (
	"fmt"
	"math"
	"time"
)

// Aggregate rolls rule results and gate verdicts into a report. start stamps
// the report id and timestamp; elapsed is recorded in the metadata.
func Aggregate(reg *Registry, results []Result, gates []GateResult, start time.Time, elapsed time.Duration) *Report {
	if results == nil {
		results = []Result{}
	}
	if gates == nil {
		gates = []GateResult{}
	}

	passedGates := 0
	for _, g := range gates {
		if g.Passed {
			passedGates++
		}
	}

	report := &Report{
		ReportID:           "validation_" + start.UTC().Format("20060102_150405"),
		Timestamp:          start.UTC(),
		OverallStatus:      overallStatus(results, gates),
		ReliabilityScore:   reliabilityScore(reg, results, gates),
		ConfidenceLevel:    confidenceLevel(results, gates),
		QualityGatesPassed: passedGates,
		TotalQualityGates:  len(gates),
		ValidationResults:  results,
		QualityGateResults: gates,
		Recommendations:    recommendations(results, gates),
		Errors:             []string{},
		Warnings:           []string{},
		Metadata: ReportMetadata{
			RulesExecuted:  len(results),
			GatesEvaluated: len(gates),
			ExecutionTime:  elapsed.Seconds(),
		},
	}
	for _, r := range results {
		switch r.Status {
		case Error:
			report.Errors = append(report.Errors, fmt.Sprintf("Validation rule %s failed: %s", r.RuleID, r.Message))
		case Warning:
			report.Warnings = append(report.Warnings, fmt.Sprintf("Validation rule %s warning: %s", r.RuleID, r.Message))
		}
	}
	return report
}

// overallStatus applies, in order: any error result, any failed gate, any
// warning result, otherwise passed.
func overallStatus(results []Result, gates []GateResult) ResultStatus {
	for _, r := range results {
		if r.Status == Error {
			return Error
		}
	}
	for _, g := range gates {
		if !g.Passed {
			return Failed
		}
	}
	for _, r := range results {
		if r.Status == Warning {
			return Warning
		}
	}
	return Passed
}

func gatePassRate(gates []GateResult) float64 {
	if len(gates) == 0 {
		return 1.0
	}
	n := 0
	for _, g := range gates {
		if g.Passed {
			n++
		}
	}
	return float64(n) / float64(len(gates))
}

// reliabilityScore is 100 x (0.7 x weighted mean score + 0.3 x gate pass
// rate). Results for rules outside reg carry no weight.
func reliabilityScore(reg *Registry, results []Result, gates []GateResult) float64 {
	if len(results) == 0 {
		return 0
	}
	var total, weight float64
	for _, r := range results {
		if reg == nil {
			continue
		}
		rule, ok := reg.Rule(r.RuleID)
		if !ok {
			continue
		}
		total += r.Score * rule.Weight
		weight += rule.Weight
	}
	mean := 0.0
	if weight > 0 {
		mean = total / weight
	}
	score := (mean*0.7 + gatePassRate(gates)*0.3) * 100
	return math.Max(0, math.Min(100, score))
}

// confidenceLevel is 0.8 x mean positive score + 0.2 x gate pass rate.
func confidenceLevel(results []Result, gates []GateResult) float64 {
	var sum float64
	n := 0
	for _, r := range results {
		if r.Score > 0 {
			sum += r.Score
			n++
		}
	}
	if n == 0 {
		return 0
	}
	c := (sum/float64(n))*0.8 + gatePassRate(gates)*0.2
	return math.Max(0, math.Min(1, c))
}

// recommendations collects result recommendations and failed gate advice,
// dropping duplicates but keeping first-seen order.
func recommendations(results []Result, gates []GateResult) []string {
	out := []string{}
	seen := make(map[string]bool)
	add := func(s string) {
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	for _, r := range results {
		for _, rec := range r.Recommendations {
			add(rec)
		}
	}
	for _, g := range gates {
		if !g.Passed {
			name := g.GateName
			if name == "" {
				name = "quality gate"
			}
			add(fmt.Sprintf("Improve %s to meet threshold", name))
		}
	}
	return out
}
