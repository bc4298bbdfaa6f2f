package validate

import (
	"fmt"
	"math"
	"strconv"
)

// EvaluateGate scores gate over results. Member rules without a result are
// left out of both numerator and denominator; the first result for a rule
// wins. Weights come from reg, defaulting to 1.0 for rules reg does not hold.
// A gate that matches no weight scores 0.
func EvaluateGate(gate Gate, reg *Registry, results []Result) GateResult {
	byRule := make(map[string]Result, len(results))
	for _, r := range results {
		if _, seen := byRule[r.RuleID]; !seen {
			byRule[r.RuleID] = r
		}
	}

	out := GateResult{
		GateID:      gate.ID,
		GateName:    gate.Name,
		Threshold:   gate.Threshold,
		RuleResults: []GateRuleResult{},
	}
	var total, weight float64
	for _, id := range gate.Rules {
		r, ok := byRule[id]
		if !ok {
			continue
		}
		out.RuleResults = append(out.RuleResults, GateRuleResult{RuleID: id, Status: r.Status, Score: r.Score})
		w := 1.0
		if reg != nil {
			w = reg.weight(id)
		}
		total += r.Score * w
		weight += w
	}
	if weight > 0 {
		out.Score = math.Max(0, math.Min(1, total/weight))
	}
	out.Passed = out.Score >= gate.Threshold

	verdict := "failed"
	if out.Passed {
		verdict = "passed"
	}
	out.Details = fmt.Sprintf("Gate %s with score %.3f (threshold: %s)",
		verdict, out.Score, strconv.FormatFloat(gate.Threshold, 'f', -1, 64))
	return out
}
