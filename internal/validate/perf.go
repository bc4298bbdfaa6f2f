package validate

import (
	"context"
	"fmt"
)

const (
	defaultResponseTime = 5.0    // seconds
	defaultMemoryMB     = 1000.0 // megabytes
)

// limit scores a measurement against an upper bound. Over the bound the
// result warns with the proportional score bound/value.
func limit(value, bound float64, unit, label, rec string, details map[string]any) Outcome {
	details["threshold"] = bound
	if value > bound {
		return Outcome{
			Status:          Warning,
			Score:           bound / value,
			Message:         fmt.Sprintf("%s exceeds threshold: %.2f%s > %g%s", label, value, unit, bound, unit),
			Details:         details,
			Recommendations: []string{rec},
		}
	}
	return Outcome{
		Status:          Passed,
		Score:           1.0,
		Message:         fmt.Sprintf("%s validation passed: %.2f%s", label, value, unit),
		Details:         details,
		Recommendations: []string{},
	}
}

func positiveThreshold(rule Rule, def float64) float64 {
	if t := rule.ThresholdOr(def); t > 0 {
		return t
	}
	return def
}

func checkResponseTime(_ context.Context, in *Input, rule Rule) (Outcome, error) {
	summary := asMap(asMap(in.Report["workflow_results"])["execution_summary"])
	elapsed, ok := numberOr(summary, "total_execution_time", 0)
	if !ok {
		return Outcome{}, fmt.Errorf("total_execution_time is not a number: %v", summary["total_execution_time"])
	}
	return limit(elapsed, positiveThreshold(rule, defaultResponseTime), "s", "Response time",
		"Optimize workflow execution time", map[string]any{"execution_time": elapsed}), nil
}

func checkMemoryUsage(_ context.Context, in *Input, rule Rule) (Outcome, error) {
	payload, err := in.payloadJSON()
	if err != nil {
		return Outcome{}, err
	}
	mb := float64(len(payload)) / (1024 * 1024)
	return limit(mb, positiveThreshold(rule, defaultMemoryMB), "MB", "Memory usage",
		"Optimize memory usage", map[string]any{"estimated_memory_mb": mb}), nil
}
