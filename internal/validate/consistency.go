package validate

import (
	"context"
	"slices"
	"time"
)

const (
	maxScanAge         = 24 * time.Hour
	maxConfidenceVar   = 0.1
	maxConfidenceRange = 0.5
)

func checkCrossReference(_ context.Context, in *Input, rule Rule) (Outcome, error) {
	var issues issueList
	code, _ := in.agentResultCount("code_analyzer", "components")
	patterns, _ := in.agentResultCount("pattern_recognizer", "design_patterns")
	if code > 0 && patterns > 0 {
		r := float64(patterns) / float64(code)
		if r < 0.1 || r > 10 {
			issues.addf("Component count discrepancy: code_analysis=%d, pattern_analysis=%d", code, patterns)
		}
	}

	confidences := in.agentConfidences()
	if len(confidences) > 0 {
		if v := variance(confidences); v > maxConfidenceVar {
			issues.addf("High confidence variance across agents: %.3f", v)
		}
	}

	score := ratio(len(issues), 10)
	return scored(rule, score, defaultRatioThreshold, "Cross-reference consistency", issues, map[string]any{
		"consistency_issues": issues.list(),
		"confidence_scores":  nonNil(confidences),
		"consistency_score":  score,
	}, "Improve cross-reference consistency"), nil
}

func checkTemporal(_ context.Context, in *Input, rule Rule) (Outcome, error) {
	assets := in.assets()
	var issues issueList

	if last := asString(in.Report["lastScan"]); last != "" {
		scan, err := parseTimestamp(last)
		if err != nil {
			issues.addf("Invalid lastScan timestamp: %s", last)
		} else if age := in.now().Sub(scan); age > maxScanAge {
			issues.addf("Last scan is %.1f hours old", age.Hours())
		}
	}

	for _, a := range assets {
		asset := asMap(a)
		meta := asMap(asset["metadata"])
		created, updated := asString(meta["createdAt"]), asString(meta["lastUpdate"])
		if created == "" || updated == "" {
			continue
		}
		c, errC := parseTimestamp(created)
		u, errU := parseTimestamp(updated)
		if errC != nil || errU != nil {
			issues.addf("Asset %s: invalid timestamp format", assetLabel(asset))
			continue
		}
		if u.Before(c) {
			issues.addf("Asset %s: lastUpdate before createdAt", assetLabel(asset))
		}
	}

	score := ratio(len(issues), len(assets)+1)
	return scored(rule, score, defaultRatioThreshold, "Temporal consistency", issues, map[string]any{
		"temporal_issues": issues.list(),
		"temporal_score":  score,
	}, "Fix temporal consistency issues"), nil
}

func checkAgentOutputs(_ context.Context, in *Input, rule Rule) (Outcome, error) {
	var issues issueList
	code, hasCode := in.agentResultCount("code_analyzer", "components")
	patterns, hasPatterns := in.agentResultCount("pattern_recognizer", "design_patterns")
	if hasCode && hasPatterns && code > 0 && patterns > 0 {
		if float64(patterns)/float64(code) < 0.1 {
			issues.addf("Pattern count much lower than component count: %d vs %d", patterns, code)
		}
	}

	confidences := in.agentConfidences()
	if len(confidences) > 1 {
		if r := slices.Max(confidences) - slices.Min(confidences); r > maxConfidenceRange {
			issues.addf("High confidence range across agents: %.3f", r)
		}
	}

	score := ratio(len(issues), 5)
	return scored(rule, score, defaultRatioThreshold, "Agent output consistency", issues, map[string]any{
		"consistency_issues": issues.list(),
		"confidence_scores":  nonNil(confidences),
		"consistency_score":  score,
	}, "Improve agent output consistency"), nil
}

// variance is the population variance of xs.
func variance(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return sq / float64(len(xs))
}

func nonNil(xs []float64) []float64 {
	if xs == nil {
		return []float64{}
	}
	return xs
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// parseTimestamp accepts ISO 8601 timestamps with or without a zone.
// Timestamps without a zone are taken as UTC.
func parseTimestamp(s string) (time.Time, error) {
	var err error
	for _, layout := range timestampLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}
