package validate

import (
	"context"
	"fmt"

	"archstatus/internal/model"
)

func checkCompleteness(_ context.Context, in *Input, rule Rule) (Outcome, error) {
	var issues issueList
	for _, f := range model.RequiredFields {
		v, ok := in.Report[f]
		switch {
		case !ok:
			issues.addf("Missing required field: %s", f)
		case empty(v):
			issues.addf("Empty required field: %s", f)
		}
	}

	assets, edges := in.assets(), in.edges()
	for i, a := range assets {
		asset := asMap(a)
		label := fmt.Sprintf("Asset %d (%s)", i, assetLabel(asset))
		for _, f := range []string{"id", "type", "status"} {
			if !has(asset, f) {
				issues.addf("%s: missing required field '%s'", label, f)
			}
		}
		st := asMap(asset["status"])
		if !has(st, "state") {
			issues.addf("%s: missing status.state", label)
		}
		if !has(st, "progress") {
			issues.addf("%s: missing status.progress", label)
		}
	}
	for i, e := range edges {
		edge := asMap(e)
		for _, f := range []string{"from", "to", "type"} {
			if !has(edge, f) {
				issues.addf("Edge %d: missing required field '%s'", i, f)
			}
		}
	}

	total := len(model.RequiredFields) + 3*len(assets) + 3*len(edges)
	score := ratio(len(issues), total)
	return scored(rule, score, defaultRatioThreshold, "Data completeness", issues, map[string]any{
		"completeness_issues": issues.list(),
		"total_checks":        total,
		"completeness_score":  score,
	}, "Fix data completeness issues"), nil
}

func inRange(m map[string]any, key string, def, lo, hi float64) bool {
	v, ok := numberOr(m, key, def)
	return ok && v >= lo && v <= hi
}

func checkAccuracy(_ context.Context, in *Input, rule Rule) (Outcome, error) {
	var issues issueList
	assets, edges := in.assets(), in.edges()
	for _, a := range assets {
		asset := asMap(a)
		id := assetLabel(asset)
		st := asMap(asset["status"])
		if !inRange(st, "progress", 0, 0, 100) {
			issues.addf("Asset %s: invalid progress value %v", id, st["progress"])
		}
		q := asMap(st["quality"])
		if !inRange(q, "qualityScore", 0.5, 0, 1) {
			issues.addf("Asset %s: invalid quality score %v", id, q["qualityScore"])
		}
		if !inRange(q, "ai_confidence", 0.8, 0, 1) {
			issues.addf("Asset %s: invalid AI confidence %v", id, q["ai_confidence"])
		}
	}
	for _, e := range edges {
		edge := asMap(e)
		if !inRange(edge, "strength", 0.5, 0, 1) {
			issues.addf("Edge %v -> %v: invalid strength %v", edge["from"], edge["to"], edge["strength"])
		}
	}

	total := 3*len(assets) + len(edges)
	score := ratio(len(issues), total)
	return scored(rule, score, defaultRatioThreshold, "Data accuracy", issues, map[string]any{
		"accuracy_issues": issues.list(),
		"total_checks":    total,
		"accuracy_score":  score,
	}, "Fix data accuracy issues"), nil
}

// checkReliability validates the ranges of recorded trust figures: run
// metadata, prior gate verdicts, agent confidences and per-asset
// reliability.
func checkReliability(_ context.Context, in *Input, rule Rule) (Outcome, error) {
	var issues issueList
	meta := asMap(in.Report["ai_metadata"])
	if !inRange(meta, "reliability_score", 0, 0, 100) {
		issues.addf("Invalid reliability score: %v", meta["reliability_score"])
	}
	if !inRange(meta, "confidence_level", 0, 0, 1) {
		issues.addf("Invalid confidence level: %v", meta["confidence_level"])
	}

	gates := asSlice(meta["quality_gates"])
	for _, g := range gates {
		gate := asMap(g)
		if v, ok := gate["passed"]; ok && v != nil {
			if _, isBool := v.(bool); !isBool {
				issues.addf("Invalid quality gate passed value: %v", v)
			}
		}
		if !inRange(gate, "score", 0, 0, 1) {
			issues.addf("Invalid quality gate score: %v", gate["score"])
		}
	}

	for _, name := range in.agentNames() {
		agent, ok := in.Agents[name].(map[string]any)
		if !ok {
			continue
		}
		if !inRange(agent, "confidence", 0, 0, 1) {
			issues.addf("Agent %s: invalid confidence %v", name, agent["confidence"])
		}
	}

	rated := 0
	for _, a := range in.assets() {
		asset := asMap(a)
		st := asMap(asset["status"])
		if !has(st, "reliability") {
			continue
		}
		rated++
		if !inRange(st, "reliability", 0, 0, 1) {
			issues.addf("Asset %s: invalid reliability %v", assetLabel(asset), st["reliability"])
		}
	}

	total := 3 + len(gates) + len(in.Agents) + rated
	score := ratio(len(issues), total)
	return scored(rule, score, defaultRatioThreshold, "Reliability assessment", issues, map[string]any{
		"reliability_issues": issues.list(),
		"total_checks":       total,
		"reliability_score":  score,
	}, "Fix reliability assessment issues"), nil
}
