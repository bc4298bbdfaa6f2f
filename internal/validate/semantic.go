package validate

import (
	"context"
	"slices"
)

func assetLabel(asset map[string]any) string {
	if id := asString(asset["id"]); id != "" {
		return id
	}
	return "unknown"
}

func checkStatusConsistency(ctx context.Context, in *Input, rule Rule) (Outcome, error) {
	assets := in.assets()
	if len(assets) == 0 {
		return Outcome{
			Status:          Warning,
			Score:           0.5,
			Message:         "No assets to validate status consistency",
			Details:         map[string]any{"assets_count": 0},
			Recommendations: []string{},
		}, nil
	}

	counts := map[string]int{}
	var issues issueList
	for _, a := range assets {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		asset := asMap(a)
		st := asMap(asset["status"])
		state := asString(st["state"])
		if state == "" {
			state = "unknown"
		}
		counts[state]++

		progress, ok := numberOr(st, "progress", 0)
		if !ok || progress < 0 || progress > 100 {
			issues.addf("Asset %s: invalid progress value %v", assetLabel(asset), st["progress"])
		}
		if !ok {
			continue
		}
		switch {
		case state == "built" && progress < 100:
			issues.addf("Asset %s: 'built' status with progress %v%%", assetLabel(asset), progress)
		case state == "backlogged" && progress > 0:
			issues.addf("Asset %s: 'backlogged' status with progress %v%%", assetLabel(asset), progress)
		}
	}

	score := ratio(len(issues), len(assets))
	return scored(rule, score, defaultRatioThreshold, "Status consistency", issues, map[string]any{
		"status_counts":     counts,
		"issues_found":      len(issues),
		"consistency_score": score,
	}, "Fix status consistency issues"), nil
}

func checkDependencyValidity(_ context.Context, in *Input, rule Rule) (Outcome, error) {
	assets, edges := in.assets(), in.edges()
	ids := assetIDs(assets)

	var badEdges, badDeps issueList
	for _, e := range edges {
		edge := asMap(e)
		if from := edge["from"]; !ids[asString(from)] {
			badEdges.addf("Edge references non-existent 'from' asset: %v", from)
		}
		if to := edge["to"]; !ids[asString(to)] {
			badEdges.addf("Edge references non-existent 'to' asset: %v", to)
		}
	}
	for _, a := range assets {
		asset := asMap(a)
		deps := asMap(asset["dependencies"])
		for _, d := range asSlice(deps["ai_validated_dependencies"]) {
			id := asString(asMap(d)["dependency_id"])
			if id != "" && !ids[id] {
				badDeps.addf("Asset %s references non-existent dependency: %s", assetLabel(asset), id)
			}
		}
	}

	total := len(badEdges) + len(badDeps)
	score := ratio(total, len(edges)+len(assets))
	return scored(rule, score, defaultRatioThreshold, "Dependency validity", append(badEdges, badDeps...), map[string]any{
		"invalid_edges":        badEdges.list(),
		"invalid_dependencies": badDeps.list(),
		"total_issues":         total,
		"validity_score":       score,
	}, "Fix invalid dependency references"), nil
}

func checkRelationshipCoherence(_ context.Context, in *Input, rule Rule) (Outcome, error) {
	edges := in.edges()
	byID := map[string]map[string]any{}
	for _, a := range in.assets() {
		asset := asMap(a)
		if id, ok := asset["id"].(string); ok {
			byID[id] = asset
		}
	}

	var issues issueList
	for _, e := range edges {
		edge := asMap(e)
		from, to := asString(edge["from"]), asString(edge["to"])
		fromAsset, okFrom := byID[from]
		toAsset, okTo := byID[to]
		if !okFrom || !okTo {
			continue
		}
		strength, _ := numberOr(edge, "strength", 0)

		switch asString(edge["type"]) {
		case "dependsOn":
			if strength < 0.1 {
				issues.addf("Edge %s -> %s: very weak dependency (strength: %v)", from, to, strength)
			}
		case "conflictsWith":
			ft, tt := asString(fromAsset["type"]), asString(toAsset["type"])
			if !typesCompatible(ft, tt) {
				issues.addf("Edge %s -> %s: conflict between incompatible types (%s vs %s)", from, to, ft, tt)
			}
		}
		if from == to {
			issues.addf("Edge %s -> %s: self-reference detected", from, to)
		}
	}

	score := ratio(len(issues), len(edges))
	return scored(rule, score, defaultRatioThreshold, "Relationship coherence", issues, map[string]any{
		"coherence_issues": issues.list(),
		"total_edges":      len(edges),
		"coherence_score":  score,
	}, "Fix relationship coherence issues"), nil
}

func assetIDs(assets []any) map[string]bool {
	ids := make(map[string]bool, len(assets))
	for _, a := range assets {
		if id, ok := asMap(a)["id"].(string); ok {
			ids[id] = true
		}
	}
	return ids
}

// compatibleTypes lists, per asset type, the other types it may legitimately
// conflict with. The relation is symmetric.
var compatibleTypes = map[string][]string{
	"component.ui.react": {"component.ui", "component.ui.3d"},
	"component.ui.3d":    {"component.ui", "component.ui.react"},
	"service.backend":    {"service.api", "service.serverless"},
	"service.api":        {"service.backend", "service.serverless"},
	"service.serverless": {"service.backend", "service.api"},
	"library.js":         {"library.utils", "library.shared"},
	"library.utils":      {"library.js", "library.shared"},
	"library.shared":     {"library.js", "library.utils"},
}

func typesCompatible(a, b string) bool {
	return a == b ||
		slices.Contains(compatibleTypes[a], b) ||
		slices.Contains(compatibleTypes[b], a)
}
