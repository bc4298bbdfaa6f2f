package validate

import (
	"context"
	"encoding/json"
	"fmt"

	"archstatus/internal/model"
)

// checkJSONSyntax verifies the report contains no cycles and survives a
// JSON round trip. Cycles are looked for on the in-memory input, since a
// decoded value can never contain one.
func checkJSONSyntax(_ context.Context, in *Input, _ Rule) (Outcome, error) {
	if hasCycle(in.Report) {
		return Outcome{
			Status:          Failed,
			Message:         "Circular references detected in JSON data",
			Details:         map[string]any{"issue": "circular_reference"},
			Recommendations: []string{"Remove circular references in data structure"},
		}, nil
	}

	payload, err := in.payloadJSON()
	if err == nil {
		var back any
		err = json.Unmarshal(payload, &back)
	}
	if err != nil {
		return Outcome{
			Status:          Failed,
			Message:         fmt.Sprintf("JSON syntax validation failed: %v", err),
			Details:         map[string]any{"error": err.Error()},
			Recommendations: []string{"Fix JSON syntax errors"},
		}, nil
	}
	return Outcome{
		Status:  Passed,
		Score:   1.0,
		Message: "JSON syntax is valid",
		Details: map[string]any{"json_size": len(payload)},
	}, nil
}

// checkSchemaCompliance fails on missing top-level fields and warns on
// assets lacking id, type or status.
func checkSchemaCompliance(_ context.Context, in *Input, _ Rule) (Outcome, error) {
	missing := []string{}
	for _, f := range model.RequiredFields {
		if !has(in.Report, f) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return Outcome{
			Status:          Failed,
			Message:         fmt.Sprintf("Missing required fields: %v", missing),
			Details:         map[string]any{"missing_fields": missing},
			Recommendations: []string{"Add missing required fields to data structure"},
		}, nil
	}

	assets := in.assets()
	var issues issueList
	for i, a := range assets {
		asset, ok := a.(map[string]any)
		if !ok {
			issues.addf("Asset %d: not an object", i)
			continue
		}
		for _, f := range []string{"id", "type", "status"} {
			if !has(asset, f) {
				issues.addf("Asset %d: missing '%s' field", i, f)
			}
		}
	}
	if len(issues) > 0 {
		return Outcome{
			Status:          Warning,
			Score:           0.7,
			Message:         fmt.Sprintf("Asset structure issues: %d found", len(issues)),
			Details:         map[string]any{"asset_issues": issues.list()},
			Recommendations: []string{"Fix asset structure issues"},
		}, nil
	}
	return Outcome{
		Status:  Passed,
		Score:   1.0,
		Message: "Schema compliance validation passed",
		Details: map[string]any{"assets_count": len(assets), "edges_count": len(in.edges())},
	}, nil
}
