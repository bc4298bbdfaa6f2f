package validate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// sensitivePatterns match key/value pairs whose key names a credential. The
// optional quote after the keyword lets JSON object keys match too.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)password["']?\s*[:=]\s*["']?[^"'\s]+["']?`),
	regexp.MustCompile(`(?i)api[_-]?key["']?\s*[:=]\s*["']?[^"'\s]+["']?`),
	regexp.MustCompile(`(?i)token["']?\s*[:=]\s*["']?[^"'\s]+["']?`),
	regexp.MustCompile(`(?i)secret["']?\s*[:=]\s*["']?[^"'\s]+["']?`),
	regexp.MustCompile(`(?i)private[_-]?key["']?\s*[:=]\s*["']?[^"'\s]+["']?`),
}

func checkSensitiveData(ctx context.Context, in *Input, _ Rule) (Outcome, error) {
	payload, err := in.payloadJSON()
	if err != nil {
		return Outcome{}, err
	}

	var issues issueList
	for _, re := range sensitivePatterns {
		if re.Match(payload) {
			issues.addf("Sensitive data pattern found: %s", re.String())
		}
	}
	for _, name := range in.agentNames() {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}
		data, err := json.Marshal(in.Agents[name])
		if err != nil {
			return Outcome{}, fmt.Errorf("serialize agent %s: %w", name, err)
		}
		for _, re := range sensitivePatterns {
			if re.Match(data) {
				issues.addf("Agent %s: sensitive data pattern found: %s", name, re.String())
			}
		}
	}

	if len(issues) > 0 {
		return Outcome{
			Status:          Failed,
			Message:         fmt.Sprintf("Sensitive data protection validation failed: %d issues found", len(issues)),
			Details:         map[string]any{"sensitive_issues": issues.list()},
			Recommendations: []string{"Remove or mask sensitive data"},
		}, nil
	}
	return Outcome{
		Status:  Passed,
		Score:   1.0,
		Message: "Sensitive data protection validation passed",
		Details: map[string]any{"sensitive_issues": []string{}},
	}, nil
}

// accessMarkers are the groups of words, any one of which shows a
// mechanism is at least mentioned.
var accessMarkers = []struct {
	words []string
	issue string
}{
	{[]string{"authentication", "auth"}, "No authentication mechanism detected"},
	{[]string{"authorization", "permission"}, "No authorization mechanism detected"},
	{[]string{"bearer", "jwt", "oauth"}, "No token-based authentication detected"},
}

const defaultAccessThreshold = 0.7

func checkAccessControl(_ context.Context, in *Input, rule Rule) (Outcome, error) {
	payload, err := in.payloadJSON()
	if err != nil {
		return Outcome{}, err
	}
	text := string(bytes.ToLower(payload))

	var issues issueList
	for _, m := range accessMarkers {
		found := false
		for _, w := range m.words {
			if strings.Contains(text, w) {
				found = true
				break
			}
		}
		if !found {
			issues = append(issues, m.issue)
		}
	}

	score := ratio(len(issues), len(accessMarkers))
	return scored(rule, score, defaultAccessThreshold, "Access control", issues, map[string]any{
		"access_control_issues": issues.list(),
		"access_control_score":  score,
	}, "Implement proper access control"), nil
}
