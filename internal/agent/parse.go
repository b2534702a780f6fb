package agent

import (
	"encoding/json"
	"regexp"
	"strings"
)

// jsonObjectPattern matches the first brace-delimited object in free-form
// model output. Permissive on purpose: models wrap JSON in prose, markdown
// fences, or chain-of-thought text, and the heuristic fallback is the real
// safety net when this guess is wrong.
var jsonObjectPattern = regexp.MustCompile(`\{[^{}]*\}`)

// toolEnvelope is the expected classification output shape.
type toolEnvelope struct {
	Tool string `json:"tool"`
}

// parseDecision extracts a Decision from raw model output. The second return
// is false when no JSON object is found, the object does not decode, or the
// named tool is not one of the three valid values.
func parseDecision(raw string) (Decision, bool) {
	match := jsonObjectPattern.FindString(raw)
	if match == "" {
		return "", false
	}

	var env toolEnvelope
	if err := json.Unmarshal([]byte(match), &env); err != nil {
		return "", false
	}

	switch strings.ToLower(strings.TrimSpace(env.Tool)) {
	case "local":
		return DecisionLocal, true
	case "web":
		return DecisionWeb, true
	case "both":
		return DecisionBoth, true
	default:
		return "", false
	}
}
