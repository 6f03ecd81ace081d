// Package tokens implements the chars-based token estimator used throughout
// the HUD builder and memory budgeter. Grounded on the prototype's
// estimate_tokens/estimate_json_tokens (hud_service.py) and the teacher's
// now-removed internal/cost token estimator, which used the same
// len(text)/4 heuristic for a different domain.
package tokens

import "encoding/json"

// Estimate returns the approximate token count for text: len(text)/4 with
// integer division, plus one, with an empty string costing zero tokens.
func Estimate(text string) int {
	if text == "" {
		return 0
	}
	return len(text)/4 + 1
}

// EstimateJSON marshals v to canonical JSON and estimates its token count.
// Returns 0 if v cannot be marshaled.
func EstimateJSON(v any) int {
	b, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return Estimate(string(b))
}
