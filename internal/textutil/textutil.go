// Package textutil holds the small text helpers shared by the trace
// classifier and the report renderer.
package textutil

import (
	"encoding/json"
	"strings"
)

// Truncate shortens s to at most max runes, appending an ellipsis when it
// had to cut. Hebrew answers are multi-byte; counting runes keeps the cut
// from splitting a character.
func Truncate(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}

// Unquote removes one level of JSON string quoting, when present. Action
// group payloads sometimes arrive double-encoded ("\"{...}\"").
func Unquote(s string) string {
	trimmed := strings.TrimSpace(s)
	if len(trimmed) >= 2 && strings.HasPrefix(trimmed, `"`) && strings.HasSuffix(trimmed, `"`) {
		var out string
		if err := json.Unmarshal([]byte(trimmed), &out); err == nil {
			return out
		}
	}
	return s
}

// FormatForDisplay pretty-prints s when it is a JSON object, otherwise
// returns it unchanged. Parse failures fall back to the raw text; display
// formatting must never error.
func FormatForDisplay(s string) string {
	candidate := Unquote(s)
	if !strings.HasPrefix(strings.TrimSpace(candidate), "{") {
		return candidate
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(candidate), &obj); err != nil {
		return candidate
	}
	pretty, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return candidate
	}
	return string(pretty)
}

// IsJSONObject reports whether s looks like a JSON object payload.
func IsJSONObject(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(Unquote(s)), "{")
}
