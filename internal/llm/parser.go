package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"fincoach-backend/internal/model"
)

// ParseCandidates converts a raw completion into candidate modules.
// Models return the payload in several shapes: a bare array, a
// {"modules": [...]} wrapper, a single object, or any of those embedded
// in surrounding prose. All shapes are tried before giving up; an
// unusable payload is an error, never a silent empty list.
func ParseCandidates(raw string) ([]model.CandidateModule, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty generation payload")
	}

	if candidates, ok := tryShapes(trimmed); ok {
		return candidates, nil
	}

	// Fall back to the outermost JSON-looking substring.
	if extracted := extractJSON(trimmed); extracted != "" {
		if candidates, ok := tryShapes(extracted); ok {
			return candidates, nil
		}
	}

	return nil, fmt.Errorf("generation payload did not match any known shape")
}

func tryShapes(payload string) ([]model.CandidateModule, bool) {
	var list []model.CandidateModule
	if err := json.Unmarshal([]byte(payload), &list); err == nil && len(list) > 0 {
		return list, true
	}

	var wrapper struct {
		Modules []model.CandidateModule `json:"modules"`
	}
	if err := json.Unmarshal([]byte(payload), &wrapper); err == nil && len(wrapper.Modules) > 0 {
		return wrapper.Modules, true
	}

	var single model.CandidateModule
	if err := json.Unmarshal([]byte(payload), &single); err == nil && single.Title != "" {
		return []model.CandidateModule{single}, true
	}

	return nil, false
}

// extractJSON returns the widest substring that looks like a JSON array
// or object, preferring the array form.
func extractJSON(s string) string {
	if start, end := strings.Index(s, "["), strings.LastIndex(s, "]"); start >= 0 && end > start {
		return s[start : end+1]
	}
	if start, end := strings.Index(s, "{"), strings.LastIndex(s, "}"); start >= 0 && end > start {
		return s[start : end+1]
	}
	return ""
}
