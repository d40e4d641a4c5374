package provider

import (
	"encoding/json"
	"strings"

	"interviewer/pkg/provider/llmerrors"
)

// extractJSON pulls a JSON object out of a model response. Models often wrap
// JSON in markdown fences or surround it with prose despite instructions, so
// the first balanced top-level object is extracted from the raw text.
func extractJSON(content string) (string, error) {
	trimmed := strings.TrimSpace(content)

	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.Index(trimmed, "{")
	if start < 0 {
		return "", llmerrors.NewError(llmerrors.ErrorTypeMalformedResponse, "no JSON object in model response")
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(trimmed); i++ {
		c := trimmed[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\' && inString:
			escaped = true
		case c == '"':
			inString = !inString
		case !inString && c == '{':
			depth++
		case !inString && c == '}':
			depth--
			if depth == 0 {
				return trimmed[start : i+1], nil
			}
		}
	}
	return "", llmerrors.NewError(llmerrors.ErrorTypeMalformedResponse, "unbalanced JSON object in model response")
}

// decodeResponse extracts and unmarshals the JSON payload of a response.
func decodeResponse(content string, out any) error {
	payload, err := extractJSON(content)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(payload), out); err != nil {
		return llmerrors.NewErrorWithCause(llmerrors.ErrorTypeMalformedResponse, err, "model response is not valid JSON")
	}
	return nil
}
