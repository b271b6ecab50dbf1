package agent

import (
	"encoding/json"
	"strings"
	"unicode/utf8"
)

const redactedPlaceholder = "***REDACTED***"

func isSensitiveKey(k string) bool {
	switch strings.ToLower(k) {
	case "api_key", "apikey", "access_token", "token", "secret", "client_id":
		return true
	}
	return false
}

// RedactArgs masks credential-shaped fields in a JSON argument string before
// it reaches the logs. Non-JSON input passes through unchanged.
func RedactArgs(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return raw
	}

	var v any
	if json.Unmarshal([]byte(raw), &v) != nil {
		return raw
	}
	b, err := json.Marshal(scrub(v))
	if err != nil {
		return raw
	}
	return string(b)
}

// scrub walks decoded JSON, replacing values under sensitive keys.
func scrub(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, vv := range t {
			if isSensitiveKey(k) {
				t[k] = redactedPlaceholder
			} else {
				t[k] = scrub(vv)
			}
		}
	case []any:
		for i, vv := range t {
			t[i] = scrub(vv)
		}
	}
	return v
}

const logSummaryLimit = 200

// SummarizeForLog truncates tool output for logging. Observation payloads
// carry base64 images and large tables that would swamp the log stream.
func SummarizeForLog(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) <= logSummaryLimit {
		return s
	}
	runes := []rune(s)
	return string(runes[:logSummaryLimit]) + "..."
}
