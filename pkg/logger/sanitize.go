package logger

import (
	"log/slog"
	"strings"
)

// SanitizeUsername strips control characters that would let a crafted
// account name forge log lines
func SanitizeUsername(username string) string {
	replacer := strings.NewReplacer("\r", "", "\n", "", "\t", " ")
	return replacer.Replace(username)
}

// RedactedAttr returns a redacted slog attribute for sensitive values
// In production, returns "[REDACTED]"; in development, returns the actual value
func RedactedAttr(key, value, env string) slog.Attr {
	if env == "production" {
		return slog.String(key, "[REDACTED]")
	}
	return slog.String(key, value)
}

// SanitizeQueryString checks if query string contains sensitive parameters
// and returns true if the entire query string should be redacted
func SanitizeQueryString(rawQuery string) bool {
	sensitiveParams := map[string]bool{
		"password": true,
		"token":    true,
		"secret":   true,
		"api_key":  true,
		"apikey":   true,
		"apitoken": true,
		"auth":     true,
		"cookie":   true,
	}

	query := strings.ToLower(rawQuery)
	for param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
