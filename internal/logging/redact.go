package logging

import (
	"net/url"
	"regexp"
	"strings"
)

// RedactedValue is the replacement for sensitive values.
const RedactedValue = "[REDACTED]"

// Query parameters whose values never reach the log.
var sensitiveParams = []string{
	"token",
	"access_token",
	"api_key",
	"apikey",
	"key",
	"secret",
	"password",
	"signature",
}

var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)bearer\s+([a-zA-Z0-9._-]{20,})`),
	regexp.MustCompile(`(?i)(key|token|secret|password|auth)[=:]["']?([a-zA-Z0-9+/=_-]{32,})["']?`),
}

// Redact replaces secret-looking substrings in free text such as response bodies.
func Redact(s string) string {
	result := s
	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllString(result, RedactedValue)
	}
	return result
}

// RedactURL strips user info and sensitive query values from a URL string.
// Unparseable input is passed through Redact.
func RedactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return Redact(raw)
	}
	if u.User != nil {
		u.User = url.User(RedactedValue)
	}
	if u.RawQuery != "" {
		q := u.Query()
		for name := range q {
			if IsSensitiveParam(name) {
				q.Set(name, RedactedValue)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// IsSensitiveParam reports whether a query parameter name carries a secret.
func IsSensitiveParam(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range sensitiveParams {
		if lower == p {
			return true
		}
	}
	return false
}
