// Package redact removes sensitive information from strings before they are
// logged or returned in error responses. Errors bubbling up from the database
// layer or the graph engine client can embed connection strings, hostnames,
// file paths, and raw SQL or Cypher fragments that must not reach clients.
package redact

import "regexp"

// Redaction placeholders
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedKeyPlaceholder        = "[REDACTED_KEY]"
	RedactedPathPlaceholder       = "[REDACTED_PATH]"
)

// Precompiled redaction patterns
var (
	// Database and engine connection strings with embedded credentials
	connStringRegex = regexp.MustCompile(
		`(?i)(postgres|postgresql|neo4j|bolt|db|database|connection)://[^@\s]+@`,
	)

	// Passwords and API keys in key=value or key: value form
	passwordRegex = regexp.MustCompile(`(?i)(password|passwd|pwd)([=:\s]?['"]?)[^'"&\s]{3,}`)
	apiKeyRegex   = regexp.MustCompile(
		`(?i)(api[_-]?key|token|secret|key|auth)(['"\s:=]+)[A-Za-z0-9_\-.~+/]{8,}`,
	)

	// Filesystem paths
	unixPathRegex = regexp.MustCompile(`(/[\w.-]+){2,}`)

	// SQL statements leaking table or column names
	sqlRegex = regexp.MustCompile(
		`(?i)(SELECT|INSERT|UPDATE|DELETE|CREATE|ALTER|DROP)[\s\w,*()]+(?:FROM|INTO|SET|TABLE)(?:[\s\w,*()='"]+)?`,
	)

	// Graph query fragments leaking label or property names
	cypherRegex = regexp.MustCompile(`(?i)(MATCH|MERGE)\s*\([\s\S]+?\)`)

	// Hostnames with optional ports
	hostPortRegex = regexp.MustCompile(
		`\b(?:[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?\.)+[a-zA-Z]{2,}(?::\d{1,5})?\b`,
	)

	patternPlaceholders = []struct {
		pattern     *regexp.Regexp
		placeholder string
	}{
		{connStringRegex, RedactedCredentialPlaceholder},
		{passwordRegex, RedactedCredentialPlaceholder},
		{apiKeyRegex, RedactedKeyPlaceholder},
		{unixPathRegex, RedactedPathPlaceholder},
		{sqlRegex, "[REDACTED_SQL]"},
		{cypherRegex, "[REDACTED_QUERY]"},
		{hostPortRegex, "[REDACTED_HOST]"},
	}
)

// String redacts sensitive information from the input string.
func String(input string) string {
	if input == "" {
		return input
	}

	result := input
	for _, p := range patternPlaceholders {
		result = p.pattern.ReplaceAllString(result, p.placeholder)
	}
	return result
}

// Error redacts sensitive information from an error's Error() output.
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
