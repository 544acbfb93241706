package redact

import (
	"regexp"
	"strings"
)

const placeholder = "[REDACTED]"

// secretPatterns are regex heuristics for common credential types.
var secretPatterns = []*regexp.Regexp{
	// Authorization header values, with or without a scheme
	regexp.MustCompile(`(?i)(authorization"?\s*[:=]\s*"?)(bearer\s+|token\s+)?[A-Za-z0-9._\-]{16,}`),
	// Bearer tokens
	regexp.MustCompile(`(?i)Bearer\s+[A-Za-z0-9._-]{20,}`),
	// GitHub tokens, classic and fine-grained
	regexp.MustCompile(`gh[pousr]_[A-Za-z0-9_]{36,}`),
	regexp.MustCompile(`github_pat_[A-Za-z0-9_]{22,}`),
	// Linear personal API keys
	regexp.MustCompile(`lin_api_[A-Za-z0-9]{32,}`),
	// AWS access key IDs
	regexp.MustCompile(`AKIA[0-9A-Z]{16}`),
	// JWTs (three base64 segments separated by dots)
	regexp.MustCompile(`eyJ[A-Za-z0-9_-]{10,}\.eyJ[A-Za-z0-9_-]{10,}\.[A-Za-z0-9_-]{10,}`),
	// Private key blocks
	regexp.MustCompile(`-----BEGIN\s+(RSA\s+|EC\s+|OPENSSH\s+)?PRIVATE KEY-----`),
	// Slack tokens
	regexp.MustCompile(`xox[bporas]-[A-Za-z0-9-]{10,}`),
	// Generic secrets/tokens/passwords in assignments
	regexp.MustCompile(`(?i)(api[_-]?key|secret|token|password|passwd|credential)"?\s*[:=]\s*["']([^"']{8,})["']`),
}

// Secrets replaces detected credentials in text with [REDACTED].
func Secrets(text string) string {
	result := text
	for _, pat := range secretPatterns {
		result = pat.ReplaceAllString(result, placeholder)
	}
	return result
}

// Mask hides all but the last four characters of a configured secret.
// Short values are hidden entirely.
func Mask(value string) string {
	value = strings.TrimSpace(value)
	switch {
	case value == "":
		return ""
	case len(value) <= 8:
		return strings.Repeat("*", 8)
	default:
		return strings.Repeat("*", 8) + value[len(value)-4:]
	}
}
