package stringutil

import (
	"regexp"

	"github.com/cuenv/cuenv/pkg/logger"
)

var sanitizeLog = logger.New("stringutil:sanitize")

// Regex patterns for detecting potential secret key names
var (
	// Match uppercase snake_case identifiers that look like secret names (e.g., MY_SECRET_KEY, GITHUB_TOKEN, API_KEY)
	// Excludes common hook/task-related keywords
	secretNamePattern = regexp.MustCompile(`\b([A-Z][A-Z0-9]*_[A-Z0-9_]+)\b`)

	// Match PascalCase identifiers ending with security-related suffixes (e.g., GitHubToken, ApiKey, DeploySecret)
	pascalCaseSecretPattern = regexp.MustCompile(`\b([A-Z][a-z0-9]*(?:[A-Z][a-z0-9]*)*(?:Token|Key|Secret|Password|Credential|Auth))\b`)

	// Common non-sensitive keywords to exclude from redaction, drawn from
	// cuenv's own env/task/hook vocabulary.
	commonWorkflowKeywords = map[string]bool{
		"PATH":        true,
		"HOME":        true,
		"SHELL":       true,
		"TASK":        true,
		"HOOK":        true,
		"ENV":         true,
		"CUE_DIR":     true,
		"CUE_ROOT":    true,
		"EXIT_CODE":   true,
		"WORKING_DIR": true,
	}
)

// SanitizeErrorMessage removes text that looks like a secret key name from
// hook/task output and error text before it is persisted to execution state
// or printed, so a misbehaving command that echoes its own environment
// doesn't leak credential-shaped names into `env status` output or logs.
// This is a best-effort name-pattern redaction, distinct from
// internal/envmodel's Table.Redact, which only redacts known secret
// *values* that cuenv itself resolved.
func SanitizeErrorMessage(message string) string {
	if message == "" {
		return message
	}

	sanitizeLog.Printf("sanitizing output: length=%d", len(message))

	sanitized := secretNamePattern.ReplaceAllStringFunc(message, func(match string) string {
		if commonWorkflowKeywords[match] {
			return match
		}
		sanitizeLog.Printf("redacted snake_case secret pattern: %s", match)
		return "[REDACTED]"
	})

	sanitized = pascalCaseSecretPattern.ReplaceAllString(sanitized, "[REDACTED]")

	if sanitized != message {
		sanitizeLog.Print("output sanitization applied redactions")
	}

	return sanitized
}
