// Package parser holds small, narrowly-scoped text-parsing utilities
// shared by the CI compiler and tool lockfile loader.
package parser

import (
	"regexp"
	"strings"
)

var cronFieldPattern = regexp.MustCompile(`^[\d*\-/,]+$`)

// IsCronExpression reports whether input looks like a valid 5-field cron
// expression (minute, hour, day of month, month, day of week), used to
// validate a pipeline's raw `scheduled` trigger strings (spec.md §4.9).
func IsCronExpression(input string) bool {
	fields := strings.Fields(input)
	if len(fields) != 5 {
		return false
	}
	for _, field := range fields {
		if !cronFieldPattern.MatchString(field) {
			return false
		}
	}
	return true
}
