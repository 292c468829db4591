// Package strings provides string slice normalization helpers.
package strings

import (
	"strings"
)

// DedupeAndTrim trims whitespace, drops empties and removes duplicates while
// preserving order. Free-text lists arriving over the API (accessibility
// needs, special requirements, case goals) are normalized through here before
// their length caps are checked, so "  meals " and "meals" cannot pad a list
// past its limit.
func DedupeAndTrim(values []string) []string {
	if len(values) == 0 {
		return values
	}

	seen := make(map[string]struct{}, len(values))
	result := make([]string, 0, len(values))
	for _, v := range values {
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		result = append(result, trimmed)
	}
	return result
}
