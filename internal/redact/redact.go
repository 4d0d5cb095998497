// Package redact masks taxpayer identifiers before they cross a trust boundary
// (outbound reviewer prompts, logs, caller-visible error text).
package redact

import (
	"regexp"
	"strings"
)

const visible = 4

// tinLike matches SSN (123-45-6789, 123456789) and EIN (12-3456789) shapes
// that do not start inside a longer digit run. Letters may touch either side.
var tinLike = regexp.MustCompile(`(?:^|\D)(\d{3}-\d{2}-\d{4}|\d{2}-\d{7}|\d{9})`)

// MaskTIN keeps only the last four characters of an identifier.
func MaskTIN(tin string) string {
	tin = strings.TrimSpace(tin)
	if len(tin) <= visible {
		return strings.Repeat("*", visible)
	}
	return "***" + tin[len(tin)-visible:]
}

// Scrub replaces every identifier-shaped substring of s with its masked form.
func Scrub(s string) string {
	var (
		b    strings.Builder
		last int
	)
	for _, m := range tinLike.FindAllStringSubmatchIndex(s, -1) {
		start, end := m[2], m[3]
		if end < len(s) && s[end] >= '0' && s[end] <= '9' {
			continue
		}
		b.WriteString(s[last:start])
		b.WriteString(MaskTIN(s[start:end]))
		last = end
	}
	if last == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}
