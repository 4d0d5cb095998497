package review

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Per-field limits on user-controlled text before it is placed in a prompt.
const (
	maxNameLen         = 100
	maxAddressLineLen  = 120
	maxCityLen         = 60
	maxStateLen        = 4
	maxZIPLen          = 10
	maxBusinessTypeLen = 40
)

var markupEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	"`", "'",
)

// sanitize truncates s to max runes, flattens control characters to spaces
// and escapes markup delimiters so a field cannot close the data block.
func sanitize(s string, max int) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) > max {
		r := []rune(s)
		s = string(r[:max])
	}
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, s)
	return markupEscaper.Replace(s)
}
