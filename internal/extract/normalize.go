package extract

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Normalize composes text to NFC, drops null bytes and collapses every
// whitespace run to a single space.
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\x00", "")
	s = norm.NFC.String(s)
	return strings.Join(strings.Fields(s), " ")
}
