package processor

import (
	"strings"
	"unicode"
)

// Invisible characters WhatsApp clients leak into forwarded text.
var strippedRunes = map[rune]bool{
	'\u200B': true, // zero width space
	'\u200E': true, // left-to-right mark
	'\u200F': true, // right-to-left mark
	'\uFEFF': true, // byte order mark
}

// SanitizeText cleans inbound message text before it is persisted or handed to
// the translator: control and invisible marker characters are dropped and
// surrounding whitespace is trimmed. Newlines and tabs survive.
func SanitizeText(s string) string {
	s = strings.Map(func(r rune) rune {
		if strippedRunes[r] {
			return -1
		}
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
