// Package sanitize cleans user-entered text before it is embedded in shared
// documents.
package sanitize

import (
	"regexp"
	"strings"
)

var controlChars = regexp.MustCompile(`[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]`)

// SanitizeMessage cleans one chat message: control characters are stripped
// and surrounding whitespace trimmed. Message content is rendered as plain
// text by the clients, so markup is left alone.
func SanitizeMessage(input string) string {
	input = controlChars.ReplaceAllString(input, "")
	return strings.TrimSpace(input)
}

// SanitizeUserID normalizes a user identifier from a query parameter.
// Identifiers are opaque alphanumeric ids; anything else is stripped.
func SanitizeUserID(input string) string {
	input = strings.TrimSpace(input)
	reg := regexp.MustCompile(`[^a-zA-Z0-9_.-]`)
	return reg.ReplaceAllString(input, "")
}
