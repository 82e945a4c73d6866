package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeMessageStripsControlCharacters(t *testing.T) {
	assert.Equal(t, "hello", SanitizeMessage("hel\x00lo"))
	assert.Equal(t, "a b", SanitizeMessage("  a b \x1f "))
}

func TestSanitizeMessageKeepsNewlinesAndMarkup(t *testing.T) {
	assert.Equal(t, "line1\nline2", SanitizeMessage("line1\nline2"))
	assert.Equal(t, "<b>hi</b>", SanitizeMessage("<b>hi</b>"))
}

func TestSanitizeUserID(t *testing.T) {
	assert.Equal(t, "alice_1", SanitizeUserID(" alice_1 "))
	assert.Equal(t, "bob", SanitizeUserID("bob<script>"))
	assert.Equal(t, "", SanitizeUserID("   "))
}
