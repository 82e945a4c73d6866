package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseDefaults(t *testing.T) {
	p := Parse("", "")
	assert.Equal(t, DefaultLimit, p.Limit)
	assert.Equal(t, 0, p.Offset)
}

func TestParseClampsOutOfRange(t *testing.T) {
	p := Parse("9999", "-5")
	assert.Equal(t, DefaultLimit, p.Limit)
	assert.Equal(t, 0, p.Offset)

	p = Parse("abc", "xyz")
	assert.Equal(t, DefaultLimit, p.Limit)
	assert.Equal(t, 0, p.Offset)
}

func TestParseAcceptsValidValues(t *testing.T) {
	p := Parse("25", "100")
	assert.Equal(t, 25, p.Limit)
	assert.Equal(t, 100, p.Offset)
}
