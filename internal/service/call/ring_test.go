package call

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type countingPlayer struct {
	plays int
	stops int
}

func (p *countingPlayer) Play() { p.plays++ }
func (p *countingPlayer) Stop() { p.stops++ }

func TestRingControllerIsIdempotent(t *testing.T) {
	player := &countingPlayer{}
	ring := NewRingController(player)

	ring.SetRinging(true)
	ring.SetRinging(true)
	assert.Equal(t, 1, player.plays)
	assert.True(t, ring.Active())

	ring.SetRinging(false)
	ring.SetRinging(false)
	assert.Equal(t, 1, player.stops)
	assert.False(t, ring.Active())
}

func TestRingControllerStopWhileIdleIsNoop(t *testing.T) {
	player := &countingPlayer{}
	ring := NewRingController(player)

	ring.SetRinging(false)
	assert.Zero(t, player.stops)
}

func TestRingControllerNilPlayer(t *testing.T) {
	ring := NewRingController(nil)
	ring.SetRinging(true)
	assert.True(t, ring.Active())
}
