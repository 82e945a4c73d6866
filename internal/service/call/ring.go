package call

// CuePlayer is the audible ring cue surface. Implementations wrap whatever
// the shell uses for looping playback.
type CuePlayer interface {
	Play()
	Stop()
}

// NopCue is a CuePlayer for shells without audio output.
type NopCue struct{}

func (NopCue) Play() {}
func (NopCue) Stop() {}

// RingController drives the cue from a derived boolean so the caller can
// re-assert the desired state after every event without double-starting the
// loop or stopping an idle player.
type RingController struct {
	player CuePlayer
	active bool
}

// NewRingController creates a new RingController
func NewRingController(player CuePlayer) *RingController {
	if player == nil {
		player = NopCue{}
	}
	return &RingController{player: player}
}

// SetRinging transitions the cue to the desired state. Idempotent.
func (r *RingController) SetRinging(on bool) {
	if on == r.active {
		return
	}
	r.active = on
	if on {
		r.player.Play()
	} else {
		r.player.Stop()
	}
}

// Active reports whether the cue is currently playing.
func (r *RingController) Active() bool {
	return r.active
}
