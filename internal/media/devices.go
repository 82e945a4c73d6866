package media

import (
	"context"
	"sync/atomic"

	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media"

	"telecare-calling/internal/domain"
)

// StaticSource is a TrackSource over pre-built sample tracks. The calling
// shell feeds encoded samples through WriteAudio/WriteVideo; disabled kinds
// silently drop samples so mute keeps the device warm without transmitting.
type StaticSource struct {
	audio *webrtc.TrackLocalStaticSample
	video *webrtc.TrackLocalStaticSample

	audioEnabled atomic.Bool
	videoEnabled atomic.Bool
	closed       atomic.Bool

	// OnClose lets the shell stop the platform capture when the call ends.
	OnClose func()
}

// NewStaticSource creates a source for the given call type. Voice calls
// carry no video track.
func NewStaticSource(callType domain.CallType) (*StaticSource, error) {
	audio, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio", "telecare-local",
	)
	if err != nil {
		return nil, err
	}

	s := &StaticSource{audio: audio}
	s.audioEnabled.Store(true)

	if callType == domain.CallTypeVideo {
		video, err := webrtc.NewTrackLocalStaticSample(
			webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeVP8},
			"video", "telecare-local",
		)
		if err != nil {
			return nil, err
		}
		s.video = video
		s.videoEnabled.Store(true)
	}

	return s, nil
}

// AudioTrack returns the local audio track.
func (s *StaticSource) AudioTrack() webrtc.TrackLocal {
	if s.audio == nil {
		return nil
	}
	return s.audio
}

// VideoTrack returns the local video track, or nil for voice calls.
func (s *StaticSource) VideoTrack() webrtc.TrackLocal {
	if s.video == nil {
		return nil
	}
	return s.video
}

// SetAudioEnabled gates audio sample delivery.
func (s *StaticSource) SetAudioEnabled(enabled bool) {
	s.audioEnabled.Store(enabled)
}

// SetVideoEnabled gates video sample delivery.
func (s *StaticSource) SetVideoEnabled(enabled bool) {
	s.videoEnabled.Store(enabled)
}

// AudioEnabled reports whether audio samples are being transmitted.
func (s *StaticSource) AudioEnabled() bool { return s.audioEnabled.Load() }

// VideoEnabled reports whether video samples are being transmitted.
func (s *StaticSource) VideoEnabled() bool { return s.videoEnabled.Load() }

// WriteAudio forwards one encoded audio sample unless muted or closed.
func (s *StaticSource) WriteAudio(sample media.Sample) error {
	if s.closed.Load() || !s.audioEnabled.Load() || s.audio == nil {
		return nil
	}
	return s.audio.WriteSample(sample)
}

// WriteVideo forwards one encoded video sample unless the camera is off.
func (s *StaticSource) WriteVideo(sample media.Sample) error {
	if s.closed.Load() || !s.videoEnabled.Load() || s.video == nil {
		return nil
	}
	return s.video.WriteSample(sample)
}

// Close stops sample delivery and notifies the shell to release capture.
func (s *StaticSource) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.OnClose != nil {
		s.OnClose()
	}
	return nil
}

// StaticSourceFactory acquires StaticSources. AcquireErr simulates a device
// permission failure path for shells that detect it ahead of time.
type StaticSourceFactory struct {
	AcquireErr error
}

// Acquire implements SourceFactory.
func (f *StaticSourceFactory) Acquire(_ context.Context, callType domain.CallType) (TrackSource, error) {
	if f.AcquireErr != nil {
		return nil, f.AcquireErr
	}
	return NewStaticSource(callType)
}
