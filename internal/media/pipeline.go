package media

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	"go.uber.org/zap"

	"telecare-calling/internal/domain"
	"telecare-calling/pkg/errors"
	"telecare-calling/pkg/logger"
)

// defaultSTUNServers is the fixed list of public discovery-assistance
// servers every endpoint is configured with.
var defaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// PipelineConfig carries per-call construction parameters.
type PipelineConfig struct {
	CallType domain.CallType
	Source   TrackSource

	// STUNServers overrides the default discovery-assistance list.
	STUNServers []string

	// OnRemoteTrack binds incoming media to the playback surface.
	OnRemoteTrack func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
}

// Pipeline is the pion-backed Controller implementation: one negotiation
// endpoint per call, local tracks attached before any description is
// produced.
type Pipeline struct {
	pc     *webrtc.PeerConnection
	source TrackSource

	mu               sync.Mutex
	onLocalCandidate func(payload string)
	pendingRemote    []webrtc.ICECandidateInit
	remoteApplied    bool
	closed           bool
}

// NewPipeline constructs the endpoint, attaches the source's tracks, and
// wires the candidate and track callbacks.
func NewPipeline(cfg *PipelineConfig) (*Pipeline, error) {
	servers := cfg.STUNServers
	if len(servers) == 0 {
		servers = defaultSTUNServers
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{
		ICEServers: []webrtc.ICEServer{{URLs: servers}},
	})
	if err != nil {
		return nil, errors.SetupFailedError("failed to construct negotiation endpoint", err)
	}

	p := &Pipeline{pc: pc, source: cfg.Source}

	// Attach all local tracks before any offer/answer is produced. A kind
	// with no local track still gets a recvonly transceiver so the SDP
	// carries valid m-lines for it.
	if track := cfg.Source.AudioTrack(); track != nil {
		if _, err := pc.AddTrack(track); err != nil {
			_ = pc.Close()
			return nil, errors.SetupFailedError("failed to attach audio track", err)
		}
	} else if err := addRecvOnly(pc, webrtc.RTPCodecTypeAudio); err != nil {
		_ = pc.Close()
		return nil, errors.SetupFailedError("failed to add audio transceiver", err)
	}

	if track := cfg.Source.VideoTrack(); track != nil {
		if _, err := pc.AddTrack(track); err != nil {
			_ = pc.Close()
			return nil, errors.SetupFailedError("failed to attach video track", err)
		}
	} else if cfg.CallType == domain.CallTypeVideo {
		if err := addRecvOnly(pc, webrtc.RTPCodecTypeVideo); err != nil {
			_ = pc.Close()
			return nil, errors.SetupFailedError("failed to add video transceiver", err)
		}
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		payload, err := json.Marshal(c.ToJSON())
		if err != nil {
			logger.Warn("failed to serialize local candidate", zap.Error(err))
			return
		}
		p.mu.Lock()
		fn := p.onLocalCandidate
		p.mu.Unlock()
		if fn != nil {
			fn(string(payload))
		}
	})

	if cfg.OnRemoteTrack != nil {
		pc.OnTrack(cfg.OnRemoteTrack)
	}

	return p, nil
}

func addRecvOnly(pc *webrtc.PeerConnection, kind webrtc.RTPCodecType) error {
	_, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
		Direction: webrtc.RTPTransceiverDirectionRecvonly,
	})
	return err
}

// OnLocalCandidate registers the sink for locally discovered candidates.
func (p *Pipeline) OnLocalCandidate(fn func(payload string)) {
	p.mu.Lock()
	p.onLocalCandidate = fn
	p.mu.Unlock()
}

// CreateOffer produces and installs the local offer.
func (p *Pipeline) CreateOffer(ctx context.Context) (*domain.SessionDescription, error) {
	offer, err := p.pc.CreateOffer(nil)
	if err != nil {
		return nil, errors.NegotiationError("failed to create offer", err)
	}
	if err := p.pc.SetLocalDescription(offer); err != nil {
		return nil, errors.NegotiationError("failed to set local offer", err)
	}
	return &domain.SessionDescription{Type: offer.Type.String(), SDP: offer.SDP}, nil
}

// AcceptOffer applies the remote offer (once) and produces the answer.
func (p *Pipeline) AcceptOffer(ctx context.Context, offer *domain.SessionDescription) (*domain.SessionDescription, error) {
	if p.pc.CurrentRemoteDescription() != nil {
		return nil, errors.InvalidStateError("remote offer already applied")
	}

	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: offer.SDP}
	if err := p.pc.SetRemoteDescription(remote); err != nil {
		return nil, errors.NegotiationError("failed to apply remote offer", err)
	}

	answer, err := p.pc.CreateAnswer(nil)
	if err != nil {
		return nil, errors.NegotiationError("failed to create answer", err)
	}
	if err := p.pc.SetLocalDescription(answer); err != nil {
		return nil, errors.NegotiationError("failed to set local answer", err)
	}

	p.flushPendingCandidates()
	return &domain.SessionDescription{Type: answer.Type.String(), SDP: answer.SDP}, nil
}

// AcceptAnswer applies the remote answer (once).
func (p *Pipeline) AcceptAnswer(ctx context.Context, answer *domain.SessionDescription) error {
	if p.pc.CurrentRemoteDescription() != nil {
		return errors.InvalidStateError("remote answer already applied")
	}

	remote := webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer.SDP}
	if err := p.pc.SetRemoteDescription(remote); err != nil {
		return errors.NegotiationError("failed to apply remote answer", err)
	}

	p.flushPendingCandidates()
	return nil
}

// AddRemoteCandidate applies one relayed candidate. Candidates arriving
// before the remote description are buffered and flushed afterwards;
// duplicates and malformed payloads surface as non-fatal errors.
func (p *Pipeline) AddRemoteCandidate(payload string) error {
	var init webrtc.ICECandidateInit
	if err := json.Unmarshal([]byte(payload), &init); err != nil {
		return errors.NegotiationError("malformed candidate payload", err)
	}

	p.mu.Lock()
	if !p.remoteAppliedLocked() {
		p.pendingRemote = append(p.pendingRemote, init)
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	if err := p.pc.AddICECandidate(init); err != nil {
		return errors.NegotiationError("failed to apply candidate", err)
	}
	return nil
}

func (p *Pipeline) remoteAppliedLocked() bool {
	return p.remoteApplied || p.pc.CurrentRemoteDescription() != nil
}

func (p *Pipeline) flushPendingCandidates() {
	p.mu.Lock()
	pending := p.pendingRemote
	p.pendingRemote = nil
	p.remoteApplied = true
	p.mu.Unlock()

	for _, init := range pending {
		if err := p.pc.AddICECandidate(init); err != nil {
			logger.Warn("failed to apply buffered candidate", zap.Error(err))
		}
	}
}

// SetMuted disables the local audio track without releasing the device.
func (p *Pipeline) SetMuted(muted bool) {
	p.source.SetAudioEnabled(!muted)
}

// SetCameraOff disables the local video track without releasing the device.
func (p *Pipeline) SetCameraOff(off bool) {
	p.source.SetVideoEnabled(!off)
}

// Close releases the endpoint and the capture source. Idempotent.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	var firstErr error
	if err := p.pc.Close(); err != nil {
		firstErr = fmt.Errorf("failed to close negotiation endpoint: %w", err)
	}
	if err := p.source.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to release capture source: %w", err)
	}
	return firstErr
}

// PionFactory builds pion pipelines, acquiring capture devices per call.
type PionFactory struct {
	Sources       SourceFactory
	STUNServers   []string
	OnRemoteTrack func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
}

// New implements Factory. Device acquisition failures are fatal to call
// establishment and reported as setup errors; nothing is written to the
// store before this succeeds.
func (f *PionFactory) New(ctx context.Context, callType domain.CallType) (Controller, error) {
	source, err := f.Sources.Acquire(ctx, callType)
	if err != nil {
		return nil, errors.DeviceDeniedError(err)
	}

	pipeline, err := NewPipeline(&PipelineConfig{
		CallType:      callType,
		Source:        source,
		STUNServers:   f.STUNServers,
		OnRemoteTrack: f.OnRemoteTrack,
	})
	if err != nil {
		_ = source.Close()
		return nil, err
	}
	return pipeline, nil
}
