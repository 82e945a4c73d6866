package call

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"telecare-calling/internal/domain"
	"telecare-calling/internal/media"
	"telecare-calling/internal/signalstore"
	"telecare-calling/pkg/constants"
	apperrors "telecare-calling/pkg/errors"
	"telecare-calling/pkg/logger"
	"telecare-calling/pkg/metrics"
	"telecare-calling/pkg/sanitize"
)

// SessionStore is the engine's view of the call-session repository.
type SessionStore interface {
	Create(ctx context.Context, session *domain.CallSession) error
	Get(ctx context.Context, callID string) (*domain.CallSession, error)
	Watch(ctx context.Context, callID string) (<-chan *domain.CallSession, signalstore.CancelFunc, error)
	MarkAccepted(ctx context.Context, callID string, at time.Time) error
	MarkEnded(ctx context.Context, callID string, status domain.CallStatus, at time.Time, duration int) error
	SetOffer(ctx context.Context, callID string, desc *domain.SessionDescription) error
	SetAnswer(ctx context.Context, callID string, desc *domain.SessionDescription) error
	AppendMessage(ctx context.Context, callID string, msg domain.ChatMessage) error
}

// PointerStore is the engine's view of the active-call registry.
type PointerStore interface {
	Put(ctx context.Context, ptr *domain.ActiveCallPointer) error
	Get(ctx context.Context, userID string) (*domain.ActiveCallPointer, error)
	Delete(ctx context.Context, userID string) error
	Watch(ctx context.Context, userID string) (<-chan *domain.ActiveCallPointer, signalstore.CancelFunc, error)
}

// CandidateStore is the engine's view of the per-call candidate relay.
type CandidateStore interface {
	Add(ctx context.Context, callID string, cand domain.IceCandidate) error
	Watch(ctx context.Context, callID string) (<-chan []domain.IceCandidate, signalstore.CancelFunc, error)
}

// SummaryNotifier posts the terminal call summary into the originating
// conversation.
type SummaryNotifier interface {
	AppendCallSummary(ctx context.Context, conversationID string, summary domain.CallSummary) error
}

// PresenceChecker answers whether a user currently has a live client.
type PresenceChecker interface {
	IsUserOnline(ctx context.Context, userID string) (bool, error)
}

// IncomingCallPusher delivers the out-of-band incoming-call notification to
// the callee's devices.
type IncomingCallPusher interface {
	NotifyIncomingCall(ctx context.Context, ptr *domain.ActiveCallPointer) error
}

// Archiver records finished calls for history. Best-effort; failures never
// surface to the call path.
type Archiver interface {
	ArchiveCall(ctx context.Context, session *domain.CallSession)
}

// Config carries the engine's dependencies. Sessions, Registry, Candidates,
// Media, and SelfID are required; everything else is optional.
type Config struct {
	SelfID string

	Sessions   SessionStore
	Registry   PointerStore
	Candidates CandidateStore
	Media      media.Factory

	Conversations SummaryNotifier
	Presence      PresenceChecker
	Push          IncomingCallPusher
	History       Archiver

	// Cue is the ring playback surface for the caller's ringback.
	Cue CuePlayer

	// OnUpdate receives a state snapshot after every change. Called from the
	// engine's event loop; keep it fast.
	OnUpdate func(Snapshot)

	// Clock, RingTimeout, and TickInterval default to the real clock and the
	// subsystem constants.
	Clock        func() time.Time
	RingTimeout  time.Duration
	TickInterval time.Duration
}

type commandKind int

const (
	cmdEnd commandKind = iota
	cmdToggleMute
	cmdToggleCamera
)

type command struct {
	kind commandKind
}

// Engine is one call's state machine: a single event loop serializing
// session snapshots, candidate batches, local commands, and timer ticks.
// Create one per call attempt; Start may be called once.
type Engine struct {
	cfg          Config
	clock        func() time.Time
	ringTimeout  time.Duration
	tickInterval time.Duration

	ring  *RingController
	media media.Controller

	// callID is set during Start and immutable afterwards.
	callID string

	st            *callState
	primed        *domain.CallSession
	ringStarted   time.Time
	everConnected bool

	ctx        context.Context
	cancel     context.CancelFunc
	cancelSubs func()

	events    chan command
	done      chan struct{}
	started   atomic.Bool
	closeOnce sync.Once

	mu   sync.RWMutex
	last Snapshot
}

// New validates the configuration and builds an idle engine.
func New(cfg Config) (*Engine, error) {
	if cfg.SelfID == "" {
		return nil, apperrors.InvalidInputError("self id is required")
	}
	if cfg.Sessions == nil || cfg.Registry == nil || cfg.Candidates == nil || cfg.Media == nil {
		return nil, apperrors.InvalidInputError("sessions, registry, candidates, and media are required")
	}

	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	ringTimeout := cfg.RingTimeout
	if ringTimeout <= 0 {
		ringTimeout = constants.RingTimeout
	}
	tick := cfg.TickInterval
	if tick <= 0 {
		tick = constants.DurationTickInterval
	}

	return &Engine{
		cfg:          cfg,
		clock:        clock,
		ringTimeout:  ringTimeout,
		tickInterval: tick,
		ring:         NewRingController(cfg.Cue),
		events:       make(chan command, 8),
		done:         make(chan struct{}),
	}, nil
}

// Start resolves the entry point (fresh dial, incoming call, or resumed
// call), acquires media, performs the setup writes, and launches the event
// loop. The given ctx governs the whole call: cancelling it tears the call
// down as if the view had been closed.
//
// Setup failures are ordered so no partial state leaks: a device failure
// writes nothing, a session-create failure writes no pointer, and a pointer
// failure retracts the session.
func (e *Engine) Start(ctx context.Context, peer string, callType domain.CallType, conversationID string) error {
	if e.started.Load() {
		return apperrors.InvalidStateError("engine already started")
	}
	if peer == "" || peer == e.cfg.SelfID {
		return apperrors.InvalidInputError("peer must be another user")
	}
	if !callType.Valid() {
		return apperrors.InvalidInputError("unknown call type")
	}

	e.st = &callState{
		phase:             StateRinging,
		role:              domain.RoleCaller,
		self:              e.cfg.SelfID,
		peer:              peer,
		callType:          callType,
		status:            domain.CallStatusRinging,
		conversationID:    conversationID,
		appliedCandidates: make(map[string]bool),
	}

	role, session, err := e.resolveEntry(ctx)
	if err != nil {
		return err
	}
	if session != nil {
		e.adoptSession(role, session)
	}

	// Media first: a device failure must leave no trace in the store.
	ctl, err := e.cfg.Media.New(ctx, e.st.callType)
	if err != nil {
		return err
	}
	e.media = ctl

	if session == nil {
		session, err = e.announceCall(ctx, conversationID)
		if err != nil {
			_ = ctl.Close()
			return err
		}
	}
	e.callID = e.st.callID

	if e.cfg.Presence != nil {
		if online, perr := e.cfg.Presence.IsUserOnline(ctx, peer); perr == nil {
			e.st.peerOnline = online
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	e.ctx, e.cancel = runCtx, cancel

	sessionCh, cancelSession, err := e.cfg.Sessions.Watch(runCtx, e.callID)
	if err != nil {
		cancel()
		_ = ctl.Close()
		return apperrors.StoreError("failed to subscribe to call session", err)
	}
	candidateCh, cancelCandidates, err := e.cfg.Candidates.Watch(runCtx, e.callID)
	if err != nil {
		cancelSession()
		cancel()
		_ = ctl.Close()
		return apperrors.StoreError("failed to subscribe to candidate relay", err)
	}
	e.cancelSubs = func() {
		cancelSession()
		cancelCandidates()
	}

	ctl.OnLocalCandidate(func(payload string) {
		cctx, ccancel := context.WithTimeout(runCtx, constants.StoreTimeout)
		defer ccancel()
		cand := domain.IceCandidate{From: e.cfg.SelfID, Payload: payload}
		if aerr := e.cfg.Candidates.Add(cctx, e.callID, cand); aerr != nil {
			logger.Warn("failed to relay local candidate",
				zap.String("call_id", e.callID), zap.Error(aerr))
			return
		}
		metrics.CandidateRelayedTotal.Inc()
	})

	if e.st.role == domain.RoleCaller {
		if !e.st.offerSent {
			offer, oerr := ctl.CreateOffer(ctx)
			if oerr != nil {
				e.abortSetup(ctx)
				return oerr
			}
			if serr := e.cfg.Sessions.SetOffer(ctx, e.callID, offer); serr != nil {
				e.abortSetup(ctx)
				return apperrors.StoreError("failed to publish offer", serr)
			}
			e.st.offerSent = true
		}
	} else if e.st.status == domain.CallStatusRinging {
		// Entering the call view as the callee is the accept.
		if aerr := e.cfg.Sessions.MarkAccepted(ctx, e.callID, e.clock()); aerr != nil {
			e.abortSetup(ctx)
			return apperrors.StoreError("failed to accept call", aerr)
		}
	}

	// Seed the loop with the current document so an offer or status already
	// present before the subscription is not missed.
	if current, gerr := e.cfg.Sessions.Get(ctx, e.callID); gerr == nil {
		e.primed = current
	}

	e.ringStarted = e.clock()
	metrics.ActiveEngines.Inc()
	e.started.Store(true)

	go e.run(runCtx, sessionCh, candidateCh)
	return nil
}

// adoptSession folds a pre-existing session into the initial state.
func (e *Engine) adoptSession(role domain.Role, session *domain.CallSession) {
	e.st.role = role
	e.st.callID = session.ID
	e.st.callType = session.Type
	e.st.status = session.Status
	e.st.messages = session.Messages
	e.st.offerSent = session.Offer != nil
	if session.ConversationID != "" {
		e.st.conversationID = session.ConversationID
	}
	if session.Status == domain.CallStatusAccepted {
		e.st.phase = StateConnected
		e.st.connectedAt = e.clock()
		e.everConnected = true
	}
}

// resolveEntry decides which side of which call this engine is on, following
// the pointer documents: a matching pointer under our own id is an incoming
// call, a matching pointer under the peer's id is our own earlier dial, and
// a non-matching pointer on either side means busy.
func (e *Engine) resolveEntry(ctx context.Context) (domain.Role, *domain.CallSession, error) {
	self, peer := e.cfg.SelfID, e.st.peer

	ptr, err := e.cfg.Registry.Get(ctx, self)
	switch {
	case err == nil:
		if !ptr.Matches(self, peer) {
			return "", nil, apperrors.UserBusyError(self)
		}
		session, serr := e.liveSession(ctx, ptr.CallID)
		if serr != nil {
			return "", nil, serr
		}
		if session != nil && ptr.Initiator == peer {
			return domain.RoleCallee, session, nil
		}
		// Stale pointer under our own id; clear it and dial fresh.
		if derr := e.cfg.Registry.Delete(ctx, self); derr != nil {
			logger.Warn("failed to clear stale pointer", zap.String("user_id", self), zap.Error(derr))
		}
	case !errors.Is(err, signalstore.ErrNotFound):
		return "", nil, apperrors.StoreError("failed to read active-call registry", err)
	}

	peerPtr, err := e.cfg.Registry.Get(ctx, peer)
	switch {
	case err == nil:
		if !peerPtr.Matches(self, peer) || peerPtr.Initiator != self {
			return "", nil, apperrors.UserBusyError(peer)
		}
		session, serr := e.liveSession(ctx, peerPtr.CallID)
		if serr != nil {
			return "", nil, serr
		}
		if session != nil {
			// Our own earlier dial is still live; re-attach to it.
			return domain.RoleCaller, session, nil
		}
		if derr := e.cfg.Registry.Delete(ctx, peer); derr != nil {
			logger.Warn("failed to clear stale pointer", zap.String("user_id", peer), zap.Error(derr))
		}
	case !errors.Is(err, signalstore.ErrNotFound):
		return "", nil, apperrors.StoreError("failed to read active-call registry", err)
	}

	return domain.RoleCaller, nil, nil
}

// liveSession loads a session, filtering out missing and finished ones.
func (e *Engine) liveSession(ctx context.Context, callID string) (*domain.CallSession, error) {
	session, err := e.cfg.Sessions.Get(ctx, callID)
	if errors.Is(err, signalstore.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.StoreError("failed to read call session", err)
	}
	if session.Status.Terminal() {
		return nil, nil
	}
	return session, nil
}

// announceCall creates the session document and the callee's pointer, then
// checks for a simultaneous dial from the peer.
func (e *Engine) announceCall(ctx context.Context, conversationID string) (*domain.CallSession, error) {
	now := e.clock()
	session := &domain.CallSession{
		Participants:   [2]string{e.cfg.SelfID, e.st.peer},
		Type:           e.st.callType,
		Status:         domain.CallStatusRinging,
		Initiator:      e.cfg.SelfID,
		CreatedAt:      now,
		ConversationID: conversationID,
	}
	if err := e.cfg.Sessions.Create(ctx, session); err != nil {
		return nil, apperrors.SessionCreateError(err)
	}
	e.st.callID = session.ID

	ptr := &domain.ActiveCallPointer{
		UserID:       e.st.peer,
		CallID:       session.ID,
		Participants: session.Participants,
		Initiator:    e.cfg.SelfID,
		Type:         e.st.callType,
		CreatedAt:    now,
	}
	if err := e.cfg.Registry.Put(ctx, ptr); err != nil {
		if merr := e.cfg.Sessions.MarkEnded(ctx, session.ID, domain.CallStatusEnded, e.clock(), 0); merr != nil {
			logger.Warn("failed to retract session after pointer failure",
				zap.String("call_id", session.ID), zap.Error(merr))
		}
		return nil, apperrors.StoreError("failed to announce call", err)
	}
	metrics.CallInitiatedTotal.WithLabelValues(string(e.st.callType)).Inc()

	if theirs := e.checkSimultaneousDial(ctx, ptr); theirs != nil {
		e.adoptSession(domain.RoleCallee, theirs)
		return theirs, nil
	}

	if e.cfg.Push != nil {
		pctx, pcancel := context.WithTimeout(context.WithoutCancel(ctx), constants.StoreTimeout)
		go func() {
			defer pcancel()
			if perr := e.cfg.Push.NotifyIncomingCall(pctx, ptr); perr != nil {
				logger.Warn("failed to push incoming-call notification",
					zap.String("call_id", ptr.CallID), zap.Error(perr))
			}
		}()
	}
	return session, nil
}

// checkSimultaneousDial looks for a pointer the peer wrote under our id in
// the same instant we dialed them. When both sides dial at once, the
// lexicographically smaller user id keeps the initiator role; the other side
// retracts its announcement and joins as callee. Returns the session to
// join, or nil to keep our own dial.
func (e *Engine) checkSimultaneousDial(ctx context.Context, own *domain.ActiveCallPointer) *domain.CallSession {
	if e.st.peer >= e.cfg.SelfID {
		return nil
	}

	incoming, err := e.cfg.Registry.Get(ctx, e.cfg.SelfID)
	if err != nil {
		return nil
	}
	if !incoming.Matches(e.cfg.SelfID, e.st.peer) || incoming.Initiator != e.st.peer {
		return nil
	}
	theirs, err := e.liveSession(ctx, incoming.CallID)
	if err != nil || theirs == nil {
		return nil
	}

	logger.Info("simultaneous dial detected, yielding initiator role",
		zap.String("call_id", theirs.ID), zap.String("peer", e.st.peer))
	if derr := e.cfg.Registry.Delete(ctx, own.UserID); derr != nil {
		logger.Warn("failed to retract pointer after yielding", zap.Error(derr))
	}
	if merr := e.cfg.Sessions.MarkEnded(ctx, own.CallID, domain.CallStatusEnded, e.clock(), 0); merr != nil {
		logger.Warn("failed to retract session after yielding", zap.Error(merr))
	}
	return theirs
}

// abortSetup unwinds a partially established call.
func (e *Engine) abortSetup(ctx context.Context) {
	e.cancelSubs()
	calleeID := e.st.peer
	if e.st.role == domain.RoleCallee {
		calleeID = e.cfg.SelfID
	}
	if err := e.cfg.Registry.Delete(ctx, calleeID); err != nil {
		logger.Warn("failed to delete pointer during setup abort", zap.Error(err))
	}
	if err := e.cfg.Sessions.MarkEnded(ctx, e.callID, domain.CallStatusEnded, e.clock(), 0); err != nil {
		logger.Warn("failed to end session during setup abort", zap.Error(err))
	}
	_ = e.media.Close()
	e.cancel()
}

// run is the event loop. It owns all mutable call state; every input is
// serialized through here.
func (e *Engine) run(ctx context.Context, sessions <-chan *domain.CallSession, candidates <-chan []domain.IceCandidate) {
	defer close(e.done)
	defer metrics.ActiveEngines.Dec()
	defer e.cancel()
	defer e.cancelSubs()

	ringTimer := time.NewTimer(e.ringTimeout)
	if e.st.role != domain.RoleCaller || e.st.phase != StateRinging {
		ringTimer.Stop()
	}
	defer ringTimer.Stop()

	ticker := time.NewTicker(e.tickInterval)
	defer ticker.Stop()

	e.syncRing()
	e.publish()

	if e.primed != nil {
		if e.handleSession(e.primed) {
			return
		}
	}

	for {
		select {
		case <-ctx.Done():
			e.finishLocal(domain.CallStatusEnded)
			return

		case session, ok := <-sessions:
			if !ok {
				sessions = nil
				continue
			}
			if e.handleSession(session) {
				return
			}

		case batch, ok := <-candidates:
			if !ok {
				candidates = nil
				continue
			}
			e.handleCandidates(batch)

		case <-ringTimer.C:
			if e.st.ringing() {
				logger.Info("call unanswered past ring timeout", zap.String("call_id", e.callID))
				e.finishLocal(domain.CallStatusEnded)
				return
			}

		case <-ticker.C:
			e.handleTick()

		case cmd := <-e.events:
			if e.handleCommand(cmd) {
				return
			}
		}
	}
}

// handleSession folds one session snapshot into the state and performs the
// resulting effects. Returns true when the call reached a terminal state.
func (e *Engine) handleSession(session *domain.CallSession) bool {
	acts := reduceSession(e.st, session)

	if acts.Connected {
		e.everConnected = true
		e.st.connectedAt = e.clock()
		metrics.CallConnectedTotal.WithLabelValues(string(e.st.callType)).Inc()
		metrics.CallRingDuration.Observe(e.clock().Sub(e.ringStarted).Seconds())
	}

	if acts.ApplyOffer != nil {
		answer, err := e.media.AcceptOffer(e.ctx, acts.ApplyOffer)
		if err != nil {
			logger.Error("failed to apply remote offer",
				zap.String("call_id", e.callID), zap.Error(err))
		} else if !e.st.answerSent {
			e.st.answerSent = true
			if err := e.cfg.Sessions.SetAnswer(e.ctx, e.callID, answer); err != nil {
				logger.Error("failed to publish answer",
					zap.String("call_id", e.callID), zap.Error(err))
			}
		}
	}

	if acts.ApplyAnswer != nil {
		if err := e.media.AcceptAnswer(e.ctx, acts.ApplyAnswer); err != nil {
			logger.Error("failed to apply remote answer",
				zap.String("call_id", e.callID), zap.Error(err))
		}
	}

	if acts.Teardown {
		e.finishRemote(acts.Terminal)
		return true
	}

	e.syncRing()
	e.publish()
	return false
}

// handleCandidates applies one relay batch, skipping self-echo and already
// applied candidates. Apply failures are logged and skipped; candidate
// errors never abort a call.
func (e *Engine) handleCandidates(batch []domain.IceCandidate) {
	for _, cand := range freshCandidates(e.st, batch) {
		if err := e.media.AddRemoteCandidate(cand.Payload); err != nil {
			logger.Warn("failed to apply remote candidate",
				zap.String("call_id", e.callID), zap.String("candidate_id", cand.ID), zap.Error(err))
			metrics.CandidateApplyFailedTotal.Inc()
		}
	}
}

func (e *Engine) handleTick() {
	if e.st.phase != StateConnected {
		return
	}
	e.st.elapsed = int(e.clock().Sub(e.st.connectedAt) / time.Second)
	e.publish()
}

func (e *Engine) handleCommand(cmd command) bool {
	switch cmd.kind {
	case cmdEnd:
		status := domain.CallStatusEnded
		if e.st.role == domain.RoleCallee && !e.everConnected && e.st.status == domain.CallStatusRinging {
			status = domain.CallStatusRejected
		}
		e.finishLocal(status)
		return true

	case cmdToggleMute:
		e.st.muted = !e.st.muted
		e.media.SetMuted(e.st.muted)
		e.publish()

	case cmdToggleCamera:
		if e.st.callType != domain.CallTypeVideo {
			return false
		}
		e.st.cameraOff = !e.st.cameraOff
		e.media.SetCameraOff(e.st.cameraOff)
		e.publish()
	}
	return false
}

// finishLocal ends the call from this side: writes the terminal status with
// the locally measured duration, clears the pointer, posts the summary, and
// archives. All writes are best-effort against a detached teardown context.
func (e *Engine) finishLocal(status domain.CallStatus) {
	if e.st.phase == StateEnded || e.st.phase == StateRejected {
		return
	}

	duration := 0
	if e.st.phase == StateConnected {
		duration = int(e.clock().Sub(e.st.connectedAt) / time.Second)
	}
	e.st.elapsed = duration
	e.st.status = status
	if status == domain.CallStatusRejected {
		e.st.phase = StateRejected
	} else {
		e.st.phase = StateEnded
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(e.ctx), constants.TeardownTimeout)
	defer cancel()

	endedAt := e.clock()
	if err := e.cfg.Sessions.MarkEnded(ctx, e.callID, status, endedAt, duration); err != nil {
		logger.Warn("failed to write terminal status",
			zap.String("call_id", e.callID), zap.Error(err))
		metrics.TeardownWriteFailedTotal.WithLabelValues("status").Inc()
	}
	e.deletePointer(ctx)

	if e.st.conversationID != "" && e.cfg.Conversations != nil {
		summary := domain.CallSummary{
			CallID:       e.callID,
			Type:         e.st.callType,
			Status:       status,
			Initiator:    e.initiator(),
			Duration:     duration,
			Participants: e.participants(),
		}
		if err := e.cfg.Conversations.AppendCallSummary(ctx, e.st.conversationID, summary); err != nil {
			logger.Warn("failed to post call summary",
				zap.String("call_id", e.callID), zap.Error(err))
			metrics.TeardownWriteFailedTotal.WithLabelValues("summary").Inc()
		}
	}

	if e.cfg.History != nil {
		e.cfg.History.ArchiveCall(ctx, e.finalSession(status, endedAt, duration))
	}

	e.afterTerminal(status, duration)
}

// finishRemote reacts to a terminal status written by the other side: no
// status write of our own, just the pointer cleanup both sides perform.
func (e *Engine) finishRemote(status domain.CallStatus) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(e.ctx), constants.TeardownTimeout)
	defer cancel()

	e.deletePointer(ctx)
	e.afterTerminal(status, e.st.elapsed)
}

// deletePointer removes the pointer keyed by the callee's id. Both sides do
// this on every exit path; deletion is idempotent, and a leaked pointer
// would leave the callee permanently busy.
func (e *Engine) deletePointer(ctx context.Context) {
	calleeID := e.st.peer
	if e.st.role == domain.RoleCallee {
		calleeID = e.cfg.SelfID
	}
	if err := e.cfg.Registry.Delete(ctx, calleeID); err != nil {
		logger.Warn("failed to delete active-call pointer",
			zap.String("user_id", calleeID), zap.Error(err))
		metrics.TeardownWriteFailedTotal.WithLabelValues("pointer").Inc()
	}
}

func (e *Engine) afterTerminal(status domain.CallStatus, duration int) {
	e.ring.SetRinging(false)
	if !e.everConnected {
		metrics.CallRingDuration.Observe(e.clock().Sub(e.ringStarted).Seconds())
	}
	if err := e.media.Close(); err != nil {
		logger.Warn("failed to release media", zap.String("call_id", e.callID), zap.Error(err))
	}
	metrics.CallEndedTotal.WithLabelValues(string(e.st.callType), string(status)).Inc()
	if duration > 0 {
		metrics.CallDuration.WithLabelValues(string(e.st.callType)).Observe(float64(duration))
	}
	e.publish()
}

// finalSession reconstructs the terminal session record for archival.
func (e *Engine) finalSession(status domain.CallStatus, endedAt time.Time, duration int) *domain.CallSession {
	var acceptedAt *time.Time
	if e.everConnected {
		at := e.st.connectedAt
		acceptedAt = &at
	}
	return &domain.CallSession{
		ID:             e.callID,
		Participants:   e.participants(),
		Type:           e.st.callType,
		Status:         status,
		Initiator:      e.initiator(),
		CreatedAt:      e.ringStarted,
		AcceptedAt:     acceptedAt,
		EndedAt:        &endedAt,
		Duration:       duration,
		Messages:       e.st.messages,
		ConversationID: e.st.conversationID,
	}
}

func (e *Engine) participants() [2]string {
	return [2]string{e.cfg.SelfID, e.st.peer}
}

func (e *Engine) initiator() string {
	if e.st.role == domain.RoleCaller {
		return e.cfg.SelfID
	}
	return e.st.peer
}

func (e *Engine) syncRing() {
	e.ring.SetRinging(e.st.ringing())
}

func (e *Engine) publish() {
	snap := e.st.snapshot()
	e.mu.Lock()
	e.last = snap
	e.mu.Unlock()
	if e.cfg.OnUpdate != nil {
		e.cfg.OnUpdate(snap)
	}
}

// Snapshot returns the last published state.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.last
}

// End hangs up (or cancels, while still ringing). A callee that never
// connected writes the rejected status instead.
func (e *Engine) End() {
	e.send(command{kind: cmdEnd})
}

// ToggleMute flips the local microphone without releasing the device. The
// flag is local-only and never persisted.
func (e *Engine) ToggleMute() {
	e.send(command{kind: cmdToggleMute})
}

// ToggleCamera flips the local camera on video calls.
func (e *Engine) ToggleCamera() {
	e.send(command{kind: cmdToggleCamera})
}

func (e *Engine) send(cmd command) {
	select {
	case e.events <- cmd:
	case <-e.done:
	}
}

// SendChat appends one message to the call's embedded transcript. The local
// transcript updates when the write echoes back through the subscription.
func (e *Engine) SendChat(ctx context.Context, text string) error {
	text = sanitize.SanitizeMessage(text)
	if text == "" {
		return apperrors.InvalidInputError("message is empty")
	}
	if len(text) > constants.MaxChatMessageLength {
		return apperrors.InvalidInputError("message exceeds maximum length")
	}

	msg := domain.ChatMessage{Sender: e.cfg.SelfID, Content: text, SentAt: e.clock()}
	if err := e.cfg.Sessions.AppendMessage(ctx, e.callID, msg); err != nil {
		return apperrors.StoreError("failed to send message", err)
	}
	return nil
}

// Done is closed when the event loop has exited.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// Close tears the call down from the local side and blocks until the event
// loop has exited. Safe to call multiple times; a no-op if Start never
// succeeded.
func (e *Engine) Close() {
	if !e.started.Load() {
		return
	}
	e.closeOnce.Do(func() { e.cancel() })
	<-e.done
}

// Decline rejects an incoming call from the notification surface, before
// any media is acquired or any call view opens: it writes the rejected
// status and clears the callee's own pointer.
func Decline(ctx context.Context, sessions SessionStore, registry PointerStore, ptr *domain.ActiveCallPointer) error {
	if err := sessions.MarkEnded(ctx, ptr.CallID, domain.CallStatusRejected, time.Now(), 0); err != nil {
		return apperrors.StoreError("failed to reject call", err)
	}
	if err := registry.Delete(ctx, ptr.UserID); err != nil {
		return apperrors.StoreError("failed to clear active-call pointer", err)
	}
	metrics.CallEndedTotal.WithLabelValues(string(ptr.Type), string(domain.CallStatusRejected)).Inc()
	return nil
}
