// Package repository provides typed access to the signaling documents:
// call sessions, active-call pointers, the per-call candidate relay, and
// the single outbound conversation write.
package repository

import (
	"context"
	"fmt"
	"time"

	"telecare-calling/internal/domain"
	"telecare-calling/internal/signalstore"
)

// CollectionCalls is the session collection name in the shared store.
const CollectionCalls = "calls"

// SessionRepository handles CallSession documents.
type SessionRepository struct {
	store signalstore.Store
}

// NewSessionRepository creates a new SessionRepository
func NewSessionRepository(store signalstore.Store) *SessionRepository {
	return &SessionRepository{store: store}
}

// Create writes a new session document and fills in the assigned id.
func (r *SessionRepository) Create(ctx context.Context, session *domain.CallSession) error {
	doc := map[string]any{
		"participants":   pairToDoc(session.Participants),
		"type":           string(session.Type),
		"status":         string(session.Status),
		"initiator":      session.Initiator,
		"createdAt":      session.CreatedAt,
		"duration":       0,
		"messages":       []any{},
		"conversationId": session.ConversationID,
	}

	id, err := r.store.Create(ctx, CollectionCalls, doc)
	if err != nil {
		return fmt.Errorf("failed to create call session: %w", err)
	}
	session.ID = id
	return nil
}

// Get reads one session.
func (r *SessionRepository) Get(ctx context.Context, callID string) (*domain.CallSession, error) {
	snap, err := r.store.Get(ctx, CollectionCalls, callID)
	if err != nil {
		return nil, err
	}
	return decodeSession(snap), nil
}

// Watch subscribes to session snapshots. A nil session on the channel means
// the document was deleted.
func (r *SessionRepository) Watch(ctx context.Context, callID string) (<-chan *domain.CallSession, signalstore.CancelFunc, error) {
	snaps, cancel, err := r.store.WatchDocument(ctx, CollectionCalls, callID)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan *domain.CallSession, cap(snaps))
	go func() {
		defer close(out)
		for snap := range snaps {
			if snap.Data == nil {
				out <- nil
				continue
			}
			out <- decodeSession(snap)
		}
	}()
	return out, cancel, nil
}

// UpdateStatus writes a bare status transition.
func (r *SessionRepository) UpdateStatus(ctx context.Context, callID string, status domain.CallStatus) error {
	return r.store.Update(ctx, CollectionCalls, callID, []signalstore.Update{
		{Path: "status", Value: string(status)},
	})
}

// MarkAccepted transitions the session to accepted and stamps acceptedAt.
func (r *SessionRepository) MarkAccepted(ctx context.Context, callID string, at time.Time) error {
	return r.store.Update(ctx, CollectionCalls, callID, []signalstore.Update{
		{Path: "status", Value: string(domain.CallStatusAccepted)},
		{Path: "acceptedAt", Value: at},
	})
}

// MarkEnded writes the terminal status, endedAt, and the locally measured
// duration in one update.
func (r *SessionRepository) MarkEnded(ctx context.Context, callID string, status domain.CallStatus, at time.Time, duration int) error {
	return r.store.Update(ctx, CollectionCalls, callID, []signalstore.Update{
		{Path: "status", Value: string(status)},
		{Path: "endedAt", Value: at},
		{Path: "duration", Value: duration},
	})
}

// SetOffer stores the caller's half of the handshake.
func (r *SessionRepository) SetOffer(ctx context.Context, callID string, desc *domain.SessionDescription) error {
	return r.store.Update(ctx, CollectionCalls, callID, []signalstore.Update{
		{Path: "offer", Value: descriptionToDoc(desc)},
	})
}

// SetAnswer stores the callee's half of the handshake.
func (r *SessionRepository) SetAnswer(ctx context.Context, callID string, desc *domain.SessionDescription) error {
	return r.store.Update(ctx, CollectionCalls, callID, []signalstore.Update{
		{Path: "answer", Value: descriptionToDoc(desc)},
	})
}

// AppendMessage appends one chat message to the embedded transcript. The
// append goes through the store's array-union primitive, so two clients
// sending in the same instant both land.
func (r *SessionRepository) AppendMessage(ctx context.Context, callID string, msg domain.ChatMessage) error {
	return r.store.Append(ctx, CollectionCalls, callID, "messages", messageToDoc(msg))
}

// ForParticipant locates sessions a user belongs to via membership query.
func (r *SessionRepository) ForParticipant(ctx context.Context, userID string) ([]*domain.CallSession, error) {
	snaps, err := r.store.QueryArrayContains(ctx, CollectionCalls, "participants", userID)
	if err != nil {
		return nil, err
	}
	out := make([]*domain.CallSession, 0, len(snaps))
	for _, snap := range snaps {
		out = append(out, decodeSession(snap))
	}
	return out, nil
}

func decodeSession(snap *signalstore.Snapshot) *domain.CallSession {
	d := snap.Data
	return &domain.CallSession{
		ID:             snap.ID,
		Participants:   asPair(d["participants"]),
		Type:           domain.CallType(asString(d["type"])),
		Status:         domain.CallStatus(asString(d["status"])),
		Initiator:      asString(d["initiator"]),
		Offer:          asDescription(d["offer"]),
		Answer:         asDescription(d["answer"]),
		CreatedAt:      asTime(d["createdAt"]),
		AcceptedAt:     asTimePtr(d["acceptedAt"]),
		EndedAt:        asTimePtr(d["endedAt"]),
		Duration:       asInt(d["duration"]),
		Messages:       asMessages(d["messages"]),
		ConversationID: asString(d["conversationId"]),
	}
}
