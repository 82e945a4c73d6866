package repository

import (
	"context"
	"fmt"
	"time"

	"telecare-calling/internal/domain"
	"telecare-calling/internal/signalstore"
)

// ConversationNotifier posts the terminal call summary into the
// originating chat thread. This is the one write the calling subsystem
// makes into the persistent messaging feature; it is fire-and-forget from
// the engine's point of view.
type ConversationNotifier struct {
	store signalstore.Store
}

// NewConversationNotifier creates a new ConversationNotifier
func NewConversationNotifier(store signalstore.Store) *ConversationNotifier {
	return &ConversationNotifier{store: store}
}

// AppendCallSummary appends one synthetic system message describing the
// finished call.
func (n *ConversationNotifier) AppendCallSummary(ctx context.Context, conversationID string, summary domain.CallSummary) error {
	doc := map[string]any{
		"messageType":  "call_summary",
		"callId":       summary.CallID,
		"callType":     string(summary.Type),
		"status":       string(summary.Status),
		"initiator":    summary.Initiator,
		"duration":     summary.Duration,
		"participants": pairToDoc(summary.Participants),
		"createdAt":    time.Now(),
	}

	collection := "conversations/" + conversationID + "/messages"
	if _, err := n.store.Create(ctx, collection, doc); err != nil {
		return fmt.Errorf("failed to post call summary to conversation %s: %w", conversationID, err)
	}
	return nil
}
