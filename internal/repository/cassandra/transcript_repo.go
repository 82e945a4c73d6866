// Package cassandra archives in-call chat transcripts. The embedded
// transcript lives inside the session document while the call is active;
// this copy keeps it queryable after the session document goes cold.
package cassandra

import (
	"fmt"

	"github.com/gocql/gocql"

	"telecare-calling/internal/domain"
)

// TranscriptRepository handles transcript storage in Cassandra.
type TranscriptRepository struct {
	session *gocql.Session
}

// NewTranscriptRepository creates a new TranscriptRepository
func NewTranscriptRepository(session *gocql.Session) *TranscriptRepository {
	return &TranscriptRepository{session: session}
}

// Save writes the full transcript of one finished call. Rows are keyed by
// call id and sequence, so re-archiving overwrites identical rows instead of
// duplicating them.
func (r *TranscriptRepository) Save(callID string, messages []domain.ChatMessage) error {
	query := `
		INSERT INTO call_transcripts (
			call_id, seq, sender, content, sent_at
		) VALUES (?, ?, ?, ?, ?)
	`

	for seq, msg := range messages {
		if err := r.session.Query(query,
			callID,
			seq,
			msg.Sender,
			msg.Content,
			msg.SentAt,
		).Exec(); err != nil {
			return fmt.Errorf("failed to save transcript row %d: %w", seq, err)
		}
	}
	return nil
}

// GetByCall retrieves the archived transcript in send order.
func (r *TranscriptRepository) GetByCall(callID string) ([]domain.ChatMessage, error) {
	query := `
		SELECT sender, content, sent_at
		FROM call_transcripts
		WHERE call_id = ?
		ORDER BY seq ASC
	`

	iter := r.session.Query(query, callID).Iter()
	defer iter.Close()

	var messages []domain.ChatMessage
	for {
		var msg domain.ChatMessage
		if !iter.Scan(&msg.Sender, &msg.Content, &msg.SentAt) {
			break
		}
		messages = append(messages, msg)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}
	return messages, nil
}
