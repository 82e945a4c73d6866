// Package cockroach archives finished calls into relational storage for the
// call-history screen. The shared document store stays authoritative during
// the call; this copy exists for listing and reporting after the fact.
package cockroach

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"telecare-calling/internal/domain"
	"telecare-calling/internal/signalstore"
)

// HistoryRepository handles archived call records.
type HistoryRepository struct {
	pool *pgxpool.Pool
}

// NewHistoryRepository creates a new HistoryRepository
func NewHistoryRepository(pool *pgxpool.Pool) *HistoryRepository {
	return &HistoryRepository{pool: pool}
}

// Insert archives one terminal call. Re-archiving the same call id is a
// no-op so both participants may attempt it.
func (r *HistoryRepository) Insert(ctx context.Context, session *domain.CallSession) error {
	query := `
		INSERT INTO call_history (
			call_id, participant_a, participant_b, initiator, call_type,
			status, conversation_id, created_at, accepted_at, ended_at, duration
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (call_id) DO NOTHING
	`

	_, err := r.pool.Exec(ctx, query,
		session.ID,
		session.Participants[0],
		session.Participants[1],
		session.Initiator,
		string(session.Type),
		string(session.Status),
		session.ConversationID,
		session.CreatedAt,
		session.AcceptedAt,
		session.EndedAt,
		session.Duration,
	)
	if err != nil {
		return fmt.Errorf("failed to archive call: %w", err)
	}
	return nil
}

// GetByID retrieves one archived call.
func (r *HistoryRepository) GetByID(ctx context.Context, callID string) (*domain.CallSession, error) {
	query := `
		SELECT call_id, participant_a, participant_b, initiator, call_type,
		       status, conversation_id, created_at, accepted_at, ended_at, duration
		FROM call_history
		WHERE call_id = $1
	`

	session := &domain.CallSession{}
	var callType, status string
	err := r.pool.QueryRow(ctx, query, callID).Scan(
		&session.ID,
		&session.Participants[0],
		&session.Participants[1],
		&session.Initiator,
		&callType,
		&status,
		&session.ConversationID,
		&session.CreatedAt,
		&session.AcceptedAt,
		&session.EndedAt,
		&session.Duration,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, signalstore.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get archived call: %w", err)
	}
	session.Type = domain.CallType(callType)
	session.Status = domain.CallStatus(status)
	return session, nil
}

// ListForUser retrieves a user's call history, newest first.
func (r *HistoryRepository) ListForUser(ctx context.Context, userID string, limit, offset int) ([]*domain.CallSession, error) {
	query := `
		SELECT call_id, participant_a, participant_b, initiator, call_type,
		       status, conversation_id, created_at, accepted_at, ended_at, duration
		FROM call_history
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list call history: %w", err)
	}
	defer rows.Close()

	var sessions []*domain.CallSession
	for rows.Next() {
		session := &domain.CallSession{}
		var callType, status string
		if err := rows.Scan(
			&session.ID,
			&session.Participants[0],
			&session.Participants[1],
			&session.Initiator,
			&callType,
			&status,
			&session.ConversationID,
			&session.CreatedAt,
			&session.AcceptedAt,
			&session.EndedAt,
			&session.Duration,
		); err != nil {
			return nil, fmt.Errorf("failed to scan archived call: %w", err)
		}
		session.Type = domain.CallType(callType)
		session.Status = domain.CallStatus(status)
		sessions = append(sessions, session)
	}
	return sessions, nil
}
