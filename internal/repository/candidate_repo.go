package repository

import (
	"context"
	"fmt"

	"telecare-calling/internal/domain"
	"telecare-calling/internal/signalstore"
)

// CandidateRepository is the append-only per-call ICE candidate relay,
// modeled as a sub-collection under the session document.
type CandidateRepository struct {
	store signalstore.Store
}

// NewCandidateRepository creates a new CandidateRepository
func NewCandidateRepository(store signalstore.Store) *CandidateRepository {
	return &CandidateRepository{store: store}
}

func candidateCollection(callID string) string {
	return CollectionCalls + "/" + callID + "/candidates"
}

// Add appends one locally discovered candidate, tagged with the sender id.
func (r *CandidateRepository) Add(ctx context.Context, callID string, cand domain.IceCandidate) error {
	doc := map[string]any{
		"from":    cand.From,
		"payload": cand.Payload,
	}
	if _, err := r.store.Create(ctx, candidateCollection(callID), doc); err != nil {
		return fmt.Errorf("failed to relay candidate for call %s: %w", callID, err)
	}
	return nil
}

// Watch subscribes to the candidate channel for a call. Every notification
// carries the full candidate set observed so far; consumers deduplicate by
// candidate id since consumed-once semantics are not enforced by the store.
func (r *CandidateRepository) Watch(ctx context.Context, callID string) (<-chan []domain.IceCandidate, signalstore.CancelFunc, error) {
	snaps, cancel, err := r.store.WatchCollection(ctx, candidateCollection(callID))
	if err != nil {
		return nil, nil, err
	}

	out := make(chan []domain.IceCandidate, cap(snaps))
	go func() {
		defer close(out)
		for batch := range snaps {
			cands := make([]domain.IceCandidate, 0, len(batch))
			for _, snap := range batch {
				cands = append(cands, domain.IceCandidate{
					ID:      snap.ID,
					From:    asString(snap.Data["from"]),
					Payload: asString(snap.Data["payload"]),
				})
			}
			out <- cands
		}
	}()
	return out, cancel, nil
}
