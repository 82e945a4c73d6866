package repository

import (
	"context"
	"fmt"

	"telecare-calling/internal/domain"
	"telecare-calling/internal/signalstore"
)

// CollectionActiveCalls holds one ActiveCallPointer per user id.
const CollectionActiveCalls = "activeCalls"

// RegistryRepository is the Active-Call Registry: pointer documents keyed
// by the receiving user's id, used for incoming-call detection.
type RegistryRepository struct {
	store signalstore.Store
}

// NewRegistryRepository creates a new RegistryRepository
func NewRegistryRepository(store signalstore.Store) *RegistryRepository {
	return &RegistryRepository{store: store}
}

// Put writes the pointer under ptr.UserID, replacing any existing one.
func (r *RegistryRepository) Put(ctx context.Context, ptr *domain.ActiveCallPointer) error {
	doc := map[string]any{
		"callId":       ptr.CallID,
		"participants": pairToDoc(ptr.Participants),
		"initiator":    ptr.Initiator,
		"type":         string(ptr.Type),
		"createdAt":    ptr.CreatedAt,
	}
	if err := r.store.Set(ctx, CollectionActiveCalls, ptr.UserID, doc); err != nil {
		return fmt.Errorf("failed to write active-call pointer for %s: %w", ptr.UserID, err)
	}
	return nil
}

// Get reads the pointer for a user. Returns signalstore.ErrNotFound when
// the user has no outstanding call.
func (r *RegistryRepository) Get(ctx context.Context, userID string) (*domain.ActiveCallPointer, error) {
	snap, err := r.store.Get(ctx, CollectionActiveCalls, userID)
	if err != nil {
		return nil, err
	}
	return decodePointer(snap), nil
}

// Delete removes the pointer for a user. Deleting a missing pointer is not
// an error; every exit path calls this unconditionally.
func (r *RegistryRepository) Delete(ctx context.Context, userID string) error {
	if err := r.store.Delete(ctx, CollectionActiveCalls, userID); err != nil {
		return fmt.Errorf("failed to delete active-call pointer for %s: %w", userID, err)
	}
	return nil
}

// Watch subscribes to pointer changes for a user, for incoming-call
// detection while idle. A nil pointer on the channel means deletion.
func (r *RegistryRepository) Watch(ctx context.Context, userID string) (<-chan *domain.ActiveCallPointer, signalstore.CancelFunc, error) {
	snaps, cancel, err := r.store.WatchDocument(ctx, CollectionActiveCalls, userID)
	if err != nil {
		return nil, nil, err
	}

	out := make(chan *domain.ActiveCallPointer, cap(snaps))
	go func() {
		defer close(out)
		for snap := range snaps {
			if snap.Data == nil {
				out <- nil
				continue
			}
			out <- decodePointer(snap)
		}
	}()
	return out, cancel, nil
}

func decodePointer(snap *signalstore.Snapshot) *domain.ActiveCallPointer {
	d := snap.Data
	return &domain.ActiveCallPointer{
		UserID:       snap.ID,
		CallID:       asString(d["callId"]),
		Participants: asPair(d["participants"]),
		Initiator:    asString(d["initiator"]),
		Type:         domain.CallType(asString(d["type"])),
		CreatedAt:    asTime(d["createdAt"]),
	}
}
