package call

import (
	"context"

	"go.uber.org/zap"

	"telecare-calling/internal/domain"
	apperrors "telecare-calling/pkg/errors"
	"telecare-calling/pkg/logger"
)

// IncomingWatcher observes the local user's registry slot while no call view
// is open. A pointer appearing there is an incoming call; its deletion means
// the caller gave up (or the call was handled elsewhere) and any banner
// should be dismissed.
type IncomingWatcher struct {
	registry PointerStore
	selfID   string

	// OnIncoming fires for every pointer written under the user's id.
	OnIncoming func(ptr *domain.ActiveCallPointer)

	// OnCleared fires when the pointer is deleted.
	OnCleared func()
}

// NewIncomingWatcher creates a new IncomingWatcher
func NewIncomingWatcher(registry PointerStore, selfID string) *IncomingWatcher {
	return &IncomingWatcher{registry: registry, selfID: selfID}
}

// Run blocks, forwarding registry changes to the callbacks until ctx is
// cancelled or the subscription closes.
func (w *IncomingWatcher) Run(ctx context.Context) error {
	ch, cancel, err := w.registry.Watch(ctx, w.selfID)
	if err != nil {
		return apperrors.StoreError("failed to watch active-call registry", err)
	}
	defer cancel()

	logger.Debug("incoming-call watcher started", zap.String("user_id", w.selfID))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ptr, ok := <-ch:
			if !ok {
				return nil
			}
			if ptr == nil {
				if w.OnCleared != nil {
					w.OnCleared()
				}
				continue
			}
			if w.OnIncoming != nil {
				w.OnIncoming(ptr)
			}
		}
	}
}
