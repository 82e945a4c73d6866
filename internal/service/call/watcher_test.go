package call

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telecare-calling/internal/domain"
)

func TestIncomingWatcherSignalsPointerLifecycle(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	b := newBed()

	incoming := make(chan *domain.ActiveCallPointer, 4)
	cleared := make(chan struct{}, 4)

	w := NewIncomingWatcher(b.registry, "bob")
	w.OnIncoming = func(ptr *domain.ActiveCallPointer) { incoming <- ptr }
	w.OnCleared = func() { cleared <- struct{}{} }

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.NoError(t, b.registry.Put(ctx, &domain.ActiveCallPointer{
		UserID:       "bob",
		CallID:       "call-7",
		Participants: [2]string{"alice", "bob"},
		Initiator:    "alice",
		Type:         domain.CallTypeVideo,
		CreatedAt:    time.Now(),
	}))

	select {
	case ptr := <-incoming:
		assert.Equal(t, "call-7", ptr.CallID)
		assert.Equal(t, "alice", ptr.Initiator)
	case <-time.After(2 * time.Second):
		t.Fatal("incoming pointer was not observed")
	}

	require.NoError(t, b.registry.Delete(ctx, "bob"))
	select {
	case <-cleared:
	case <-time.After(2 * time.Second):
		t.Fatal("pointer deletion was not observed")
	}

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not stop on cancellation")
	}
}
