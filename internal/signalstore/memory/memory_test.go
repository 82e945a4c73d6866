package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"telecare-calling/internal/signalstore"
)

func TestCreateAndGet(t *testing.T) {
	store := New()
	ctx := context.Background()

	id, err := store.Create(ctx, "calls", map[string]any{"status": "ringing"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	snap, err := store.Get(ctx, "calls", id)
	require.NoError(t, err)
	assert.Equal(t, "ringing", snap.Data["status"])
}

func TestGetNotFound(t *testing.T) {
	store := New()

	_, err := store.Get(context.Background(), "calls", "missing")
	assert.ErrorIs(t, err, signalstore.ErrNotFound)
}

func TestUpdateNotifiesInWriteOrder(t *testing.T) {
	store := New()
	ctx := context.Background()

	id, err := store.Create(ctx, "calls", map[string]any{"status": "ringing"})
	require.NoError(t, err)

	ch, cancel, err := store.WatchDocument(ctx, "calls", id)
	require.NoError(t, err)
	defer cancel()

	// Initial state is delivered first.
	snap := <-ch
	assert.Equal(t, "ringing", snap.Data["status"])

	require.NoError(t, store.Update(ctx, "calls", id, []signalstore.Update{{Path: "status", Value: "accepted"}}))
	require.NoError(t, store.Update(ctx, "calls", id, []signalstore.Update{{Path: "status", Value: "ended"}}))

	snap = <-ch
	assert.Equal(t, "accepted", snap.Data["status"])
	snap = <-ch
	assert.Equal(t, "ended", snap.Data["status"])
}

func TestDeleteNotifiesNilData(t *testing.T) {
	store := New()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "activeCalls", "user-1", map[string]any{"callId": "c1"}))

	ch, cancel, err := store.WatchDocument(ctx, "activeCalls", "user-1")
	require.NoError(t, err)
	defer cancel()
	<-ch // initial state

	require.NoError(t, store.Delete(ctx, "activeCalls", "user-1"))

	snap := <-ch
	assert.Nil(t, snap.Data)

	// Deleting again is a no-op, not an error.
	assert.NoError(t, store.Delete(ctx, "activeCalls", "user-1"))
}

func TestAppendGrowsArrayInPlace(t *testing.T) {
	store := New()
	ctx := context.Background()

	id, err := store.Create(ctx, "calls", map[string]any{})
	require.NoError(t, err)

	require.NoError(t, store.Append(ctx, "calls", id, "messages", "one"))
	require.NoError(t, store.Append(ctx, "calls", id, "messages", "two", "three"))

	snap, err := store.Get(ctx, "calls", id)
	require.NoError(t, err)
	assert.Equal(t, []any{"one", "two", "three"}, snap.Data["messages"])
}

func TestConcurrentAppendLosesNothing(t *testing.T) {
	store := New()
	ctx := context.Background()

	id, err := store.Create(ctx, "calls", map[string]any{})
	require.NoError(t, err)

	done := make(chan struct{})
	for i := 0; i < 2; i++ {
		go func(sender int) {
			defer func() { done <- struct{}{} }()
			for j := 0; j < 50; j++ {
				_ = store.Append(ctx, "calls", id, "messages", sender)
			}
		}(i)
	}
	<-done
	<-done

	snap, err := store.Get(ctx, "calls", id)
	require.NoError(t, err)
	assert.Len(t, snap.Data["messages"], 100)
}

func TestWatchCollection(t *testing.T) {
	store := New()
	ctx := context.Background()

	ch, cancel, err := store.WatchCollection(ctx, "calls/c1/candidates")
	require.NoError(t, err)
	defer cancel()

	snaps := <-ch
	assert.Empty(t, snaps)

	_, err = store.Create(ctx, "calls/c1/candidates", map[string]any{"from": "a"})
	require.NoError(t, err)
	_, err = store.Create(ctx, "calls/c1/candidates", map[string]any{"from": "b"})
	require.NoError(t, err)

	var last []*signalstore.Snapshot
	deadline := time.After(time.Second)
	for len(last) < 2 {
		select {
		case last = <-ch:
		case <-deadline:
			t.Fatal("timed out waiting for candidate snapshots")
		}
	}
	assert.Len(t, last, 2)
}

func TestQueryArrayContains(t *testing.T) {
	store := New()
	ctx := context.Background()

	_, err := store.Create(ctx, "calls", map[string]any{"participants": []any{"a", "b"}})
	require.NoError(t, err)
	_, err = store.Create(ctx, "calls", map[string]any{"participants": []any{"c", "d"}})
	require.NoError(t, err)

	snaps, err := store.QueryArrayContains(ctx, "calls", "participants", "c")
	require.NoError(t, err)
	require.Len(t, snaps, 1)
	assert.Equal(t, []any{"c", "d"}, snaps[0].Data["participants"])
}

func TestCancelIsIdempotent(t *testing.T) {
	store := New()

	ch, cancel, err := store.WatchDocument(context.Background(), "calls", "c1")
	require.NoError(t, err)

	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
}

func TestWatcherIsolation(t *testing.T) {
	store := New()
	ctx := context.Background()

	id, err := store.Create(ctx, "calls", map[string]any{"messages": []any{"hi"}})
	require.NoError(t, err)

	snap, err := store.Get(ctx, "calls", id)
	require.NoError(t, err)

	// Mutating a returned snapshot must not leak into the store.
	snap.Data["messages"].([]any)[0] = "tampered"

	again, err := store.Get(ctx, "calls", id)
	require.NoError(t, err)
	assert.Equal(t, []any{"hi"}, again.Data["messages"])
}
