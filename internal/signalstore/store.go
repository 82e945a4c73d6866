// Package signalstore defines the capability boundary between the calling
// subsystem and the shared document store it coordinates through. The core
// treats the store purely as an ordered per-document mailbox plus a
// membership query; everything above this interface is store-agnostic.
package signalstore

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a requested document does not exist.
var ErrNotFound = errors.New("signalstore: document not found")

// Snapshot is one observed state of a document. Data is a decoded field map
// as delivered by the store's change feed.
type Snapshot struct {
	ID   string
	Data map[string]any
}

// Update is a single field write. Paths are flat field names; the calling
// subsystem never writes nested paths.
type Update struct {
	Path  string
	Value any
}

// CancelFunc stops a subscription and releases its resources. Safe to call
// more than once.
type CancelFunc func()

// Store is the Signaling Store Adapter. Implementations must deliver
// document watch notifications in an order consistent with server-side
// write order for a single document. No ordering guarantee exists across
// documents or collections.
type Store interface {
	// Create inserts a new document with a store-assigned id and returns it.
	Create(ctx context.Context, collection string, data map[string]any) (string, error)

	// Set inserts or replaces a document under a caller-chosen id.
	Set(ctx context.Context, collection, id string, data map[string]any) error

	// Get reads one document. Returns ErrNotFound if it does not exist.
	Get(ctx context.Context, collection, id string) (*Snapshot, error)

	// Update applies field writes to an existing document.
	Update(ctx context.Context, collection, id string, updates []Update) error

	// Append adds values to an array field without rewriting the rest of
	// the document. Appending is atomic with respect to concurrent appends.
	Append(ctx context.Context, collection, id, field string, values ...any) error

	// Delete removes a document. Deleting a missing document is not an error.
	Delete(ctx context.Context, collection, id string) error

	// WatchDocument subscribes to change notifications for one document.
	// The current state is delivered first. The channel is closed when the
	// subscription ends.
	WatchDocument(ctx context.Context, collection, id string) (<-chan *Snapshot, CancelFunc, error)

	// WatchCollection subscribes to the full contents of a collection,
	// delivering the complete document set on every change.
	WatchCollection(ctx context.Context, collection string) (<-chan []*Snapshot, CancelFunc, error)

	// QueryArrayContains returns documents whose array field contains value.
	QueryArrayContains(ctx context.Context, collection, field string, value any) ([]*Snapshot, error)
}
