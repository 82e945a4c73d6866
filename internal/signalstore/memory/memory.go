// Package memory provides an in-process signalstore.Store used by tests and
// local development. Watch notifications preserve per-document write order.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"telecare-calling/internal/signalstore"
	"telecare-calling/pkg/constants"
)

// Store is a mutex-guarded map-of-maps with watcher fan-out.
type Store struct {
	mu          sync.Mutex
	collections map[string]map[string]map[string]any

	docWatchers map[string][]*docWatcher // key: collection + "/" + id
	colWatchers map[string][]*colWatcher
}

type docWatcher struct {
	ch     chan *signalstore.Snapshot
	closed bool
}

type colWatcher struct {
	ch     chan []*signalstore.Snapshot
	closed bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{
		collections: make(map[string]map[string]map[string]any),
		docWatchers: make(map[string][]*docWatcher),
		colWatchers: make(map[string][]*colWatcher),
	}
}

// Create inserts a new document with a generated id.
func (s *Store) Create(_ context.Context, collection string, data map[string]any) (string, error) {
	id := uuid.NewString()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(collection, id, data)
	return id, nil
}

// Set inserts or replaces a document under a caller-chosen id.
func (s *Store) Set(_ context.Context, collection, id string, data map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.put(collection, id, data)
	return nil
}

// Get reads one document.
func (s *Store) Get(_ context.Context, collection, id string) (*signalstore.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return nil, signalstore.ErrNotFound
	}
	return &signalstore.Snapshot{ID: id, Data: copyDoc(doc)}, nil
}

// Update applies field writes to an existing document.
func (s *Store) Update(_ context.Context, collection, id string, updates []signalstore.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return fmt.Errorf("update %s/%s: %w", collection, id, signalstore.ErrNotFound)
	}
	for _, u := range updates {
		doc[u.Path] = u.Value
	}
	s.notifyLocked(collection, id)
	return nil
}

// Append adds values to an array field. The array is grown in place, so
// concurrent appenders never clobber each other.
func (s *Store) Append(_ context.Context, collection, id, field string, values ...any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.collections[collection][id]
	if !ok {
		return fmt.Errorf("append %s/%s: %w", collection, id, signalstore.ErrNotFound)
	}
	arr, _ := doc[field].([]any)
	doc[field] = append(arr, values...)
	s.notifyLocked(collection, id)
	return nil
}

// Delete removes a document. Missing documents are ignored.
func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	col, ok := s.collections[collection]
	if !ok {
		return nil
	}
	if _, ok := col[id]; !ok {
		return nil
	}
	delete(col, id)
	s.notifyLocked(collection, id)
	return nil
}

// WatchDocument subscribes to one document. The current state (possibly a
// deletion marker with nil Data) is delivered first.
func (s *Store) WatchDocument(_ context.Context, collection, id string) (<-chan *signalstore.Snapshot, signalstore.CancelFunc, error) {
	key := collection + "/" + id
	w := &docWatcher{ch: make(chan *signalstore.Snapshot, constants.WatchBuffer)}

	s.mu.Lock()
	s.docWatchers[key] = append(s.docWatchers[key], w)
	if doc, ok := s.collections[collection][id]; ok {
		w.ch <- &signalstore.Snapshot{ID: id, Data: copyDoc(doc)}
	}
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			watchers := s.docWatchers[key]
			for i, other := range watchers {
				if other == w {
					s.docWatchers[key] = append(watchers[:i], watchers[i+1:]...)
					break
				}
			}
			w.closed = true
			close(w.ch)
		})
	}
	return w.ch, cancel, nil
}

// WatchCollection subscribes to the full document set of a collection.
func (s *Store) WatchCollection(_ context.Context, collection string) (<-chan []*signalstore.Snapshot, signalstore.CancelFunc, error) {
	w := &colWatcher{ch: make(chan []*signalstore.Snapshot, constants.WatchBuffer)}

	s.mu.Lock()
	s.colWatchers[collection] = append(s.colWatchers[collection], w)
	w.ch <- s.snapshotAllLocked(collection)
	s.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			watchers := s.colWatchers[collection]
			for i, other := range watchers {
				if other == w {
					s.colWatchers[collection] = append(watchers[:i], watchers[i+1:]...)
					break
				}
			}
			w.closed = true
			close(w.ch)
		})
	}
	return w.ch, cancel, nil
}

// QueryArrayContains returns documents whose array field contains value.
func (s *Store) QueryArrayContains(_ context.Context, collection, field string, value any) ([]*signalstore.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*signalstore.Snapshot
	for id, doc := range s.collections[collection] {
		arr, _ := doc[field].([]any)
		for _, v := range arr {
			if v == value {
				out = append(out, &signalstore.Snapshot{ID: id, Data: copyDoc(doc)})
				break
			}
		}
	}
	return out, nil
}

// put stores a copy and notifies watchers. Caller holds the mutex.
func (s *Store) put(collection, id string, data map[string]any) {
	col, ok := s.collections[collection]
	if !ok {
		col = make(map[string]map[string]any)
		s.collections[collection] = col
	}
	col[id] = copyDoc(data)
	s.notifyLocked(collection, id)
}

// notifyLocked fans the current state out to watchers. Sends happen under
// the mutex so every watcher observes writes to one document in the same
// order they were applied. A full channel drops the oldest buffered
// snapshot; the engine only needs the latest state.
func (s *Store) notifyLocked(collection, id string) {
	var snap *signalstore.Snapshot
	if doc, ok := s.collections[collection][id]; ok {
		snap = &signalstore.Snapshot{ID: id, Data: copyDoc(doc)}
	} else {
		snap = &signalstore.Snapshot{ID: id, Data: nil}
	}

	for _, w := range s.docWatchers[collection+"/"+id] {
		if w.closed {
			continue
		}
		select {
		case w.ch <- snap:
		default:
			select {
			case <-w.ch:
			default:
			}
			w.ch <- snap
		}
	}

	if watchers := s.colWatchers[collection]; len(watchers) > 0 {
		all := s.snapshotAllLocked(collection)
		for _, w := range watchers {
			if w.closed {
				continue
			}
			select {
			case w.ch <- all:
			default:
				select {
				case <-w.ch:
				default:
				}
				w.ch <- all
			}
		}
	}
}

func (s *Store) snapshotAllLocked(collection string) []*signalstore.Snapshot {
	col := s.collections[collection]
	out := make([]*signalstore.Snapshot, 0, len(col))
	for id, doc := range col {
		out = append(out, &signalstore.Snapshot{ID: id, Data: copyDoc(doc)})
	}
	return out
}

// copyDoc performs a shallow-plus-arrays copy, enough to isolate watchers
// from later mutation of stored maps.
func copyDoc(doc map[string]any) map[string]any {
	if doc == nil {
		return nil
	}
	out := make(map[string]any, len(doc))
	for k, v := range doc {
		switch typed := v.(type) {
		case []any:
			arr := make([]any, len(typed))
			copy(arr, typed)
			out[k] = arr
		case map[string]any:
			out[k] = copyDoc(typed)
		default:
			out[k] = v
		}
	}
	return out
}
