// Package firestore implements signalstore.Store on Cloud Firestore. Watch
// methods are backed by Firestore snapshot listeners, which deliver changes
// to a single document in server write order.
package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"telecare-calling/internal/signalstore"
	"telecare-calling/pkg/constants"
	"telecare-calling/pkg/logger"
)

// Config contains Firestore connection settings.
type Config struct {
	ProjectID       string
	CredentialsJSON []byte // service account content; ambient credentials if empty
}

// Store is the Firestore-backed signaling store.
type Store struct {
	client *firestore.Client
}

// New initializes the Firebase app and opens a Firestore client.
func New(ctx context.Context, cfg *Config) (*Store, error) {
	if cfg == nil || cfg.ProjectID == "" {
		return nil, fmt.Errorf("firestore project id is required")
	}

	var opts []option.ClientOption
	if len(cfg.CredentialsJSON) > 0 {
		opts = append(opts, option.WithCredentialsJSON(cfg.CredentialsJSON))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: cfg.ProjectID}, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize Firebase app: %w", err)
	}

	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open Firestore client: %w", err)
	}

	logger.Info("Firestore signaling store initialized",
		zap.String("project_id", cfg.ProjectID))

	return &Store{client: client}, nil
}

// Close releases the underlying client.
func (s *Store) Close() error {
	return s.client.Close()
}

// Create inserts a new document with a Firestore-assigned id.
func (s *Store) Create(ctx context.Context, collection string, data map[string]any) (string, error) {
	ref := s.client.Collection(collection).NewDoc()
	if _, err := ref.Create(ctx, data); err != nil {
		return "", fmt.Errorf("failed to create document in %s: %w", collection, err)
	}
	return ref.ID, nil
}

// Set inserts or replaces a document under a caller-chosen id.
func (s *Store) Set(ctx context.Context, collection, id string, data map[string]any) error {
	if _, err := s.client.Collection(collection).Doc(id).Set(ctx, data); err != nil {
		return fmt.Errorf("failed to set %s/%s: %w", collection, id, err)
	}
	return nil
}

// Get reads one document.
func (s *Store) Get(ctx context.Context, collection, id string) (*signalstore.Snapshot, error) {
	snap, err := s.client.Collection(collection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, signalstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return &signalstore.Snapshot{ID: snap.Ref.ID, Data: snap.Data()}, nil
}

// Update applies field writes to an existing document.
func (s *Store) Update(ctx context.Context, collection, id string, updates []signalstore.Update) error {
	fsUpdates := make([]firestore.Update, 0, len(updates))
	for _, u := range updates {
		fsUpdates = append(fsUpdates, firestore.Update{Path: u.Path, Value: u.Value})
	}
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, fsUpdates)
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("update %s/%s: %w", collection, id, signalstore.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to update %s/%s: %w", collection, id, err)
	}
	return nil
}

// Append adds values to an array field via ArrayUnion, so concurrent
// appenders on different clients never clobber each other.
func (s *Store) Append(ctx context.Context, collection, id, field string, values ...any) error {
	_, err := s.client.Collection(collection).Doc(id).Update(ctx, []firestore.Update{
		{Path: field, Value: firestore.ArrayUnion(values...)},
	})
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("append %s/%s: %w", collection, id, signalstore.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to append to %s/%s.%s: %w", collection, id, field, err)
	}
	return nil
}

// Delete removes a document. Firestore deletes are idempotent.
func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if _, err := s.client.Collection(collection).Doc(id).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// WatchDocument subscribes to snapshot notifications for one document.
func (s *Store) WatchDocument(ctx context.Context, collection, id string) (<-chan *signalstore.Snapshot, signalstore.CancelFunc, error) {
	watchCtx, cancel := context.WithCancel(ctx)
	iter := s.client.Collection(collection).Doc(id).Snapshots(watchCtx)
	out := make(chan *signalstore.Snapshot, constants.WatchBuffer)

	go func() {
		defer close(out)
		defer iter.Stop()
		for {
			snap, err := iter.Next()
			if err != nil {
				if watchCtx.Err() == nil {
					logger.Warn("document watch terminated",
						zap.String("collection", collection),
						zap.String("id", id),
						zap.Error(err))
				}
				return
			}

			converted := &signalstore.Snapshot{ID: id}
			if snap.Exists() {
				converted.Data = snap.Data()
			}
			select {
			case out <- converted:
			case <-watchCtx.Done():
				return
			}
		}
	}()

	return out, signalstore.CancelFunc(cancel), nil
}

// WatchCollection subscribes to the full document set of a collection.
func (s *Store) WatchCollection(ctx context.Context, collection string) (<-chan []*signalstore.Snapshot, signalstore.CancelFunc, error) {
	watchCtx, cancel := context.WithCancel(ctx)
	iter := s.client.Collection(collection).Snapshots(watchCtx)
	out := make(chan []*signalstore.Snapshot, constants.WatchBuffer)

	go func() {
		defer close(out)
		defer iter.Stop()
		for {
			qs, err := iter.Next()
			if err != nil {
				if watchCtx.Err() == nil {
					logger.Warn("collection watch terminated",
						zap.String("collection", collection),
						zap.Error(err))
				}
				return
			}

			docs, err := qs.Documents.GetAll()
			if err != nil {
				logger.Warn("failed to read collection snapshot",
					zap.String("collection", collection),
					zap.Error(err))
				continue
			}

			converted := make([]*signalstore.Snapshot, 0, len(docs))
			for _, d := range docs {
				converted = append(converted, &signalstore.Snapshot{ID: d.Ref.ID, Data: d.Data()})
			}
			select {
			case out <- converted:
			case <-watchCtx.Done():
				return
			}
		}
	}()

	return out, signalstore.CancelFunc(cancel), nil
}

// QueryArrayContains returns documents whose array field contains value.
func (s *Store) QueryArrayContains(ctx context.Context, collection, field string, value any) ([]*signalstore.Snapshot, error) {
	docs, err := s.client.Collection(collection).
		Where(field, "array-contains", value).
		Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s where %s contains value: %w", collection, field, err)
	}

	out := make([]*signalstore.Snapshot, 0, len(docs))
	for _, d := range docs {
		out = append(out, &signalstore.Snapshot{ID: d.Ref.ID, Data: d.Data()})
	}
	return out, nil
}
