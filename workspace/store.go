package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/vizflow/errors"
	"github.com/c360/vizflow/natsclient"
)

// DefaultBucket holds workspaces when no bucket is configured.
const DefaultBucket = "vizflow_workspaces"

// historyDepth is the number of revisions kept per workspace.
const historyDepth = 10

// Record is a stored workspace with its bookkeeping.
type Record struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Document  *Document `json:"document"`
}

// Store keeps workspaces in a NATS KV bucket. Updates use optimistic
// versioning: a record can only replace the version it was read at.
type Store struct {
	kv     *natsclient.KVStore
	logger *slog.Logger
	now    func() time.Time
}

// NewStore opens the bucket, creating it if needed.
func NewStore(ctx context.Context, client *natsclient.Client, bucket string, logger *slog.Logger) (*Store, error) {
	if client == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "Workspace", "NewStore", "nats client is nil")
	}
	if bucket == "" {
		bucket = DefaultBucket
	}
	if logger == nil {
		logger = slog.Default()
	}

	kv, err := client.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "vizflow workspace documents",
		History:     historyDepth,
	})
	if err != nil {
		return nil, errors.WrapTransient(err, "Workspace", "NewStore", "create KV bucket")
	}

	return &Store{
		kv:     client.NewKVStore(kv),
		logger: logger.With("component", "workspace-store", "bucket", bucket),
		now:    time.Now,
	}, nil
}

func decodeRecord(data []byte, op string) (*Record, error) {
	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, errors.WrapFatal(fmt.Errorf("%w: %v", errors.ErrInvalidData, err), "Workspace", op, "unmarshal record")
	}
	return &rec, nil
}

func storageError(err error, op, action string) error {
	if natsclient.IsKVNotFoundError(err) {
		return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrKeyNotFound, err), "Workspace", op, action)
	}
	return errors.WrapTransient(fmt.Errorf("%w: %v", errors.ErrStorageUnavailable, err), "Workspace", op, action)
}

// Create stores doc as a new workspace. A document without an id gets a
// fresh one. The stored record starts at version 1.
func (s *Store) Create(ctx context.Context, doc *Document) (*Record, error) {
	if doc == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Workspace", "Create", "document is nil")
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	now := s.now()
	rec := &Record{
		ID:        doc.ID,
		Name:      doc.Name,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
		Document:  doc,
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, errors.WrapFatal(err, "Workspace", "Create", "marshal record")
	}

	if _, err := s.kv.Create(ctx, rec.ID, data); err != nil {
		if natsclient.IsKVConflictError(err) {
			return nil, errors.WrapInvalid(fmt.Errorf("%w: workspace %s", errors.ErrDuplicateIdentifier, rec.ID),
				"Workspace", "Create", "create in KV")
		}
		return nil, storageError(err, "Create", "create in KV")
	}
	s.logger.Info("workspace created", "id", rec.ID, "name", rec.Name)
	return rec, nil
}

// Get returns the latest record of a workspace.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	if id == "" {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Workspace", "Get", "id is empty")
	}
	entry, err := s.kv.Get(ctx, id)
	if err != nil {
		return nil, storageError(err, "Get", "get from KV")
	}
	return decodeRecord(entry.Value, "Get")
}

// Update replaces a workspace. rec.Version must match the stored version,
// otherwise ErrVersionConflict is returned. On success rec carries the new
// version.
func (s *Store) Update(ctx context.Context, rec *Record) error {
	if rec == nil || rec.ID == "" || rec.Document == nil {
		return errors.WrapInvalid(errors.ErrInvalidData, "Workspace", "Update", "record needs an id and a document")
	}

	entry, err := s.kv.Get(ctx, rec.ID)
	if err != nil {
		return storageError(err, "Update", "get current version")
	}
	current, err := decodeRecord(entry.Value, "Update")
	if err != nil {
		return err
	}
	if current.Version != rec.Version {
		return errors.WrapInvalid(
			fmt.Errorf("%w: stored version %d, record version %d", errors.ErrVersionConflict, current.Version, rec.Version),
			"Workspace", "Update", "version check")
	}

	next := *rec
	next.Version++
	next.CreatedAt = current.CreatedAt
	next.UpdatedAt = s.now()
	next.Document.ID = rec.ID
	if next.Name == "" {
		next.Name = next.Document.Name
	}
	data, err := json.Marshal(&next)
	if err != nil {
		return errors.WrapFatal(err, "Workspace", "Update", "marshal record")
	}

	// The revision check closes the window between the read and the write.
	if _, err := s.kv.Update(ctx, rec.ID, data, entry.Revision); err != nil {
		if natsclient.IsKVConflictError(err) {
			return errors.WrapInvalid(fmt.Errorf("%w: %v", errors.ErrVersionConflict, err),
				"Workspace", "Update", "write to KV")
		}
		return storageError(err, "Update", "write to KV")
	}
	*rec = next
	s.logger.Info("workspace updated", "id", rec.ID, "version", rec.Version)
	return nil
}

// Save writes doc whatever the stored version is, creating the workspace
// when it does not exist. Concurrent writers are retried.
func (s *Store) Save(ctx context.Context, doc *Document) (*Record, error) {
	if doc == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidData, "Workspace", "Save", "document is nil")
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}

	var saved *Record
	err := s.kv.UpdateWithRetry(ctx, doc.ID, func(current []byte) ([]byte, error) {
		now := s.now()
		rec := &Record{ID: doc.ID, Name: doc.Name, Version: 1, CreatedAt: now, UpdatedAt: now, Document: doc}
		if current != nil {
			prev, err := decodeRecord(current, "Save")
			if err != nil {
				return nil, err
			}
			rec.Version = prev.Version + 1
			rec.CreatedAt = prev.CreatedAt
		}
		saved = rec
		return json.Marshal(rec)
	})
	if err != nil {
		return nil, storageError(err, "Save", "write to KV")
	}
	s.logger.Info("workspace saved", "id", saved.ID, "version", saved.Version)
	return saved, nil
}

// Delete removes a workspace.
func (s *Store) Delete(ctx context.Context, id string) error {
	if id == "" {
		return errors.WrapInvalid(errors.ErrInvalidData, "Workspace", "Delete", "id is empty")
	}
	if err := s.kv.Delete(ctx, id); err != nil {
		return storageError(err, "Delete", "delete from KV")
	}
	s.logger.Info("workspace deleted", "id", id)
	return nil
}

// List returns every stored workspace sorted by name, then id.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		return nil, storageError(err, "List", "list keys")
	}

	records := make([]*Record, 0, len(keys))
	for _, key := range keys {
		rec, err := s.Get(ctx, key)
		if err != nil {
			// Deleted between Keys and Get.
			if errors.Is(err, errors.ErrKeyNotFound) {
				continue
			}
			return nil, err
		}
		records = append(records, rec)
	}
	slices.SortFunc(records, func(a, b *Record) int {
		if c := strings.Compare(a.Name, b.Name); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return records, nil
}

// History returns the retained versions of a workspace, oldest first.
func (s *Store) History(ctx context.Context, id string) ([]*Record, error) {
	entries, err := s.kv.History(ctx, id)
	if err != nil {
		return nil, storageError(err, "History", "read history")
	}
	records := make([]*Record, 0, len(entries))
	for _, e := range entries {
		rec, err := decodeRecord(e.Value, "History")
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
