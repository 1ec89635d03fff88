// Package storage defines the persistence interface for collections, records and index snapshots.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/hyperjump/prodsearch/internal/models"
)

var (
	// ErrCollectionNotFound is returned when no collection row exists for a name.
	ErrCollectionNotFound = errors.New("storage: collection not found")
	// ErrSnapshotNotFound is returned when a collection has no persisted index snapshot.
	ErrSnapshotNotFound = errors.New("storage: index snapshot not found")
)

// CollectionMeta is the persisted description of a collection.
// Fields holds the JSON-encoded scalar field schema.
type CollectionMeta struct {
	Name      string
	Dimension int
	Fields    string
	IndexType string
	CreatedAt time.Time
}

// IndexSnapshot is a serialized vector index stored beside the records it covers.
type IndexSnapshot struct {
	IndexType   string
	RecordCount int64
	Data        []byte
	CreatedAt   time.Time
}

// Storage defines collection, record and snapshot persistence operations.
type Storage interface {
	// Collection operations
	CreateCollection(ctx context.Context, meta *CollectionMeta) error
	GetCollection(ctx context.Context, name string) (*CollectionMeta, error)
	DropCollection(ctx context.Context, name string) error

	// Record operations
	ListRecords(ctx context.Context, collection string) ([]*models.Record, error)
	GetRecords(ctx context.Context, collection string, ids []int64) (map[int64]*models.Record, error)

	// InsertRecords writes records and replaces the index snapshot in one transaction.
	InsertRecords(ctx context.Context, collection string, records []*models.Record, snapshot *IndexSnapshot) error
	GetIndexSnapshot(ctx context.Context, collection string) (*IndexSnapshot, error)

	Path() string
	Close() error
}
