package collection

import (
	"context"
	"fmt"
	"sync"

	"github.com/RoaringBitmap/roaring/v2/roaring64"

	"github.com/hyperjump/prodsearch/internal/models"
	"github.com/hyperjump/prodsearch/internal/storage"
	"github.com/hyperjump/prodsearch/internal/vector"
)

type state int

const (
	stateOpen state = iota
	stateClosed
	stateDropped
)

// Collection is a persisted record set with exactly one index entry per record.
// Searches and resolves run concurrently; inserts are serialized and publish atomically.
type Collection struct {
	schema   Schema
	store    storage.Storage
	newIndex vector.Factory

	index    vector.Index
	ids      *roaring64.Bitmap
	count    int
	restored bool
	state    state

	mu      sync.RWMutex
	writeMu sync.Mutex
}

// Create validates schema, drops any persisted collection with the same name and persists the new one.
// The returned collection is empty and searchable.
func Create(ctx context.Context, store storage.Storage, schema Schema, newIndex vector.Factory) (*Collection, error) {
	if err := schema.Validate(); err != nil {
		return nil, err
	}
	idx, err := newIndex(schema.Dimension)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	if err := idx.Build(nil); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("failed to build empty index: %w", err)
	}

	fields, err := encodeFields(schema.Fields)
	if err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("failed to encode schema: %w", err)
	}
	if err := store.DropCollection(ctx, schema.Name); err != nil {
		_ = idx.Close()
		return nil, fmt.Errorf("failed to drop existing collection: %w", err)
	}
	meta := &storage.CollectionMeta{
		Name:      schema.Name,
		Dimension: schema.Dimension,
		Fields:    fields,
		IndexType: idx.Type(),
	}
	if err := store.CreateCollection(ctx, meta); err != nil {
		_ = idx.Close()
		return nil, err
	}

	return &Collection{
		schema:   schema,
		store:    store,
		newIndex: newIndex,
		index:    idx,
		ids:      roaring64.New(),
	}, nil
}

// Load reopens a persisted collection. The index is restored from its snapshot when the snapshot
// matches the index type and record count; otherwise it is rebuilt from the stored vectors.
func Load(ctx context.Context, store storage.Storage, name string, newIndex vector.Factory) (*Collection, error) {
	meta, err := store.GetCollection(ctx, name)
	if err != nil {
		return nil, err
	}
	fields, err := decodeFields(meta.Fields)
	if err != nil {
		return nil, fmt.Errorf("failed to decode schema of %s: %w", name, err)
	}
	schema := Schema{Name: meta.Name, Dimension: meta.Dimension, Fields: fields}
	if err := schema.Validate(); err != nil {
		return nil, err
	}

	records, err := store.ListRecords(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to read records of %s: %w", name, err)
	}
	ids := roaring64.New()
	entries := make([]vector.Entry, len(records))
	for i, rec := range records {
		if len(rec.Vector) != schema.Dimension {
			return nil, &vector.DimensionMismatchError{Expected: schema.Dimension, Actual: len(rec.Vector), ID: rec.ID}
		}
		ids.Add(uint64(rec.ID))
		entries[i] = vector.Entry{ID: rec.ID, Vector: rec.Vector}
	}

	idx, err := newIndex(schema.Dimension)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	restored := restoreSnapshot(ctx, store, name, idx, len(records))
	if !restored {
		if err := idx.Build(entries); err != nil {
			_ = idx.Close()
			return nil, fmt.Errorf("failed to rebuild index: %w", err)
		}
	}

	return &Collection{
		schema:   schema,
		store:    store,
		newIndex: newIndex,
		index:    idx,
		ids:      ids,
		count:    len(records),
		restored: restored,
	}, nil
}

func restoreSnapshot(ctx context.Context, store storage.Storage, name string, idx vector.Index, count int) bool {
	snap, err := store.GetIndexSnapshot(ctx, name)
	if err != nil {
		return false
	}
	if snap.IndexType != idx.Type() || snap.RecordCount != int64(count) {
		return false
	}
	if err := idx.UnmarshalBinary(snap.Data); err != nil {
		return false
	}
	return idx.Len() == count
}

// InsertBulk adds records atomically. Every vector must have the collection dimension and
// every id must be new. A new index over existing and new vectors is built, records and its
// snapshot are written in one transaction, and only then is the new index published.
// On any error the collection is unchanged.
func (c *Collection) InsertBulk(ctx context.Context, records []*models.Record) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.mu.RLock()
	st := c.state
	c.mu.RUnlock()
	if st != stateOpen {
		return ErrClosed
	}
	if len(records) == 0 {
		return nil
	}

	batch := make(map[int64]struct{}, len(records))
	for i, rec := range records {
		if rec == nil {
			return fmt.Errorf("%w: record %d is nil", ErrInvalidRecord, i)
		}
		if len(rec.Vector) != c.schema.Dimension {
			return &vector.DimensionMismatchError{Expected: c.schema.Dimension, Actual: len(rec.Vector), ID: rec.ID}
		}
		if _, dup := batch[rec.ID]; dup || c.ids.Contains(uint64(rec.ID)) {
			return fmt.Errorf("%w: %d", ErrDuplicateID, rec.ID)
		}
		batch[rec.ID] = struct{}{}
	}

	existing, err := c.store.ListRecords(ctx, c.schema.Name)
	if err != nil {
		return fmt.Errorf("failed to read existing records: %w", err)
	}
	entries := make([]vector.Entry, 0, len(existing)+len(records))
	for _, rec := range existing {
		entries = append(entries, vector.Entry{ID: rec.ID, Vector: rec.Vector})
	}
	for _, rec := range records {
		entries = append(entries, vector.Entry{ID: rec.ID, Vector: rec.Vector})
	}

	idx, err := c.newIndex(c.schema.Dimension)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := idx.Build(entries); err != nil {
		_ = idx.Close()
		return err
	}
	data, err := idx.MarshalBinary()
	if err != nil {
		_ = idx.Close()
		return fmt.Errorf("failed to snapshot index: %w", err)
	}
	snap := &storage.IndexSnapshot{IndexType: idx.Type(), RecordCount: int64(len(entries)), Data: data}
	if err := c.store.InsertRecords(ctx, c.schema.Name, records, snap); err != nil {
		_ = idx.Close()
		return fmt.Errorf("failed to write records: %w", err)
	}

	c.mu.Lock()
	old := c.index
	c.index = idx
	for id := range batch {
		c.ids.Add(uint64(id))
	}
	c.count = len(entries)
	c.mu.Unlock()
	return old.Close()
}

// Resolve returns the records for ids in input order. If any id is unknown it returns a
// *NotFoundError listing all of them.
func (c *Collection) Resolve(ctx context.Context, ids []int64) ([]*models.Record, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != stateOpen {
		return nil, ErrClosed
	}

	var missing []int64
	for _, id := range ids {
		if !c.ids.Contains(uint64(id)) {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return nil, &NotFoundError{IDs: missing}
	}

	byID, err := c.store.GetRecords(ctx, c.schema.Name, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to read records: %w", err)
	}
	out := make([]*models.Record, len(ids))
	for i, id := range ids {
		rec, ok := byID[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		out[i] = rec
	}
	if len(missing) > 0 {
		return nil, &NotFoundError{IDs: missing}
	}
	return out, nil
}

// Search runs a nearest-neighbour query against the current index.
func (c *Collection) Search(query []float32, k int, quality vector.SearchQuality) ([]vector.Hit, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != stateOpen {
		return nil, ErrClosed
	}
	return c.index.Search(query, k, quality)
}

// Drop deletes the collection's persisted data and releases the index.
// Dropping a dropped or closed collection returns ErrClosed.
func (c *Collection) Drop(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != stateOpen {
		return ErrClosed
	}
	if err := c.store.DropCollection(ctx, c.schema.Name); err != nil {
		return fmt.Errorf("failed to drop collection %s: %w", c.schema.Name, err)
	}
	c.release()
	c.state = stateDropped
	return nil
}

// Close releases the index and keeps persisted data. Closing twice is a no-op;
// closing a dropped collection returns ErrClosed.
func (c *Collection) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case stateClosed:
		return nil
	case stateDropped:
		return ErrClosed
	}
	c.release()
	c.state = stateClosed
	return nil
}

func (c *Collection) release() {
	if c.index != nil {
		_ = c.index.Close()
	}
	c.ids.Clear()
	c.count = 0
}

// Len returns the number of records.
func (c *Collection) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.count
}

// Contains reports whether id has a record.
func (c *Collection) Contains(id int64) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state == stateOpen && c.ids.Contains(uint64(id))
}

// Name returns the collection name.
func (c *Collection) Name() string {
	return c.schema.Name
}

// Dimension returns the vector dimension.
func (c *Collection) Dimension() int {
	return c.schema.Dimension
}

// Schema returns a copy of the collection schema.
func (c *Collection) Schema() Schema {
	s := c.schema
	s.Fields = append([]FieldSchema(nil), c.schema.Fields...)
	return s
}

// IndexType returns the vector index type.
func (c *Collection) IndexType() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.index.Type()
}

// Restored reports whether Load restored the index from its snapshot instead of rebuilding.
func (c *Collection) Restored() bool {
	return c.restored
}
