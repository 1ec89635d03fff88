package collection

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hyperjump/prodsearch/internal/models"
	"github.com/hyperjump/prodsearch/internal/storage"
	"github.com/hyperjump/prodsearch/internal/vector"
)

func newStore(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "products.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func hnswFactory() vector.Factory {
	return vector.NewFactory("hnsw", vector.HNSWConfig{M: 4, EfConstruction: 16, EfSearch: 16, Seed: 1})
}

func record(id int64, name string, vec ...float32) *models.Record {
	return models.NewRecord(models.Product{ID: id, Name: name, Description: name + " desc", Category: "Electronics", Price: float64(id) * 10, Rating: 4.5}, vec)
}

func countRecords(t *testing.T, store *storage.SQLiteStorage, name string) int {
	t.Helper()
	records, err := store.ListRecords(context.Background(), name)
	require.NoError(t, err)
	return len(records)
}

func TestCreate_InvalidSchema(t *testing.T) {
	store := newStore(t)
	_, err := Create(context.Background(), store, Schema{Name: "", Dimension: 3}, hnswFactory())
	assert.ErrorIs(t, err, ErrInvalidSchema)

	_, err = Create(context.Background(), store, DefaultProductSchema("p", 0), hnswFactory())
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestCreate_EmptyCollectionSearch(t *testing.T) {
	store := newStore(t)
	c, err := Create(context.Background(), store, DefaultProductSchema("products", 3), hnswFactory())
	require.NoError(t, err)
	defer c.Close()

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, "products", c.Name())
	assert.Equal(t, 3, c.Dimension())
	assert.Equal(t, "hnsw", c.IndexType())

	hits, err := c.Search([]float32{1, 0, 0}, 3, vector.SearchQuality{})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestInsertBulk_ResolveRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c, err := Create(ctx, store, DefaultProductSchema("products", 3), hnswFactory())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.InsertBulk(ctx, []*models.Record{
		record(1, "Headphones", 1, 0, 0),
		record(2, "Earbuds", 0.8, 0.2, 0),
		record(3, "TV", 0, 0, 1),
	}))
	assert.Equal(t, 3, c.Len())
	assert.True(t, c.Contains(2))
	assert.False(t, c.Contains(9))

	recs, err := c.Resolve(ctx, []int64{3, 1})
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, int64(3), recs[0].ID)
	assert.Equal(t, "TV", recs[0].Fields.Name)
	assert.Equal(t, "TV desc", recs[0].Fields.Description)
	assert.Equal(t, "Electronics", recs[0].Fields.Category)
	assert.Equal(t, 30.0, recs[0].Fields.Price)
	assert.Equal(t, 4.5, recs[0].Fields.Rating)
	assert.Equal(t, []float32{0, 0, 1}, recs[0].Vector)
	assert.Equal(t, "Headphones", recs[1].Fields.Name)

	hits, err := c.Search([]float32{1, 0, 0}, 2, vector.SearchQuality{})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, int64(1), hits[0].ID)
	assert.Equal(t, int64(2), hits[1].ID)
}

func TestInsertBulk_SecondBatchExtendsIndex(t *testing.T) {
	ctx := context.Background()
	c, err := Create(ctx, newStore(t), DefaultProductSchema("products", 2), hnswFactory())
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.InsertBulk(ctx, []*models.Record{record(1, "a", 1, 0)}))
	require.NoError(t, c.InsertBulk(ctx, []*models.Record{record(2, "b", 0, 1)}))
	assert.Equal(t, 2, c.Len())

	hits, err := c.Search([]float32{1, 1}, 5, vector.SearchQuality{})
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestInsertBulk_DimensionMismatchLeavesCollectionUnchanged(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c, err := Create(ctx, store, DefaultProductSchema("products", 3), hnswFactory())
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.InsertBulk(ctx, []*models.Record{record(1, "a", 1, 0, 0)}))

	err = c.InsertBulk(ctx, []*models.Record{record(2, "b", 0, 1, 0), record(3, "c", 1, 1)})
	var dimErr *vector.DimensionMismatchError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, int64(3), dimErr.ID)
	assert.ErrorIs(t, err, vector.ErrDimensionMismatch)

	assert.Equal(t, 1, c.Len())
	assert.Equal(t, 1, countRecords(t, store, "products"))
	_, err = c.Resolve(ctx, []int64{2})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsertBulk_DuplicateIDs(t *testing.T) {
	ctx := context.Background()
	c, err := Create(ctx, newStore(t), DefaultProductSchema("products", 2), hnswFactory())
	require.NoError(t, err)
	defer c.Close()

	err = c.InsertBulk(ctx, []*models.Record{record(1, "a", 1, 0), record(1, "b", 0, 1)})
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 0, c.Len())

	require.NoError(t, c.InsertBulk(ctx, []*models.Record{record(1, "a", 1, 0)}))
	err = c.InsertBulk(ctx, []*models.Record{record(1, "again", 0, 1)})
	assert.ErrorIs(t, err, ErrDuplicateID)
	assert.Equal(t, 1, c.Len())
}

func TestInsertBulk_NilRecordRejected(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c, err := Create(ctx, store, DefaultProductSchema("products", 2), hnswFactory())
	require.NoError(t, err)
	defer c.Close()

	err = c.InsertBulk(ctx, []*models.Record{record(1, "a", 1, 0), nil})
	assert.ErrorIs(t, err, ErrInvalidRecord)
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 0, countRecords(t, store, "products"))
}

func TestResolve_NotFoundListsAllMissing(t *testing.T) {
	ctx := context.Background()
	c, err := Create(ctx, newStore(t), DefaultProductSchema("products", 2), hnswFactory())
	require.NoError(t, err)
	defer c.Close()
	require.NoError(t, c.InsertBulk(ctx, []*models.Record{record(1, "a", 1, 0)}))

	_, err = c.Resolve(ctx, []int64{5, 1, 7})
	var nf *NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, []int64{5, 7}, nf.IDs)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "5, 7")
}

func TestCreate_DropsExistingCollection(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c, err := Create(ctx, store, DefaultProductSchema("products", 2), hnswFactory())
	require.NoError(t, err)
	require.NoError(t, c.InsertBulk(ctx, []*models.Record{record(1, "a", 1, 0)}))
	require.NoError(t, c.Close())

	c2, err := Create(ctx, store, DefaultProductSchema("products", 2), hnswFactory())
	require.NoError(t, err)
	defer c2.Close()
	assert.Equal(t, 0, c2.Len())
	assert.Equal(t, 0, countRecords(t, store, "products"))
}

func TestDrop(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c, err := Create(ctx, store, DefaultProductSchema("products", 2), hnswFactory())
	require.NoError(t, err)
	require.NoError(t, c.InsertBulk(ctx, []*models.Record{record(1, "a", 1, 0)}))

	require.NoError(t, c.Drop(ctx))
	assert.ErrorIs(t, c.Drop(ctx), ErrClosed)
	assert.ErrorIs(t, c.Close(), ErrClosed)

	_, err = c.Search([]float32{1, 0}, 1, vector.SearchQuality{})
	assert.ErrorIs(t, err, ErrClosed)
	_, err = c.Resolve(ctx, []int64{1})
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.InsertBulk(ctx, []*models.Record{record(2, "b", 0, 1)}), ErrClosed)
	assert.Equal(t, 0, c.Len())

	_, err = store.GetCollection(ctx, "products")
	assert.ErrorIs(t, err, storage.ErrCollectionNotFound)
	assert.Equal(t, 0, countRecords(t, store, "products"))
}

func TestClose_KeepsPersistedData(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c, err := Create(ctx, store, DefaultProductSchema("products", 2), hnswFactory())
	require.NoError(t, err)
	require.NoError(t, c.InsertBulk(ctx, []*models.Record{record(1, "a", 1, 0)}))

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Drop(ctx), ErrClosed)

	assert.Equal(t, 1, countRecords(t, store, "products"))
}

func TestLoad_RestoresSnapshot(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c, err := Create(ctx, store, DefaultProductSchema("products", 3), hnswFactory())
	require.NoError(t, err)
	require.NoError(t, c.InsertBulk(ctx, []*models.Record{
		record(1, "a", 1, 0, 0),
		record(2, "b", 0, 1, 0),
	}))
	want, err := c.Search([]float32{1, 0.1, 0}, 2, vector.SearchQuality{})
	require.NoError(t, err)
	require.NoError(t, c.Close())

	loaded, err := Load(ctx, store, "products", hnswFactory())
	require.NoError(t, err)
	defer loaded.Close()
	assert.True(t, loaded.Restored())
	assert.Equal(t, 2, loaded.Len())
	assert.Equal(t, DefaultProductSchema("products", 3), loaded.Schema())

	got, err := loaded.Search([]float32{1, 0.1, 0}, 2, vector.SearchQuality{})
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLoad_RebuildsWhenIndexTypeChanges(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c, err := Create(ctx, store, DefaultProductSchema("products", 2), hnswFactory())
	require.NoError(t, err)
	require.NoError(t, c.InsertBulk(ctx, []*models.Record{record(1, "a", 1, 0), record(2, "b", 0, 1)}))
	require.NoError(t, c.Close())

	loaded, err := Load(ctx, store, "products", vector.NewFactory("flat", vector.HNSWConfig{}))
	require.NoError(t, err)
	defer loaded.Close()
	assert.False(t, loaded.Restored())
	assert.Equal(t, "flat", loaded.IndexType())

	hits, err := loaded.Search([]float32{0, 1}, 1, vector.SearchQuality{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits[0].ID)
}

func TestLoad_RebuildsWhenSnapshotCorrupt(t *testing.T) {
	ctx := context.Background()
	store := newStore(t)
	c, err := Create(ctx, store, DefaultProductSchema("products", 2), hnswFactory())
	require.NoError(t, err)
	require.NoError(t, c.InsertBulk(ctx, []*models.Record{record(1, "a", 1, 0)}))
	require.NoError(t, c.Close())

	// the snapshot type and count match, but its bytes do not decode
	garbage := &storage.IndexSnapshot{IndexType: "hnsw", RecordCount: 2, Data: []byte("corrupt")}
	require.NoError(t, store.InsertRecords(ctx, "products", []*models.Record{record(2, "b", 0, 1)}, garbage))

	loaded, err := Load(ctx, store, "products", hnswFactory())
	require.NoError(t, err)
	defer loaded.Close()
	assert.False(t, loaded.Restored())
	assert.Equal(t, 2, loaded.Len())

	hits, err := loaded.Search([]float32{0, 1}, 1, vector.SearchQuality{})
	require.NoError(t, err)
	assert.Equal(t, int64(2), hits[0].ID)
}

func TestLoad_Missing(t *testing.T) {
	_, err := Load(context.Background(), newStore(t), "nope", hnswFactory())
	assert.ErrorIs(t, err, storage.ErrCollectionNotFound)
}
