// Package search provides the semantic product search engine.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/prodsearch/internal/collection"
	"github.com/hyperjump/prodsearch/internal/config"
	"github.com/hyperjump/prodsearch/internal/embedding"
	"github.com/hyperjump/prodsearch/internal/indexer"
	"github.com/hyperjump/prodsearch/internal/models"
	"github.com/hyperjump/prodsearch/internal/storage"
	"github.com/hyperjump/prodsearch/internal/vector"
	"github.com/hyperjump/prodsearch/pkg/utils"
)

// Engine embeds queries, searches the product collection and assembles ranked results.
// It moves through Uninitialized → Loading → Ready → Closed; a failed load returns to Uninitialized.
type Engine struct {
	embedder embedding.Embedder
	store    storage.Storage
	config   *config.Config
	newIndex vector.Factory
	logger   *zap.Logger

	mu       sync.RWMutex
	state    State
	coll     *collection.Collection
	loadedAt time.Time
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithIndexFactory overrides the vector index built for the collection.
func WithIndexFactory(f vector.Factory) EngineOption {
	return func(e *Engine) { e.newIndex = f }
}

// NewEngine creates an uninitialized engine over store. The index type and HNSW parameters
// come from cfg.Index unless WithIndexFactory is given.
func NewEngine(embedder embedding.Embedder, store storage.Storage, cfg *config.Config, opts ...EngineOption) *Engine {
	e := &Engine{
		embedder: embedder,
		store:    store,
		config:   cfg,
		newIndex: vector.NewFactory(cfg.Index.Type, HNSWConfig(&cfg.Index)),
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = utils.LoggerOrNop(e.logger)
	return e
}

// HNSWConfig maps index settings to graph parameters.
func HNSWConfig(c *config.IndexConfig) vector.HNSWConfig {
	return vector.HNSWConfig{
		M:              c.M,
		EfConstruction: c.EfConstruction,
		EfSearch:       c.EfSearch,
		Seed:           c.Seed,
	}
}

// State returns the current lifecycle stage.
func (e *Engine) State() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.state
}

// beginLoad moves Uninitialized → Loading.
func (e *Engine) beginLoad() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	switch e.state {
	case StateClosed:
		return ErrClosed
	case StateUninitialized:
		e.state = StateLoading
		return nil
	default:
		return fmt.Errorf("%w (state %s)", ErrAlreadyLoaded, e.state)
	}
}

// finishLoad publishes coll and moves Loading → Ready, or back to Uninitialized when err is set.
// If the engine was closed meanwhile, coll is released and ErrClosed returned.
func (e *Engine) finishLoad(ctx context.Context, coll *collection.Collection, err error) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateClosed {
		if coll != nil {
			_ = e.releaseCollection(ctx, coll)
		}
		return ErrClosed
	}
	if err != nil {
		e.state = StateUninitialized
		return err
	}
	e.coll = coll
	e.state = StateReady
	e.loadedAt = time.Now()
	return nil
}

// Load creates the collection (dropping any persisted one with the same name), embeds and
// inserts products, and makes the engine Ready.
func (e *Engine) Load(ctx context.Context, products []models.Product) error {
	if err := e.beginLoad(); err != nil {
		return err
	}
	start := time.Now()
	name := e.config.Storage.Collection
	schema := collection.DefaultProductSchema(name, e.embedder.Dimensions())

	coll, err := collection.Create(ctx, e.store, schema, e.newIndex)
	if err != nil {
		e.logger.Error("failed to create collection", zap.String("collection", name), zap.Error(err))
		return e.finishLoad(ctx, nil, fmt.Errorf("failed to create collection: %w", err))
	}

	idx := indexer.NewIndexer(e.embedder, e.config.Embedding.Workers,
		indexer.WithBatchSize(e.config.Embedding.BatchSize),
		indexer.WithLogger(e.logger))
	if _, err := idx.IndexProducts(ctx, coll, products); err != nil {
		e.logger.Error("failed to load products", zap.String("collection", name), zap.Error(err))
		_ = coll.Drop(ctx)
		return e.finishLoad(ctx, nil, err)
	}

	e.logger.Info("search engine ready",
		zap.String("collection", name),
		zap.Int("products", coll.Len()),
		zap.String("index_type", coll.IndexType()),
		zap.Duration("elapsed", time.Since(start)))
	return e.finishLoad(ctx, coll, nil)
}

// Open makes the engine Ready from the persisted collection without re-embedding.
func (e *Engine) Open(ctx context.Context) error {
	if err := e.beginLoad(); err != nil {
		return err
	}
	name := e.config.Storage.Collection
	coll, err := collection.Load(ctx, e.store, name, e.newIndex)
	if err != nil {
		return e.finishLoad(ctx, nil, fmt.Errorf("failed to open collection %s: %w", name, err))
	}
	if coll.Dimension() != e.embedder.Dimensions() {
		_ = coll.Close()
		return e.finishLoad(ctx, nil, fmt.Errorf("collection %s: %w",
			name, &vector.DimensionMismatchError{Expected: e.embedder.Dimensions(), Actual: coll.Dimension()}))
	}
	e.logger.Info("search engine opened",
		zap.String("collection", name),
		zap.Int("products", coll.Len()),
		zap.Bool("index_restored", coll.Restored()))
	return e.finishLoad(ctx, coll, nil)
}

// ready returns the collection if the engine is Ready. Callers must hold e.mu.
func (e *Engine) ready() (*collection.Collection, error) {
	switch e.state {
	case StateReady:
		return e.coll, nil
	case StateClosed:
		return nil, fmt.Errorf("%w: %w", ErrEngineNotReady, ErrClosed)
	default:
		return nil, fmt.Errorf("%w (state %s)", ErrEngineNotReady, e.state)
	}
}

// Search embeds queryText and returns up to topK products whose cosine similarity is at least
// threshold, best first. The threshold is applied to the topK nearest candidates, so fewer than
// topK results may be returned even when more products would qualify.
func (e *Engine) Search(ctx context.Context, queryText string, topK int, threshold float64) ([]models.SearchResult, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	coll, err := e.ready()
	if err != nil {
		return nil, err
	}
	if topK < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidTopK, topK)
	}
	if math.IsNaN(threshold) || threshold < -1 || threshold > 1 {
		return nil, fmt.Errorf("%w: got %g", ErrInvalidThreshold, threshold)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	queryVec, err := e.embedder.Embed(ctx, queryText)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &EmbeddingError{Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	hits, err := coll.Search(queryVec, topK, vector.SearchQuality{EfSearch: e.config.Index.EfSearch})
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}

	kept := hits[:0]
	for _, h := range hits {
		if h.Similarity >= threshold {
			kept = append(kept, h)
		}
	}
	results := make([]models.SearchResult, 0, len(kept))
	if len(kept) == 0 {
		return results, nil
	}

	ids := make([]int64, len(kept))
	for i, h := range kept {
		ids[i] = h.ID
	}
	records, err := coll.Resolve(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve results: %w", err)
	}
	for i, rec := range records {
		results = append(results, models.NewSearchResult(rec, kept[i].Similarity, i+1))
	}
	return results, nil
}

// Query validates q, applies configured defaults and the search timeout, and wraps the results
// with timing information.
func (e *Engine) Query(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	start := time.Now()
	s := &e.config.Search
	defaultThreshold := e.config.SearchThreshold()
	if err := q.Validate(s.DefaultTopK, s.MaxTopK, defaultThreshold); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	threshold := q.ThresholdValue(defaultThreshold)
	results, err := e.Search(ctx, q.Query, q.TopK, threshold)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			e.logger.Warn("search timed out", zap.String("query", q.Query), zap.Duration("timeout", s.Timeout))
		}
		return nil, err
	}
	elapsed := time.Since(start)
	e.logger.Debug("search completed",
		zap.String("query", q.Query),
		zap.Int("top_k", q.TopK),
		zap.Float64("threshold", threshold),
		zap.Int("results", len(results)),
		zap.Duration("elapsed", elapsed))

	return &models.SearchResponse{
		Results:   results,
		Total:     len(results),
		QueryTime: elapsed.Milliseconds(),
		Query:     q.Query,
		TopK:      q.TopK,
		Threshold: threshold,
	}, nil
}

// Product returns the product with id.
func (e *Engine) Product(ctx context.Context, id int64) (*models.Product, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	coll, err := e.ready()
	if err != nil {
		return nil, err
	}
	if !coll.Contains(id) {
		return nil, &collection.NotFoundError{IDs: []int64{id}}
	}
	records, err := coll.Resolve(ctx, []int64{id})
	if err != nil {
		return nil, err
	}
	p := records[0].Fields
	return &p, nil
}

// Products returns every product in the collection ordered by id.
func (e *Engine) Products(ctx context.Context) ([]models.Product, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	coll, err := e.ready()
	if err != nil {
		return nil, err
	}
	records, err := e.store.ListRecords(ctx, coll.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	products := make([]models.Product, len(records))
	for i, rec := range records {
		products[i] = rec.Fields
	}
	return products, nil
}

// Stats describes the engine for status endpoints.
type Stats struct {
	State         string    `json:"state"`
	Collection    string    `json:"collection"`
	Records       int       `json:"records"`
	IndexType     string    `json:"index_type,omitempty"`
	Dimensions    int       `json:"dimensions"`
	IndexRestored bool      `json:"index_restored"`
	LoadedAt      time.Time `json:"loaded_at,omitempty"`
	// Fields lists the collection's scalar fields.
	Fields []string `json:"fields,omitempty"`
	// Cache is set when the embedder keeps an embedding cache.
	Cache *embedding.CacheStats `json:"embedding_cache,omitempty"`
}

// cacheReporter is implemented by embedders that cache vectors.
type cacheReporter interface {
	CacheStats() embedding.CacheStats
}

// Stats returns a snapshot of the engine state.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := Stats{
		State:      e.state.String(),
		Collection: e.config.Storage.Collection,
		Dimensions: e.embedder.Dimensions(),
	}
	if e.state == StateReady && e.coll != nil {
		s.Records = e.coll.Len()
		s.IndexType = e.coll.IndexType()
		s.IndexRestored = e.coll.Restored()
		s.LoadedAt = e.loadedAt
		for _, f := range e.coll.Schema().Fields {
			s.Fields = append(s.Fields, f.Name)
		}
	}
	if c, ok := e.embedder.(cacheReporter); ok {
		cs := c.CacheStats()
		s.Cache = &cs
	}
	return s
}

// Close releases the collection, dropping its persisted data when storage.drop_on_close is set,
// and moves the engine to Closed. Closing twice is a no-op.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateClosed {
		return nil
	}
	e.state = StateClosed
	if e.coll == nil {
		return nil
	}
	err := e.releaseCollection(ctx, e.coll)
	e.coll = nil
	return err
}

func (e *Engine) releaseCollection(ctx context.Context, coll *collection.Collection) error {
	if e.config.Storage.DropOnClose {
		e.logger.Info("dropping collection", zap.String("collection", coll.Name()))
		return coll.Drop(ctx)
	}
	return coll.Close()
}
