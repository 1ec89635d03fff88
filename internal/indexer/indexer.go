// Package indexer turns catalog products into embedded records and loads them into a collection.
package indexer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/prodsearch/internal/collection"
	"github.com/hyperjump/prodsearch/internal/embedding"
	"github.com/hyperjump/prodsearch/internal/models"
	"github.com/hyperjump/prodsearch/pkg/utils"
)

const defaultBatchSize = 16

// Indexer embeds products with a bounded pool of workers.
type Indexer struct {
	embedder  embedding.Embedder
	workers   int
	batchSize int
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (batches embedded, records inserted).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// WithBatchSize sets how many products each EmbedBatch call receives.
func WithBatchSize(n int) IndexerOption {
	return func(idx *Indexer) {
		if n > 0 {
			idx.batchSize = n
		}
	}
}

// NewIndexer creates an indexer. workers bounds concurrent embedding batches; values below 1 mean 1.
func NewIndexer(embedder embedding.Embedder, workers int, opts ...IndexerOption) *Indexer {
	if workers < 1 {
		workers = 1
	}
	idx := &Indexer{
		embedder:  embedder,
		workers:   workers,
		batchSize: defaultBatchSize,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	idx.logger = utils.LoggerOrNop(idx.logger)
	return idx
}

// BuildRecords embeds every product and returns records in input order.
// The first embedding failure cancels the remaining batches and is returned.
func (idx *Indexer) BuildRecords(ctx context.Context, products []models.Product) ([]*models.Record, error) {
	records := make([]*models.Record, len(products))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	for _, b := range batches(len(products), idx.batchSize) {
		g.Go(func() error {
			texts := make([]string, 0, b.end-b.start)
			for i := b.start; i < b.end; i++ {
				texts = append(texts, ProductText(&products[i]))
			}
			vectors, err := idx.embedder.EmbedBatch(gctx, texts)
			if err != nil {
				return fmt.Errorf("embed products %d..%d: %w", products[b.start].ID, products[b.end-1].ID, err)
			}
			if len(vectors) != len(texts) {
				return fmt.Errorf("embedder returned %d vectors for %d products", len(vectors), len(texts))
			}
			for i, v := range vectors {
				records[b.start+i] = models.NewRecord(products[b.start+i], v)
			}
			idx.logger.Debug("indexer embedded batch",
				zap.Int("start", b.start),
				zap.Int("size", len(texts)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return records, nil
}

// IndexProducts embeds products and inserts them into coll in one atomic batch.
func (idx *Indexer) IndexProducts(ctx context.Context, coll *collection.Collection, products []models.Product) (int, error) {
	start := time.Now()
	records, err := idx.BuildRecords(ctx, products)
	if err != nil {
		return 0, fmt.Errorf("failed to generate embeddings: %w", err)
	}
	if err := coll.InsertBulk(ctx, records); err != nil {
		return 0, fmt.Errorf("failed to insert records: %w", err)
	}
	idx.logger.Info("indexer products indexed",
		zap.String("collection", coll.Name()),
		zap.Int("count", len(records)),
		zap.Duration("elapsed", time.Since(start)))
	return len(records), nil
}
