package syncer

import (
	"context"
	"fmt"

	"anon-sync/core/logger"
	"anon-sync/core/metrics"
	"anon-sync/feature/anonymize"
	"anon-sync/feature/customers/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Scanner pages through source records. When after is non-empty only
// records created strictly after it are visited.
type Scanner interface {
	Scan(ctx context.Context, after string, chunk int, fn func([]models.Customer) error) error
}

// ReindexTarget is the mirror as seen by a full reindex.
type ReindexTarget interface {
	Upserter
	Reset(ctx context.Context) error
}

// Reindexer rebuilds the mirror from the whole source.
type Reindexer struct {
	source  Scanner
	mirror  ReindexTarget
	chunk   int
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewReindexer creates a reindexer reading chunks of cfg.ReindexChunkSize.
func NewReindexer(cfg Config, source Scanner, mirror ReindexTarget, log *zap.Logger, m *metrics.Metrics) *Reindexer {
	return &Reindexer{
		source:  source,
		mirror:  mirror,
		chunk:   cfg.withDefaults().ReindexChunkSize,
		log:     logger.Component(log, "reindex"),
		metrics: m,
	}
}

// Run empties the mirror and writes the anonymized form of every source
// record into it. Records of one chunk are upserted concurrently and the
// first failure aborts the run. Run returns the number of records written.
func (r *Reindexer) Run(ctx context.Context) (int, error) {
	if err := r.mirror.Reset(ctx); err != nil {
		return 0, fmt.Errorf("reset mirror: %w", err)
	}

	total := 0
	err := r.source.Scan(ctx, "", r.chunk, func(batch []models.Customer) error {
		g, gctx := errgroup.WithContext(ctx)
		for _, c := range batch {
			anon := anonymize.Customer(c)
			g.Go(func() error {
				return r.mirror.Upsert(gctx, anon)
			})
		}
		if err := g.Wait(); err != nil {
			r.log.Error("Reindex chunk failed",
				zap.String("operation", "upsert"),
				zap.Int("batch_size", len(batch)),
				zap.Int("written", total),
				zap.Error(err))
			return err
		}

		total += len(batch)
		r.metrics.AddReindexed(len(batch))
		r.log.Debug("Reindexed chunk", zap.Int("batch_size", len(batch)), zap.Int("written", total))
		return nil
	})
	if err != nil {
		return total, fmt.Errorf("reindex: %w", err)
	}
	return total, nil
}
