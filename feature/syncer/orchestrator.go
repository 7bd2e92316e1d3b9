package syncer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"anon-sync/core/changefeed"
	"anon-sync/core/logger"
	"anon-sync/core/metrics"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Mode selects how the orchestrator brings the mirror up to date.
type Mode int

const (
	// ModeIncremental catches up and then follows the change feed.
	ModeIncremental Mode = iota
	// ModeFullReindex rebuilds the mirror once and returns.
	ModeFullReindex
)

func (m Mode) String() string {
	switch m {
	case ModeFullReindex:
		return "full-reindex"
	default:
		return "incremental"
	}
}

// MirrorStore is everything the orchestrator needs from the mirror.
type MirrorStore interface {
	ReindexTarget
	CatchUpTarget
	Migrate(ctx context.Context) error
}

// Orchestrator wires the feed, the scheduler, the reindexer and the
// reconciler into one run.
type Orchestrator struct {
	cfg     Config
	source  Scanner
	mirror  MirrorStore
	feed    changefeed.Feed
	log     *zap.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	stream changefeed.Stream
	sched  *Scheduler
}

// New creates an orchestrator. log and m may be nil.
func New(cfg Config, source Scanner, mirror MirrorStore, feed changefeed.Feed, log *zap.Logger, m *metrics.Metrics) *Orchestrator {
	return &Orchestrator{
		cfg:     cfg.withDefaults(),
		source:  source,
		mirror:  mirror,
		feed:    feed,
		log:     logger.Component(log, "sync"),
		metrics: m,
	}
}

// Run executes mode. A full reindex returns once the mirror is rebuilt.
// Incremental mode runs until ctx is cancelled, which yields nil, or until a
// fatal error occurs: failing to subscribe, a stream failure, or a failed
// catch-up. Panics in the engine's goroutines are returned as errors.
func (o *Orchestrator) Run(ctx context.Context, mode Mode) error {
	o.log.Info("Starting sync", zap.Stringer("mode", mode))
	switch mode {
	case ModeFullReindex:
		return recovered("reindex", func() error { return o.reindex(ctx) })()
	default:
		return o.incremental(ctx)
	}
}

func (o *Orchestrator) reindex(ctx context.Context) error {
	n, err := NewReindexer(o.cfg, o.source, o.mirror, o.log, o.metrics).Run(ctx)
	if err != nil {
		return err
	}
	o.log.Info("Full reindex complete", zap.Int("records", n))
	return nil
}

func (o *Orchestrator) incremental(ctx context.Context) error {
	if err := o.mirror.Migrate(ctx); err != nil {
		return err
	}

	// Subscribe before catching up so nothing created in between is missed
	stream, err := o.feed.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe to change feed: %w", err)
	}

	sched := NewScheduler(o.cfg, o.mirror, o.log, o.metrics)
	o.mu.Lock()
	o.stream = stream
	o.sched = sched
	o.mu.Unlock()

	sched.Start(ctx)
	defer sched.Stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(recovered("subscriber", func() error {
		return NewSubscriber(sched, o.log, o.metrics).Run(gctx, stream)
	}))
	g.Go(recovered("catch-up", func() error {
		n, err := NewReconciler(o.cfg, o.source, o.mirror, o.log, o.metrics).Run(gctx)
		if err != nil {
			return err
		}
		o.log.Info("Catch-up complete", zap.Int("inserted", n))
		return nil
	}))

	err = g.Wait()
	if ctx.Err() != nil {
		o.log.Info("Sync stopped", zap.Int("dropped_buffered", sched.Len()))
		return nil
	}
	return err
}

// Scheduler returns the scheduler of the current incremental run, or nil.
func (o *Orchestrator) Scheduler() *Scheduler {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.sched
}

// Close releases the subscription and the feed. Flushes still running are
// not waited for.
func (o *Orchestrator) Close() error {
	o.mu.Lock()
	stream := o.stream
	o.stream = nil
	o.mu.Unlock()

	var errs []error
	if stream != nil {
		if err := stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close change stream: %w", err))
		}
	}
	if o.feed != nil {
		if err := o.feed.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close change feed: %w", err))
		}
	}
	return errors.Join(errs...)
}

// recovered turns a panic in fn into an error.
func recovered(name string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%s panicked: %v", name, r)
			}
		}()
		return fn()
	}
}
