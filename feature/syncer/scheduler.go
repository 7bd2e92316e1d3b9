package syncer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"anon-sync/core/logger"
	"anon-sync/core/metrics"
	"anon-sync/feature/customers/models"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// Upserter writes one anonymized record into the mirror.
type Upserter interface {
	Upsert(ctx context.Context, c models.Customer) error
}

// FlushResult describes one completed flush.
type FlushResult struct {
	Trigger string
	Size    int
	Failed  int
	Took    time.Duration
}

// Scheduler buffers anonymized records and writes them to the mirror in
// batches, either when BatchSize records are buffered or on every
// FlushInterval tick.
type Scheduler struct {
	cfg     Config
	mirror  Upserter
	log     *zap.Logger
	metrics *metrics.Metrics

	// OnFlush is called after every non-empty flush. Set it before Start.
	OnFlush func(FlushResult)

	capacity *semaphore.Weighted
	inFlight *semaphore.Weighted

	mu   sync.Mutex
	buf  []models.Customer
	stop chan struct{}
}

// NewScheduler creates a scheduler writing to mirror. log and m may be nil.
func NewScheduler(cfg Config, mirror Upserter, log *zap.Logger, m *metrics.Metrics) *Scheduler {
	cfg = cfg.withDefaults()
	return &Scheduler{
		cfg:      cfg,
		mirror:   mirror,
		log:      logger.Component(log, "scheduler"),
		metrics:  m,
		capacity: semaphore.NewWeighted(int64(cfg.MaxBuffered)),
		inFlight: semaphore.NewWeighted(int64(cfg.MaxInFlight)),
		buf:      make([]models.Customer, 0, cfg.BatchSize),
	}
}

// Add buffers c. When the buffer reaches BatchSize its contents are flushed
// in the calling goroutine before Add returns. Add blocks while MaxBuffered
// records are held and returns ctx.Err() if ctx ends first.
func (s *Scheduler) Add(ctx context.Context, c models.Customer) error {
	if err := s.capacity.Acquire(ctx, 1); err != nil {
		return err
	}

	s.mu.Lock()
	s.buf = append(s.buf, c)
	var batch []models.Customer
	if len(s.buf) >= s.cfg.BatchSize {
		batch = s.takeLocked()
	}
	n := len(s.buf)
	s.mu.Unlock()

	s.metrics.SetBuffered(n)
	if batch != nil {
		s.flush(ctx, metrics.TriggerSize, batch)
	}
	return nil
}

// Len returns the number of records waiting for a flush.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buf)
}

// Start launches the periodic flush. It runs until Stop is called or ctx is
// done; calling Start on a running scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	go s.loop(ctx, s.stop)
}

// Stop halts the periodic flush. Buffered records are not written and a
// flush already running is not waited for.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()

	if stop != nil {
		close(stop)
	}
}

func (s *Scheduler) loop(ctx context.Context, stop <-chan struct{}) {
	ticker := time.NewTicker(s.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	s.mu.Lock()
	batch := s.takeLocked()
	s.mu.Unlock()

	if batch == nil {
		return
	}
	s.metrics.SetBuffered(0)
	s.flush(ctx, metrics.TriggerTimer, batch)
}

// takeLocked hands the buffered records to the caller and starts a new buffer.
func (s *Scheduler) takeLocked() []models.Customer {
	if len(s.buf) == 0 {
		return nil
	}
	batch := s.buf
	s.buf = make([]models.Customer, 0, s.cfg.BatchSize)
	return batch
}

// flush upserts every record of batch concurrently and waits for all of
// them. A failed record is logged and counted; it never fails the batch
// and is not retried.
func (s *Scheduler) flush(ctx context.Context, trigger string, batch []models.Customer) FlushResult {
	defer s.capacity.Release(int64(len(batch)))

	res := FlushResult{Trigger: trigger, Size: len(batch)}
	if err := s.inFlight.Acquire(ctx, 1); err != nil {
		res.Failed = len(batch)
		s.log.Warn("Flush abandoned",
			zap.String("trigger", trigger),
			zap.Int("batch_size", len(batch)),
			zap.Error(err))
		return res
	}
	defer s.inFlight.Release(1)

	start := time.Now()
	var failed atomic.Int64

	var g errgroup.Group
	g.SetLimit(s.cfg.FlushWorkers)
	for _, c := range batch {
		g.Go(func() error {
			if err := s.upsert(ctx, c); err != nil {
				failed.Add(1)
				s.log.Error("Failed to upsert record",
					zap.String("operation", "upsert"),
					zap.String("trigger", trigger),
					zap.String("id", c.ID),
					zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	res.Failed = int(failed.Load())
	res.Took = time.Since(start)
	s.metrics.ObserveFlush(trigger, res.Size, res.Failed, res.Took)

	if res.Failed > 0 {
		s.log.Warn("Flushed batch with failures",
			zap.String("trigger", trigger),
			zap.Int("batch_size", res.Size),
			zap.Int("failed", res.Failed),
			zap.Duration("took", res.Took))
	} else {
		s.log.Debug("Flushed batch",
			zap.String("trigger", trigger),
			zap.Int("batch_size", res.Size),
			zap.Duration("took", res.Took))
	}

	if s.OnFlush != nil {
		s.OnFlush(res)
	}
	return res
}

func (s *Scheduler) upsert(ctx context.Context, c models.Customer) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("upsert panicked: %v", r)
		}
	}()
	return s.mirror.Upsert(ctx, c)
}
