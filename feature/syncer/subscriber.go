package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"anon-sync/core/changefeed"
	"anon-sync/core/logger"
	"anon-sync/core/metrics"
	"anon-sync/feature/anonymize"
	"anon-sync/feature/customers/models"

	"go.uber.org/zap"
)

// Buffer accepts anonymized records for batched writing.
type Buffer interface {
	Add(ctx context.Context, c models.Customer) error
}

// Subscriber turns change notifications into anonymized records.
type Subscriber struct {
	buf     Buffer
	log     *zap.Logger
	metrics *metrics.Metrics
}

// NewSubscriber creates a subscriber feeding buf.
func NewSubscriber(buf Buffer, log *zap.Logger, m *metrics.Metrics) *Subscriber {
	return &Subscriber{
		buf:     buf,
		log:     logger.Component(log, "subscriber"),
		metrics: m,
	}
}

// Run consumes stream until ctx is done or the stream fails. Insert and
// update notifications are anonymized and buffered; every other operation
// is ignored. A document that cannot be decoded is logged and skipped.
// Run returns nil when ctx ends and an error for any stream failure.
func (s *Subscriber) Run(ctx context.Context, stream changefeed.Stream) error {
	for {
		ev, err := stream.Next(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read change feed: %w", err)
		}

		s.metrics.IncFeedEvent(string(ev.Operation))
		if ev.Operation != changefeed.OpInsert && ev.Operation != changefeed.OpUpdate {
			s.log.Debug("Ignoring change",
				zap.String("operation", string(ev.Operation)),
				zap.String("id", ev.ID))
			continue
		}

		c, err := decodeCustomer(ev)
		if err != nil {
			s.metrics.IncFeedDecodeFailure()
			s.log.Error("Failed to decode change document",
				zap.String("operation", string(ev.Operation)),
				zap.String("id", ev.ID),
				zap.Error(err))
			continue
		}

		if err := s.buf.Add(ctx, anonymize.Customer(c)); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("buffer %s: %w", c.ID, err)
		}
	}
}

func decodeCustomer(ev changefeed.Event) (models.Customer, error) {
	var c models.Customer
	if len(ev.Document) == 0 {
		return c, errors.New("empty document")
	}
	if err := json.Unmarshal(ev.Document, &c); err != nil {
		return c, err
	}
	if c.ID == "" {
		c.ID = ev.ID
	}
	if c.ID == "" {
		return c, errors.New("document has no id")
	}
	return c, nil
}
