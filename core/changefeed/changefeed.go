package changefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrClosed is returned by streams and feeds used after Close.
	ErrClosed = errors.New("changefeed: closed")
	// ErrUnknownDriver is returned by New for an unsupported backend.
	ErrUnknownDriver = errors.New("changefeed: unknown driver")
)

// Operation is the kind of change a notification describes.
type Operation string

const (
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// Event is a single change notification. Document always carries the full
// current state of the record, never a delta.
type Event struct {
	Operation Operation       `json:"op"`
	ID        string          `json:"id"`
	Document  json.RawMessage `json:"document"`
}

// NewEvent builds an Event by encoding doc as JSON.
func NewEvent(op Operation, id string, doc any) (Event, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return Event{}, fmt.Errorf("encode %s event for %s: %w", op, id, err)
	}
	return Event{Operation: op, ID: id, Document: raw}, nil
}

// Stream delivers events published after the subscription was established.
type Stream interface {
	// Next blocks until an event is available, ctx is done, or the stream fails.
	Next(ctx context.Context) (Event, error)
	// Close releases the subscription.
	Close() error
}

// Feed publishes change events and hands out live subscriptions.
type Feed interface {
	Publish(ctx context.Context, ev Event) error
	// Subscribe pins the current end of the feed and returns a stream that
	// starts right after it. Historical events are never replayed.
	Subscribe(ctx context.Context) (Stream, error)
	Close() error
}

// Pinger is implemented by feeds that can report their connection health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Ping checks feed when it implements Pinger and succeeds otherwise.
func Ping(ctx context.Context, feed Feed) error {
	if p, ok := feed.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// New builds the feed selected by cfg.Driver.
func New(ctx context.Context, cfg Config) (Feed, error) {
	switch cfg.Driver {
	case "redis":
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
		return NewRedis(client, cfg.Redis), nil
	case "kafka":
		return NewKafka(cfg.Kafka)
	case "memory":
		return NewMemory(cfg.BufferSize), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}
}
