package changefeed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisFieldOp       = "op"
	redisFieldID       = "id"
	redisFieldDocument = "document"
)

// Redis is a Feed backed by a Redis Stream.
type Redis struct {
	client *redis.Client
	cfg    RedisConfig
}

// NewRedis wraps an existing client. The feed owns the client and closes it.
func NewRedis(client *redis.Client, cfg RedisConfig) *Redis {
	if cfg.ReadCount <= 0 {
		cfg.ReadCount = 100
	}
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 2 * time.Second
	}
	return &Redis{client: client, cfg: cfg}
}

// Ping checks the Redis connection.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *Redis) Publish(ctx context.Context, ev Event) error {
	args := &redis.XAddArgs{
		Stream: r.cfg.Stream,
		Values: map[string]any{
			redisFieldOp:       string(ev.Operation),
			redisFieldID:       ev.ID,
			redisFieldDocument: string(ev.Document),
		},
	}
	if r.cfg.MaxLen > 0 {
		args.MaxLen = r.cfg.MaxLen
		args.Approx = true
	}
	if err := r.client.XAdd(ctx, args).Err(); err != nil {
		return fmt.Errorf("xadd %s: %w", r.cfg.Stream, err)
	}
	return nil
}

func (r *Redis) Subscribe(ctx context.Context) (Stream, error) {
	// Pin the newest entry so the stream starts strictly after it
	last, err := r.client.XRevRangeN(ctx, r.cfg.Stream, "+", "-", 1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read tail of %s: %w", r.cfg.Stream, err)
	}

	lastID := "0-0"
	if len(last) > 0 {
		lastID = last[0].ID
	}

	return &redisStream{
		client: r.client,
		cfg:    r.cfg,
		lastID: lastID,
		done:   make(chan struct{}),
	}, nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

type redisStream struct {
	client  *redis.Client
	cfg     RedisConfig
	lastID  string
	pending []redis.XMessage
	done    chan struct{}
	once    sync.Once
}

func (s *redisStream) Next(ctx context.Context) (Event, error) {
	for len(s.pending) == 0 {
		select {
		case <-s.done:
			return Event{}, ErrClosed
		default:
		}

		res, err := s.client.XRead(ctx, &redis.XReadArgs{
			Streams: []string{s.cfg.Stream, s.lastID},
			Count:   s.cfg.ReadCount,
			Block:   s.cfg.BlockTimeout,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Event{}, ctxErr
			}
			return Event{}, fmt.Errorf("xread %s: %w", s.cfg.Stream, err)
		}
		for _, stream := range res {
			s.pending = append(s.pending, stream.Messages...)
		}
	}

	msg := s.pending[0]
	s.pending = s.pending[1:]
	s.lastID = msg.ID
	return decodeRedisMessage(msg)
}

func (s *redisStream) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func decodeRedisMessage(msg redis.XMessage) (Event, error) {
	op, _ := msg.Values[redisFieldOp].(string)
	id, _ := msg.Values[redisFieldID].(string)
	doc, _ := msg.Values[redisFieldDocument].(string)
	if op == "" {
		return Event{}, fmt.Errorf("stream entry %s has no %q field", msg.ID, redisFieldOp)
	}
	return Event{Operation: Operation(op), ID: id, Document: []byte(doc)}, nil
}
