package changefeed

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

const kafkaHeaderOp = "op"

// Kafka is a Feed backed by a Kafka topic. Records are keyed by document id
// so every change to one record lands on the same partition, in order.
type Kafka struct {
	producer *kgo.Client
	cfg      KafkaConfig
}

// NewKafka creates the producing client. Consumers are created per Subscribe.
func NewKafka(cfg KafkaConfig) (*Kafka, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no seed brokers configured")
	}
	producer, err := kgo.NewClient(
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.DefaultProduceTopic(cfg.Topic),
		kgo.AllowAutoTopicCreation(),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &Kafka{producer: producer, cfg: cfg}, nil
}

func (k *Kafka) Publish(ctx context.Context, ev Event) error {
	rec := &kgo.Record{
		Key:     []byte(ev.ID),
		Value:   ev.Document,
		Headers: []kgo.RecordHeader{{Key: kafkaHeaderOp, Value: []byte(ev.Operation)}},
	}
	if err := k.producer.ProduceSync(ctx, rec).FirstErr(); err != nil {
		return fmt.Errorf("produce to %s: %w", k.cfg.Topic, err)
	}
	return nil
}

func (k *Kafka) Subscribe(ctx context.Context) (Stream, error) {
	// kadm.Client wraps the producer; it must not be closed here
	adm := kadm.NewClient(k.producer)
	ends, err := adm.ListEndOffsets(ctx, k.cfg.Topic)
	if err != nil {
		return nil, fmt.Errorf("list end offsets of %s: %w", k.cfg.Topic, err)
	}

	partitions := make(map[int32]kgo.Offset)
	var listErr error
	ends.Each(func(o kadm.ListedOffset) {
		if errors.Is(o.Err, kerr.UnknownTopicOrPartition) {
			return
		}
		if o.Err != nil {
			if listErr == nil {
				listErr = o.Err
			}
			return
		}
		partitions[o.Partition] = kgo.NewOffset().At(o.Offset)
	})
	if listErr != nil {
		return nil, fmt.Errorf("list end offsets of %s: %w", k.cfg.Topic, listErr)
	}

	opts := []kgo.Opt{kgo.SeedBrokers(k.cfg.Brokers...)}
	if len(partitions) > 0 {
		opts = append(opts, kgo.ConsumePartitions(map[string]map[int32]kgo.Offset{k.cfg.Topic: partitions}))
	} else {
		// Topic does not exist yet, so nothing predates the subscription
		opts = append(opts,
			kgo.ConsumeTopics(k.cfg.Topic),
			kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
		)
	}

	consumer, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("create kafka consumer: %w", err)
	}
	return &kafkaStream{consumer: consumer}, nil
}

// Ping checks that at least one seed broker answers.
func (k *Kafka) Ping(ctx context.Context) error {
	return k.producer.Ping(ctx)
}

func (k *Kafka) Close() error {
	k.producer.Close()
	return nil
}

type kafkaStream struct {
	consumer *kgo.Client
	pending  []*kgo.Record
	once     sync.Once
}

func (s *kafkaStream) Next(ctx context.Context) (Event, error) {
	for len(s.pending) == 0 {
		fetches := s.consumer.PollFetches(ctx)
		if fetches.IsClientClosed() {
			return Event{}, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return Event{}, err
		}
		if errs := fetches.Errors(); len(errs) > 0 {
			e := errs[0]
			return Event{}, fmt.Errorf("fetch %s[%d]: %w", e.Topic, e.Partition, e.Err)
		}
		fetches.EachRecord(func(r *kgo.Record) {
			s.pending = append(s.pending, r)
		})
	}

	rec := s.pending[0]
	s.pending = s.pending[1:]
	return decodeKafkaRecord(rec)
}

func (s *kafkaStream) Close() error {
	s.once.Do(s.consumer.Close)
	return nil
}

func decodeKafkaRecord(rec *kgo.Record) (Event, error) {
	var op string
	for _, h := range rec.Headers {
		if h.Key == kafkaHeaderOp {
			op = string(h.Value)
			break
		}
	}
	if op == "" {
		return Event{}, fmt.Errorf("record %s[%d]@%d has no %q header", rec.Topic, rec.Partition, rec.Offset, kafkaHeaderOp)
	}
	return Event{Operation: Operation(op), ID: string(rec.Key), Document: rec.Value}, nil
}
