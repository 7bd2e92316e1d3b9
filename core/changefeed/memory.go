package changefeed

import (
	"context"
	"sync"
)

// Memory is an in-process Feed. Publish fans each event out to every open
// stream and blocks while a subscriber's queue is full.
type Memory struct {
	mu     sync.Mutex
	subs   map[*memoryStream]struct{}
	buffer int
	closed bool
}

// NewMemory creates an in-process feed with the given per-subscriber buffer.
func NewMemory(buffer int) *Memory {
	if buffer <= 0 {
		buffer = 256
	}
	return &Memory{
		subs:   make(map[*memoryStream]struct{}),
		buffer: buffer,
	}
}

func (m *Memory) Publish(ctx context.Context, ev Event) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return ErrClosed
	}
	subs := make([]*memoryStream, 0, len(m.subs))
	for s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	for _, s := range subs {
		select {
		case s.ch <- ev:
		case <-s.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

func (m *Memory) Subscribe(ctx context.Context) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrClosed
	}

	s := &memoryStream{
		feed: m,
		ch:   make(chan Event, m.buffer),
		done: make(chan struct{}),
	}
	m.subs[s] = struct{}{}
	return s, nil
}

// Ping fails once the feed is closed.
func (m *Memory) Ping(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return ErrClosed
	}
	return nil
}

// Subscribers returns the number of open streams.
func (m *Memory) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	subs := m.subs
	m.subs = make(map[*memoryStream]struct{})
	m.mu.Unlock()

	for s := range subs {
		s.shut()
	}
	return nil
}

type memoryStream struct {
	feed *Memory
	ch   chan Event
	done chan struct{}
	once sync.Once
}

func (s *memoryStream) Next(ctx context.Context) (Event, error) {
	// Drain queued events before reporting closure
	select {
	case ev := <-s.ch:
		return ev, nil
	default:
	}

	select {
	case ev := <-s.ch:
		return ev, nil
	case <-s.done:
		return Event{}, ErrClosed
	case <-ctx.Done():
		return Event{}, ctx.Err()
	}
}

func (s *memoryStream) Close() error {
	s.feed.mu.Lock()
	delete(s.feed.subs, s)
	s.feed.mu.Unlock()
	s.shut()
	return nil
}

func (s *memoryStream) shut() {
	s.once.Do(func() { close(s.done) })
}
