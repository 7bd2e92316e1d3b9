package syncer

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"anon-sync/core/database"
	"anon-sync/feature/customers/models"
	"anon-sync/feature/customers/store"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, Name: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// setupStores opens separate databases for source and mirror and migrates both.
func setupStores(t *testing.T, pub store.Publisher) (*store.Source, *store.Mirror) {
	t.Helper()
	ctx := context.Background()

	source := store.NewSource(setupSQLite(t), "", pub)
	require.NoError(t, source.Migrate(ctx))
	mirror := store.NewMirror(setupSQLite(t), "")
	require.NoError(t, mirror.Migrate(ctx))
	return source, mirror
}

func ts(i int) string {
	return fmt.Sprintf("2024-01-01T%02d:%02d:%02d.000Z", i/3600, (i/60)%60, i%60)
}

func customer(id, createdAt string) models.Customer {
	return models.Customer{
		ID:        id,
		FirstName: "First" + id,
		LastName:  "Last" + id,
		Email:     "user" + id + "@example.com",
		Address: models.Address{
			Line1:    id + " Main St",
			Line2:    "Apt " + id,
			Postcode: "PC" + id,
			City:     "Springfield",
			State:    "IL",
			Country:  "US",
		},
		CreatedAt: createdAt,
	}
}

func customers(from, to int) []models.Customer {
	out := make([]models.Customer, 0, to-from)
	for i := from; i < to; i++ {
		out = append(out, customer(fmt.Sprintf("c%04d", i), ts(i)))
	}
	return out
}

// recordingMirror is an in-memory Upserter that can fail, panic, or stall
// on demand and tracks upsert concurrency.
type recordingMirror struct {
	mu      sync.Mutex
	rows    map[string]models.Customer
	fail    map[string]error
	panicOn string
	delay   time.Duration
	release chan struct{}

	active    atomic.Int64
	maxActive atomic.Int64
}

func newRecordingMirror() *recordingMirror {
	return &recordingMirror{
		rows: make(map[string]models.Customer),
		fail: make(map[string]error),
	}
}

func (m *recordingMirror) Upsert(ctx context.Context, c models.Customer) error {
	n := m.active.Add(1)
	defer m.active.Add(-1)
	for {
		cur := m.maxActive.Load()
		if n <= cur || m.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}

	if m.release != nil {
		select {
		case <-m.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if c.ID == m.panicOn {
		panic("upsert exploded")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.fail[c.ID]; err != nil {
		return err
	}
	m.rows[c.ID] = c
	return nil
}

func (m *recordingMirror) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *recordingMirror) Get(id string) (models.Customer, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	return c, ok
}

// recordingBuffer collects everything added to it.
type recordingBuffer struct {
	mu   sync.Mutex
	recs []models.Customer
	err  error
}

func (b *recordingBuffer) Add(_ context.Context, c models.Customer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return b.err
	}
	b.recs = append(b.recs, c)
	return nil
}

func (b *recordingBuffer) Records() []models.Customer {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]models.Customer(nil), b.recs...)
}

// MockMirror is a testify mock of MirrorStore.
type MockMirror struct {
	mock.Mock
}

func (m *MockMirror) Upsert(ctx context.Context, c models.Customer) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockMirror) Reset(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockMirror) Migrate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockMirror) HighWaterMark(ctx context.Context) (string, bool, error) {
	args := m.Called(ctx)
	return args.String(0), args.Bool(1), args.Error(2)
}

func (m *MockMirror) InsertMany(ctx context.Context, cs []models.Customer) (int, error) {
	args := m.Called(ctx, cs)
	return args.Int(0), args.Error(1)
}

// sliceScanner serves Scan from memory.
type sliceScanner struct {
	recs []models.Customer
	err  error
}

func (s sliceScanner) Scan(ctx context.Context, after string, chunk int, fn func([]models.Customer) error) error {
	if s.err != nil {
		return s.err
	}
	var batch []models.Customer
	for _, c := range s.recs {
		if after != "" && c.CreatedAt <= after {
			continue
		}
		batch = append(batch, c)
		if len(batch) == chunk {
			if err := fn(batch); err != nil {
				return err
			}
			batch = nil
		}
	}
	if len(batch) > 0 {
		return fn(batch)
	}
	return nil
}
