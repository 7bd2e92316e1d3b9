package syncer

import (
	"context"
	"errors"
	"testing"

	"anon-sync/core/metrics"
	"anon-sync/feature/anonymize"
	"anon-sync/feature/customers/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func TestReindexer_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("Empty Source Clears Mirror", func(t *testing.T) {
		source, mirror := setupStores(t, nil)
		require.NoError(t, mirror.Upsert(ctx, customer("stale", ts(1))))

		n, err := NewReindexer(Config{}, source, mirror, nil, nil).Run(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)

		count, err := mirror.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("Rebuilds Every Record", func(t *testing.T) {
		source, mirror := setupStores(t, nil)
		recs := customers(0, 250)
		require.NoError(t, source.Insert(ctx, recs...))
		require.NoError(t, mirror.Upsert(ctx, customer("stale", ts(1))))

		m := metrics.New(prometheus.NewRegistry())
		n, err := NewReindexer(Config{ReindexChunkSize: 100}, source, mirror, nil, m).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 250, n)
		assert.Equal(t, 250.0, testutil.ToFloat64(m.ReindexedRecords))

		count, err := mirror.Count(ctx)
		require.NoError(t, err)
		assert.EqualValues(t, 250, count)

		_, err = mirror.Get(ctx, "stale")
		assert.Error(t, err)

		for _, i := range []int{0, 99, 100, 249} {
			got, err := mirror.Get(ctx, recs[i].ID)
			require.NoError(t, err)
			assert.Equal(t, anonymize.Customer(recs[i]), got)
		}
	})
}

func TestReindexer_ChunkBounds(t *testing.T) {
	ctx := context.Background()
	mirror := new(MockMirror)
	mirror.On("Reset", mock.Anything).Return(nil)
	mirror.On("Upsert", mock.Anything, mock.Anything).Return(nil)

	var sizes []int
	scanner := chunkRecorder{inner: sliceScanner{recs: customers(0, 205)}, sizes: &sizes}

	n, err := NewReindexer(Config{ReindexChunkSize: 100}, scanner, mirror, nil, nil).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 205, n)
	assert.Equal(t, []int{100, 100, 5}, sizes)
	mirror.AssertNumberOfCalls(t, "Upsert", 205)
}

func TestReindexer_Failures(t *testing.T) {
	ctx := context.Background()

	t.Run("Reset Error", func(t *testing.T) {
		mirror := new(MockMirror)
		mirror.On("Reset", mock.Anything).Return(errors.New("drop denied"))

		_, err := NewReindexer(Config{}, sliceScanner{recs: customers(0, 3)}, mirror, nil, nil).Run(ctx)
		assert.ErrorContains(t, err, "drop denied")
		mirror.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything)
	})

	t.Run("Upsert Error Aborts", func(t *testing.T) {
		upsertErr := errors.New("write failed")
		mirror := new(MockMirror)
		mirror.On("Reset", mock.Anything).Return(nil)
		mirror.On("Upsert", mock.Anything, mock.MatchedBy(func(c models.Customer) bool { return c.ID == "c0001" })).Return(upsertErr)
		mirror.On("Upsert", mock.Anything, mock.Anything).Return(nil)

		var sizes []int
		scanner := chunkRecorder{inner: sliceScanner{recs: customers(0, 30)}, sizes: &sizes}

		n, err := NewReindexer(Config{ReindexChunkSize: 10}, scanner, mirror, nil, nil).Run(ctx)
		assert.ErrorIs(t, err, upsertErr)
		assert.Zero(t, n)
		assert.Len(t, sizes, 1)
	})

	t.Run("Scan Error", func(t *testing.T) {
		mirror := new(MockMirror)
		mirror.On("Reset", mock.Anything).Return(nil)

		_, err := NewReindexer(Config{}, sliceScanner{err: errors.New("cursor lost")}, mirror, nil, nil).Run(ctx)
		assert.ErrorContains(t, err, "cursor lost")
	})
}

// chunkRecorder records the size of every chunk handed out by inner.
type chunkRecorder struct {
	inner Scanner
	sizes *[]int
}

func (c chunkRecorder) Scan(ctx context.Context, after string, chunk int, fn func([]models.Customer) error) error {
	return c.inner.Scan(ctx, after, chunk, func(batch []models.Customer) error {
		*c.sizes = append(*c.sizes, len(batch))
		return fn(batch)
	})
}
