package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"anon-sync/core/changefeed"
	"anon-sync/core/database"
	"anon-sync/feature/customers/models"
	"anon-sync/feature/customers/store"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, Name: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("Failed to open mock sql db: %v", err)
	}

	dialector := mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	})

	gormDB, err := gorm.Open(dialector, &gorm.Config{SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("Failed to open gorm db: %v", err)
	}
	return gormDB, mock
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
			Postcode: "1000" + id,
			City:     "Springfield",
			State:    "IL",
			Country:  "US",
		},
		CreatedAt: createdAt,
	}
}

func ts(i int) string {
	return fmt.Sprintf("2024-01-01T00:00:%02d.000Z", i)
}

func TestSource_InsertPublishesEvents(t *testing.T) {
	ctx := context.Background()
	feed := changefeed.NewMemory(16)
	t.Cleanup(func() { _ = feed.Close() })

	src := store.NewSource(setupSQLite(t), "", feed)
	require.NoError(t, src.Migrate(ctx))
	assert.Equal(t, models.SourceTable, src.Table())

	stream, err := feed.Subscribe(ctx)
	require.NoError(t, err)

	require.NoError(t, src.Insert(ctx, customer("1", ts(1)), customer("2", ts(2))))

	n, err := src.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	for _, want := range []string{"1", "2"} {
		ev, err := stream.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, changefeed.OpInsert, ev.Operation)
		assert.Equal(t, want, ev.ID)
		assert.Contains(t, string(ev.Document), `"firstName":"First`+want+`"`)
	}
}

func TestSource_UpdatePublishesFullDocument(t *testing.T) {
	ctx := context.Background()
	feed := changefeed.NewMemory(16)
	t.Cleanup(func() { _ = feed.Close() })

	src := store.NewSource(setupSQLite(t), "", feed)
	require.NoError(t, src.Migrate(ctx))
	require.NoError(t, src.Insert(ctx, customer("1", ts(1))))

	stream, err := feed.Subscribe(ctx)
	require.NoError(t, err)

	updated := customer("1", ts(1))
	updated.Address.City = "Shelbyville"
	require.NoError(t, src.Update(ctx, updated))

	ev, err := stream.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, changefeed.OpUpdate, ev.Operation)
	assert.Contains(t, string(ev.Document), `"city":"Shelbyville"`)
	assert.Contains(t, string(ev.Document), `"lastName":"Last1"`)
}

func TestSource_InsertWithoutPublisher(t *testing.T) {
	ctx := context.Background()
	src := store.NewSource(setupSQLite(t), "people", nil)
	require.NoError(t, src.Migrate(ctx))

	require.NoError(t, src.Insert(ctx))
	require.NoError(t, src.Insert(ctx, customer("1", ts(1))))

	n, err := src.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSource_InsertPublishFailureKeepsRows(t *testing.T) {
	ctx := context.Background()
	feed := changefeed.NewMemory(4)
	require.NoError(t, feed.Close())

	src := store.NewSource(setupSQLite(t), "", feed)
	require.NoError(t, src.Migrate(ctx))

	err := src.Insert(ctx, customer("1", ts(1)))
	assert.ErrorIs(t, err, changefeed.ErrClosed)

	n, err := src.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestSource_Scan(t *testing.T) {
	ctx := context.Background()
	src := store.NewSource(setupSQLite(t), "", nil)
	require.NoError(t, src.Migrate(ctx))

	var all []models.Customer
	for i := 1; i <= 25; i++ {
		all = append(all, customer(fmt.Sprintf("%03d", i), ts(i)))
	}
	require.NoError(t, src.Insert(ctx, all...))

	t.Run("All Records In Bounded Chunks", func(t *testing.T) {
		seen := map[string]bool{}
		chunks := 0
		err := src.Scan(ctx, "", 10, func(batch []models.Customer) error {
			chunks++
			assert.LessOrEqual(t, len(batch), 10)
			for _, c := range batch {
				seen[c.ID] = true
			}
			return nil
		})
		require.NoError(t, err)
		assert.Len(t, seen, 25)
		assert.Equal(t, 3, chunks)
	})

	t.Run("Strictly After", func(t *testing.T) {
		var ids []string
		err := src.Scan(ctx, ts(20), 100, func(batch []models.Customer) error {
			for _, c := range batch {
				ids = append(ids, c.ID)
			}
			return nil
		})
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"021", "022", "023", "024", "025"}, ids)
	})

	t.Run("Callback Error Aborts", func(t *testing.T) {
		boom := errors.New("boom")
		calls := 0
		err := src.Scan(ctx, "", 5, func([]models.Customer) error {
			calls++
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, 1, calls)
	})
}

func TestSource_Verify(t *testing.T) {
	ctx := context.Background()
	db := setupSQLite(t)
	src := store.NewSource(db, "", nil)

	t.Run("Missing Table Is Empty", func(t *testing.T) {
		assert.NoError(t, src.Verify(ctx))

		calls := 0
		err := src.Scan(ctx, "", 10, func([]models.Customer) error {
			calls++
			return nil
		})
		require.NoError(t, err)
		assert.Zero(t, calls)
	})

	require.NoError(t, src.Migrate(ctx))
	assert.NoError(t, src.Verify(ctx))

	require.NoError(t, db.Exec("CREATE TABLE partial (id TEXT PRIMARY KEY, first_name TEXT)").Error)
	err := store.NewSource(db, "partial", nil).Verify(ctx)
	assert.ErrorIs(t, err, store.ErrSchemaMismatch)
	assert.ErrorContains(t, err, "created_at")
}

func TestMirror_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	mirror := store.NewMirror(setupSQLite(t), "")
	require.NoError(t, mirror.Migrate(ctx))
	assert.Equal(t, models.MirrorTable, mirror.Table())

	first := customer("1", ts(1))
	require.NoError(t, mirror.Upsert(ctx, first))

	second := first
	second.FirstName = "Replaced"
	require.NoError(t, mirror.Upsert(ctx, second))
	require.NoError(t, mirror.Upsert(ctx, second))

	n, err := mirror.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	got, err := mirror.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, second, got)
}

func TestMirror_InsertManySkipsExisting(t *testing.T) {
	ctx := context.Background()
	mirror := store.NewMirror(setupSQLite(t), "")
	require.NoError(t, mirror.Migrate(ctx))

	existing := customer("1", ts(1))
	existing.FirstName = "FromFeed"
	require.NoError(t, mirror.Upsert(ctx, existing))

	n, err := mirror.InsertMany(ctx, []models.Customer{customer("1", ts(1)), customer("2", ts(2))})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := mirror.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "FromFeed", got.FirstName)

	n, err = mirror.InsertMany(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMirror_HighWaterMark(t *testing.T) {
	ctx := context.Background()
	mirror := store.NewMirror(setupSQLite(t), "")
	require.NoError(t, mirror.Migrate(ctx))

	_, ok, err := mirror.HighWaterMark(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = mirror.InsertMany(ctx, []models.Customer{
		customer("a", ts(5)),
		customer("b", ts(9)),
		customer("c", ts(7)),
	})
	require.NoError(t, err)

	mark, ok, err := mirror.HighWaterMark(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, ts(9), mark)
}

func TestMirror_ScanAndDelete(t *testing.T) {
	ctx := context.Background()
	mirror := store.NewMirror(setupSQLite(t), "")
	require.NoError(t, mirror.Migrate(ctx))

	for i := 0; i < 7; i++ {
		require.NoError(t, mirror.Upsert(ctx, customer(fmt.Sprintf("%d", i), ts(i))))
	}

	var seen []string
	require.NoError(t, mirror.Scan(ctx, 3, func(batch []models.Customer) error {
		assert.LessOrEqual(t, len(batch), 3)
		for _, c := range batch {
			seen = append(seen, c.ID)
		}
		return nil
	}))
	assert.Len(t, seen, 7)

	n, err := mirror.Delete(ctx, []string{"1", "3", "missing"})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	count, err := mirror.Count(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 5, count)

	n, err = mirror.Delete(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMirror_Reset(t *testing.T) {
	ctx := context.Background()
	db := setupSQLite(t)
	mirror := store.NewMirror(db, "")

	// Missing table is simply created
	require.NoError(t, mirror.Reset(ctx))
	n, err := mirror.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, mirror.Upsert(ctx, customer("stale", ts(1))))
	require.NoError(t, mirror.Reset(ctx))

	n, err = mirror.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	missing, err := database.MissingColumns(ctx, db, mirror.Table(), models.Columns())
	require.NoError(t, err)
	assert.Empty(t, missing)
}

func TestMirror_UpsertError(t *testing.T) {
	db, mock := setupMockDB(t)
	mirror := store.NewMirror(db, "")

	mock.ExpectExec("INSERT INTO `customers_anonymised`").WillReturnError(errors.New("deadlock found"))

	err := mirror.Upsert(context.Background(), customer("1", ts(1)))
	assert.ErrorContains(t, err, "upsert 1 into customers_anonymised")
	assert.ErrorContains(t, err, "deadlock found")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMirror_HighWaterMarkError(t *testing.T) {
	db, mock := setupMockDB(t)
	mirror := store.NewMirror(db, "")

	mock.ExpectQuery("SELECT .* FROM `customers_anonymised`").WillReturnError(errors.New("connection reset"))

	_, ok, err := mirror.HighWaterMark(context.Background())
	assert.False(t, ok)
	assert.ErrorContains(t, err, "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}
