package store

import (
	"context"
	"errors"
	"fmt"

	"anon-sync/core/changefeed"
	"anon-sync/core/database"
	"anon-sync/feature/customers/models"

	"gorm.io/gorm"
)

// ErrSchemaMismatch is returned by Verify when the source table lacks columns.
var ErrSchemaMismatch = errors.New("source table schema mismatch")

// Publisher receives one change event per written source record.
type Publisher interface {
	Publish(ctx context.Context, ev changefeed.Event) error
}

// Source is the source customer collection. Writes go through it so that
// every insert or update is announced on the change feed.
type Source struct {
	db    *gorm.DB
	table string
	pub   Publisher
}

// NewSource creates a source store over table. pub may be nil for read-only use.
func NewSource(db *gorm.DB, table string, pub Publisher) *Source {
	if table == "" {
		table = models.SourceTable
	}
	return &Source{db: db, table: table, pub: pub}
}

// Table returns the backing table name.
func (s *Source) Table() string {
	return s.table
}

// Migrate creates or updates the source table.
func (s *Source) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).Table(s.table).AutoMigrate(&models.Customer{}); err != nil {
		return fmt.Errorf("migrate %s: %w", s.table, err)
	}
	return nil
}

// Verify checks that the source table carries every column the sync reads.
// A table that does not exist yet counts as an empty collection and passes.
func (s *Source) Verify(ctx context.Context) error {
	if !s.db.WithContext(ctx).Migrator().HasTable(s.table) {
		return nil
	}
	missing, err := database.MissingColumns(ctx, s.db, s.table, models.Columns())
	if err != nil {
		return err
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s is missing %v", ErrSchemaMismatch, s.table, missing)
	}
	return nil
}

// Insert writes customers and publishes an insert event for each of them.
// Rows are committed before publishing; a publish failure is returned but
// leaves the committed rows without events.
func (s *Source) Insert(ctx context.Context, customers ...models.Customer) error {
	if len(customers) == 0 {
		return nil
	}
	if err := s.db.WithContext(ctx).Table(s.table).CreateInBatches(&customers, 100).Error; err != nil {
		return fmt.Errorf("insert into %s: %w", s.table, err)
	}
	for _, c := range customers {
		if err := s.publish(ctx, changefeed.OpInsert, c); err != nil {
			return err
		}
	}
	return nil
}

// Update replaces the stored customer with c and publishes the full new state.
func (s *Source) Update(ctx context.Context, c models.Customer) error {
	if err := s.db.WithContext(ctx).Table(s.table).Save(&c).Error; err != nil {
		return fmt.Errorf("update %s in %s: %w", c.ID, s.table, err)
	}
	return s.publish(ctx, changefeed.OpUpdate, c)
}

// Count returns the number of source records.
func (s *Source) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.WithContext(ctx).Table(s.table).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", s.table, err)
	}
	return n, nil
}

// Scan pages through source records in chunks of at most chunk rows and
// calls fn for each chunk. When after is non-empty only records created
// strictly after it are visited. A missing table is scanned as empty.
// Only one chunk is held in memory at a time;
// the slice passed to fn is reused between calls.
func (s *Source) Scan(ctx context.Context, after string, chunk int, fn func([]models.Customer) error) error {
	return scan(ctx, s.db, s.table, after, chunk, fn)
}

func scan(ctx context.Context, db *gorm.DB, table, after string, chunk int, fn func([]models.Customer) error) error {
	if chunk <= 0 {
		chunk = 100
	}
	if !db.WithContext(ctx).Migrator().HasTable(table) {
		return nil
	}

	q := db.WithContext(ctx).Table(table)
	if after != "" {
		q = q.Where("created_at > ?", after)
	}

	var batch []models.Customer
	res := q.FindInBatches(&batch, chunk, func(tx *gorm.DB, _ int) error {
		return fn(batch)
	})
	if res.Error != nil {
		return fmt.Errorf("scan %s: %w", table, res.Error)
	}
	return nil
}

func (s *Source) publish(ctx context.Context, op changefeed.Operation, c models.Customer) error {
	if s.pub == nil {
		return nil
	}
	ev, err := changefeed.NewEvent(op, c.ID, c)
	if err != nil {
		return err
	}
	if err := s.pub.Publish(ctx, ev); err != nil {
		return fmt.Errorf("publish %s of %s: %w", op, c.ID, err)
	}
	return nil
}
