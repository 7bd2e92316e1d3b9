package store

import (
	"context"
	"fmt"

	"anon-sync/feature/customers/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Mirror is the anonymized copy of the source collection.
type Mirror struct {
	db    *gorm.DB
	table string
}

// NewMirror creates a mirror store over table.
func NewMirror(db *gorm.DB, table string) *Mirror {
	if table == "" {
		table = models.MirrorTable
	}
	return &Mirror{db: db, table: table}
}

// Table returns the backing table name.
func (m *Mirror) Table() string {
	return m.table
}

// Migrate creates the mirror table if it does not exist yet.
func (m *Mirror) Migrate(ctx context.Context) error {
	if err := m.db.WithContext(ctx).Table(m.table).AutoMigrate(&models.Customer{}); err != nil {
		return fmt.Errorf("migrate %s: %w", m.table, err)
	}
	return nil
}

// Upsert inserts c, or replaces the record with the same ID.
func (m *Mirror) Upsert(ctx context.Context, c models.Customer) error {
	err := m.db.WithContext(ctx).Table(m.table).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&c).Error
	if err != nil {
		return fmt.Errorf("upsert %s into %s: %w", c.ID, m.table, err)
	}
	return nil
}

// InsertMany inserts customers and returns how many rows were written.
// IDs already present are left untouched instead of failing the batch.
func (m *Mirror) InsertMany(ctx context.Context, customers []models.Customer) (int, error) {
	if len(customers) == 0 {
		return 0, nil
	}
	res := m.db.WithContext(ctx).Table(m.table).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(&customers, 100)
	if res.Error != nil {
		return 0, fmt.Errorf("insert %d records into %s: %w", len(customers), m.table, res.Error)
	}
	return int(res.RowsAffected), nil
}

// HighWaterMark returns the largest createdAt in the mirror.
// ok is false when the mirror is empty.
func (m *Mirror) HighWaterMark(ctx context.Context) (mark string, ok bool, err error) {
	var rows []models.Customer
	err = m.db.WithContext(ctx).Table(m.table).
		Select("created_at").
		Order("created_at DESC").
		Limit(1).
		Find(&rows).Error
	if err != nil {
		return "", false, fmt.Errorf("read high-water mark of %s: %w", m.table, err)
	}
	if len(rows) == 0 {
		return "", false, nil
	}
	return rows[0].CreatedAt, true, nil
}

// Get returns the mirrored record with the given ID.
func (m *Mirror) Get(ctx context.Context, id string) (models.Customer, error) {
	var c models.Customer
	if err := m.db.WithContext(ctx).Table(m.table).Where("id = ?", id).Take(&c).Error; err != nil {
		return models.Customer{}, fmt.Errorf("get %s from %s: %w", id, m.table, err)
	}
	return c, nil
}

// Scan pages through every mirrored record in chunks of at most chunk rows.
func (m *Mirror) Scan(ctx context.Context, chunk int, fn func([]models.Customer) error) error {
	return scan(ctx, m.db, m.table, "", chunk, fn)
}

// Delete removes the records with the given IDs and returns how many were removed.
func (m *Mirror) Delete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := m.db.WithContext(ctx).Table(m.table).Where("id IN ?", ids).Delete(&models.Customer{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete %d records from %s: %w", len(ids), m.table, res.Error)
	}
	return int(res.RowsAffected), nil
}

// Count returns the number of mirrored records.
func (m *Mirror) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := m.db.WithContext(ctx).Table(m.table).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("count %s: %w", m.table, err)
	}
	return n, nil
}

// Reset drops the mirror table when it holds any record and recreates it empty.
func (m *Mirror) Reset(ctx context.Context) error {
	migrator := m.db.WithContext(ctx).Migrator()
	if migrator.HasTable(m.table) {
		n, err := m.Count(ctx)
		if err != nil {
			return err
		}
		if n > 0 {
			if err := migrator.DropTable(m.table); err != nil {
				return fmt.Errorf("drop %s: %w", m.table, err)
			}
		}
	}
	return m.Migrate(ctx)
}
