package database

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
)

// TableColumns returns the lower-cased column names of table.
// A missing table yields no columns.
func TableColumns(ctx context.Context, db *gorm.DB, table string) ([]string, error) {
	if !db.WithContext(ctx).Migrator().HasTable(table) {
		return nil, nil
	}

	types, err := db.WithContext(ctx).Migrator().ColumnTypes(table)
	if err != nil {
		return nil, fmt.Errorf("failed to get columns for table %s: %w", table, err)
	}

	columns := make([]string, 0, len(types))
	for _, ct := range types {
		columns = append(columns, strings.ToLower(ct.Name()))
	}
	return columns, nil
}

// MissingColumns reports which of want are absent from table.
func MissingColumns(ctx context.Context, db *gorm.DB, table string, want []string) ([]string, error) {
	have, err := TableColumns(ctx, db, table)
	if err != nil {
		return nil, err
	}

	present := make(map[string]struct{}, len(have))
	for _, c := range have {
		present[c] = struct{}{}
	}

	var missing []string
	for _, c := range want {
		if _, ok := present[strings.ToLower(c)]; !ok {
			missing = append(missing, c)
		}
	}
	return missing, nil
}
