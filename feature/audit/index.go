package audit

import (
	"context"
	"fmt"

	"anon-sync/feature/anonymize"
	"anon-sync/feature/customers/models"

	"golang.org/x/sync/errgroup"
)

// SourceReader pages through the source collection.
type SourceReader interface {
	Scan(ctx context.Context, after string, chunk int, fn func([]models.Customer) error) error
}

// MirrorReader pages through the mirror collection.
type MirrorReader interface {
	Scan(ctx context.Context, chunk int, fn func([]models.Customer) error) error
}

// Index holds both collections keyed by ID. Source records are stored in
// their anonymized form so they can be compared with the mirror directly.
type Index struct {
	Expected map[string]models.Customer
	Mirror   map[string]models.Customer
}

// BuildIndex loads both collections concurrently.
func BuildIndex(ctx context.Context, source SourceReader, mirror MirrorReader, chunk int) (*Index, error) {
	if chunk <= 0 {
		chunk = 100
	}
	idx := &Index{
		Expected: make(map[string]models.Customer),
		Mirror:   make(map[string]models.Customer),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		err := source.Scan(gctx, "", chunk, func(batch []models.Customer) error {
			for _, c := range batch {
				idx.Expected[c.ID] = anonymize.Customer(c)
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("index source: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		err := mirror.Scan(gctx, chunk, func(batch []models.Customer) error {
			for _, c := range batch {
				idx.Mirror[c.ID] = c
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("index mirror: %w", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return idx, nil
}

// compareFields lists the columns where got differs from want.
func compareFields(want, got models.Customer) []string {
	var diff []string
	check := func(column, w, g string) {
		if w != g {
			diff = append(diff, column)
		}
	}

	check("first_name", want.FirstName, got.FirstName)
	check("last_name", want.LastName, got.LastName)
	check("email", want.Email, got.Email)
	check("address_line1", want.Address.Line1, got.Address.Line1)
	check("address_line2", want.Address.Line2, got.Address.Line2)
	check("address_postcode", want.Address.Postcode, got.Address.Postcode)
	check("address_city", want.Address.City, got.Address.City)
	check("address_state", want.Address.State, got.Address.State)
	check("address_country", want.Address.Country, got.Address.Country)
	check("created_at", want.CreatedAt, got.CreatedAt)
	return diff
}
