package generator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"anon-sync/core/logger"
	"anon-sync/core/metrics"
	"anon-sync/feature/customers/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TimeLayout is the ISO-8601 layout of generated createdAt values.
const TimeLayout = "2006-01-02T15:04:05.000Z"

// Inserter stores generated customers.
type Inserter interface {
	Insert(ctx context.Context, customers ...models.Customer) error
}

// Generator inserts random customers into the source collection.
type Generator struct {
	cfg     Config
	dst     Inserter
	log     *zap.Logger
	metrics *metrics.Metrics
	rng     *rand.Rand
	now     func() time.Time
}

// New creates a generator writing to dst. log and m may be nil.
func New(cfg Config, dst Inserter, log *zap.Logger, m *metrics.Metrics) *Generator {
	return &Generator{
		cfg:     cfg.withDefaults(),
		dst:     dst,
		log:     logger.Component(log, "generator"),
		metrics: m,
		rng:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		now:     time.Now,
	}
}

// Run inserts a batch every Interval until ctx is done. Failed inserts are
// logged and the loop continues.
func (g *Generator) Run(ctx context.Context) error {
	ticker := time.NewTicker(g.cfg.Interval)
	defer ticker.Stop()

	g.log.Info("Generating customers",
		zap.Int("min", g.cfg.Min),
		zap.Int("max", g.cfg.Max),
		zap.Duration("interval", g.cfg.Interval))

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := g.Tick(ctx); err != nil && ctx.Err() == nil {
				g.log.Error("Failed to insert customers", zap.String("operation", "insert"), zap.Error(err))
			}
		}
	}
}

// Tick inserts between Min and Max customers and returns how many it wrote.
func (g *Generator) Tick(ctx context.Context) (int, error) {
	n := g.cfg.Min + g.rng.IntN(g.cfg.Max-g.cfg.Min+1)

	batch := make([]models.Customer, n)
	for i := range batch {
		batch[i] = g.Customer()
	}
	if err := g.dst.Insert(ctx, batch...); err != nil {
		return 0, fmt.Errorf("insert %d generated customers: %w", n, err)
	}

	g.metrics.AddGenerated(n)
	g.log.Debug("Inserted customers", zap.Int("batch_size", n))
	return n, nil
}

// Customer returns one random customer created now.
func (g *Generator) Customer() models.Customer {
	first := g.pick(firstNames)
	last := g.pick(lastNames)

	return models.Customer{
		ID:        uuid.NewString(),
		FirstName: first,
		LastName:  last,
		Email:     strings.ToLower(first+"."+last) + fmt.Sprintf("%d@", g.rng.IntN(1000)) + g.pick(domains),
		Address: models.Address{
			Line1:    fmt.Sprintf("%d %s %s", 1+g.rng.IntN(9999), g.pick(streets), g.pick(streetSuffixes)),
			Line2:    fmt.Sprintf("Apt. %d", 1+g.rng.IntN(999)),
			Postcode: fmt.Sprintf("%05d", g.rng.IntN(100000)),
			City:     g.pick(cities),
			State:    g.pick(states),
			Country:  g.pick(countries),
		},
		CreatedAt: g.now().UTC().Format(TimeLayout),
	}
}

func (g *Generator) pick(from []string) string {
	return from[g.rng.IntN(len(from))]
}

var (
	firstNames = []string{
		"Alice", "Bruno", "Chloe", "Diego", "Emma", "Farah", "Gustav", "Hana",
		"Ivan", "Julia", "Kenji", "Lena", "Mateo", "Nora", "Omar", "Priya",
	}
	lastNames = []string{
		"Smith", "Garcia", "Müller", "Rossi", "Kowalski", "Nguyen", "Silva",
		"Johansson", "Okafor", "Tanaka", "Dubois", "Novak", "Haddad", "Brown",
	}
	domains        = []string{"example.com", "mail.test", "inbox.dev", "post.example"}
	streets        = []string{"Oak", "Maple", "Cedar", "Elm", "Harbor", "Mill", "Church", "Lake"}
	streetSuffixes = []string{"Street", "Avenue", "Road", "Lane", "Way", "Court"}
	cities         = []string{"Springfield", "Riverton", "Lakeside", "Fairview", "Georgetown", "Ashford"}
	states         = []string{"CA", "NY", "TX", "WA", "IL", "OR", "MA"}
	countries      = []string{"US", "CA", "GB", "DE", "FR", "ES", "NL"}
)
