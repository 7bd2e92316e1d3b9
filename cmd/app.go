package cmd

import (
	"context"
	"errors"
	"fmt"

	"anon-sync/core/changefeed"
	"anon-sync/core/config"
	"anon-sync/core/database"
	"anon-sync/core/logger"
	"anon-sync/core/metrics"
	"anon-sync/core/server"
	"anon-sync/feature/customers/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// runtime holds the dependencies shared by every command.
type runtime struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *gorm.DB
	feed    changefeed.Feed
	reg     *prometheus.Registry
	metrics *metrics.Metrics
	source  *store.Source
	mirror  *store.Mirror
}

// bootstrap loads the configuration and connects the database and the
// change feed.
func bootstrap(ctx context.Context) (*runtime, error) {
	// 1. Load Configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 2. Initialize Logger
	l, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zap.ReplaceGlobals(l)

	// 3. Connect to Database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	l.Info("Connected to database",
		zap.String("driver", cfg.Database.Driver),
		zap.String("name", cfg.Database.Name))

	// 4. Connect to Change Feed
	feed, err := changefeed.New(ctx, cfg.Feed)
	if err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("failed to connect to change feed: %w", err)
	}
	l.Info("Connected to change feed", zap.String("driver", cfg.Feed.Driver))

	// 5. Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	return &runtime{
		cfg:     cfg,
		log:     l,
		db:      db,
		feed:    feed,
		reg:     reg,
		metrics: m,
		source:  store.NewSource(db, cfg.Sync.SourceTable, feed),
		mirror:  store.NewMirror(db, cfg.Sync.MirrorTable),
	}, nil
}

// statusServer builds the health and metrics server.
func (r *runtime) statusServer() *server.Server {
	return server.New(r.cfg.Server, r.reg, map[string]server.Check{
		"database": func(ctx context.Context) error { return database.Ping(ctx, r.db) },
		"feed":     func(ctx context.Context) error { return changefeed.Ping(ctx, r.feed) },
	}, r.log)
}

// shutdown closes the feed (unless already owned by someone else) and the
// database, flushing the logger last.
func (r *runtime) shutdown(closeFeed bool) error {
	var errs []error
	if closeFeed {
		if err := r.feed.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close change feed: %w", err))
		}
	}
	if err := database.Close(r.db); err != nil {
		errs = append(errs, fmt.Errorf("close database: %w", err))
	}
	_ = r.log.Sync()
	return errors.Join(errs...)
}
