package server

import (
	"context"
	"fmt"
	"net"
	"sort"
	"time"

	"anon-sync/core/logger"
	"anon-sync/core/middleware/auth"
	"anon-sync/core/middleware/rayid"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Check reports the health of one dependency.
type Check func(ctx context.Context) error

// Server is the status server exposing health and metrics.
type Server struct {
	cfg    Config
	app    *fiber.App
	log    *zap.Logger
	checks map[string]Check
}

// New builds the status server. gatherer backs /metrics and checks back
// /health; either may be empty.
func New(cfg Config, gatherer prometheus.Gatherer, checks map[string]Check, log *zap.Logger) *Server {
	s := &Server{
		cfg:    cfg,
		log:    logger.Component(log, "server"),
		checks: checks,
		app: fiber.New(fiber.Config{
			DisableStartupMessage: true,
		}),
	}

	s.app.Use(rayid.New())
	s.app.Get("/health", s.handleHealth)
	if gatherer != nil {
		s.app.Get("/metrics",
			auth.New(auth.Config{ApiKey: cfg.ApiKey}),
			adaptor.HTTPHandler(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}
	return s
}

// App exposes the underlying Fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Start binds the configured port and serves in the background. Failing to
// bind is returned so the caller can abort startup. It does nothing when the
// server is disabled.
func (s *Server) Start() error {
	if !s.cfg.Enabled() {
		s.log.Info("Status server disabled")
		return nil
	}

	ln, err := net.Listen("tcp", ":"+s.cfg.Port)
	if err != nil {
		return fmt.Errorf("failed to start status server on port %s: %w", s.cfg.Port, err)
	}

	s.log.Info("Starting status server", zap.String("port", s.cfg.Port))
	go func() {
		if err := s.app.Listener(ln); err != nil {
			s.log.Error("Status server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown stops the server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// handleHealth runs every registered check.
// It answers 200 when all checks pass and 503 otherwise.
func (s *Server) handleHealth(c *fiber.Ctx) error {
	l := logger.WithRayID(s.log, c)

	ctx, cancel := context.WithTimeout(c.UserContext(), 5*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status := fiber.StatusOK
	report := make(map[string]interface{}, len(names))
	for _, name := range names {
		if err := s.checks[name](ctx); err != nil {
			l.Warn("Health check failed", zap.String("check", name), zap.Error(err))
			report[name] = map[string]interface{}{"status": "error", "error": err.Error()}
			status = fiber.StatusServiceUnavailable
			continue
		}
		report[name] = map[string]interface{}{"status": "ok"}
	}

	overall := "ok"
	if status != fiber.StatusOK {
		overall = "degraded"
	}
	return c.Status(status).JSON(fiber.Map{"status": overall, "checks": report})
}
