// Package logger provides a structured logging facility based on Zap.
//
// It offers a configured logger instance that supports different environments
// (development vs production). Long-running components derive a child logger
// with Component so every entry carries the component that produced it.
// Status server handlers use WithRayID to tag entries with the request's RayID.
//
// # Configuration
//
// The package supports configuration for:
//   - Level: debug, info, warn, error
//   - Encoding: json (production) or console (development)
//
// # Usage
//
//	log, _ := logger.New(&logger.Config{Level: "info"})
//	log.Info("Sync started")
//
//	l := logger.Component(log, "scheduler")
//	l.Error("Upsert failed", zap.String("op", "flush"), zap.Error(err))
package logger
