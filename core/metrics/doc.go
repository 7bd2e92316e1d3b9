// Package metrics exposes Prometheus instrumentation for the sync engine.
//
// Metrics are registered against an explicit prometheus.Registerer so the
// process can use the default registry while tests use isolated ones.
package metrics
