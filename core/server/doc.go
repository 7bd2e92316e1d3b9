// Package server runs the status HTTP server of the sync engine.
//
// # Endpoints
//
//   - GET /health runs the registered checks (database, change feed) and
//     answers 200 when all pass, 503 otherwise.
//   - GET /metrics serves the Prometheus registry, optionally protected by
//     the X-API-Key header.
//
// # Configuration
//
// The Config struct defines the listen port and the API key. An empty port
// disables the server.
//
// # Lifecycle
//
// Start binds the port before returning, so a port already in use fails
// startup instead of leaving the engine running without status endpoints.
// Errors after a successful bind are logged only.
package server
