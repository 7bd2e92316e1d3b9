// Package middleware groups the HTTP middleware used by the status server.
//
// # Components
//
//   - auth: API key validation protecting the metrics endpoint.
//   - rayid: assigns every request a RayID, stores it in the Fiber locals and
//     echoes it in the X-Ray-ID response header for log correlation.
package middleware
