// Package api hosts the optional status listener that stays up while a
// harvest run is active. Routes:
//   - GET /healthz and /readyz for liveness probes.
//   - GET /metrics for Prometheus scraping.
package api
