// Package metrics exposes Prometheus collectors for comparison runs. The
// HTTP server serves them on /metrics; one-shot CLI runs can push them to a
// Pushgateway instead.
package metrics
