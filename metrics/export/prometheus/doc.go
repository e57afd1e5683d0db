// Package prometheus publishes engine counters and latency histograms through
// client_golang.
//
// [Collector] reads [sessionjwt.Engine.MetricsSnapshot] on each scrape.
// [Exporter] wraps it in a private registry and serves it over HTTP. Counter
// names are prefixed sessionjwt_ and end in _total.
//
// # What this package must NOT do
//
//   - Register in the global Prometheus registry.
//   - Mutate engine state.
package prometheus
