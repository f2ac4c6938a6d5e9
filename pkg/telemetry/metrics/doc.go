// Package metrics provides Prometheus metrics collection for the state-tape
// daemon.
//
// # Overview
//
// The metrics package covers the daemon's own processing pipeline rather
// than any external request traffic:
//
//   - Idle metrics: sweep duration, records processed, errors, checkpoint lag
//   - State-tape metrics: spans/edges built, windows processed and skipped
//   - Vector-index metrics: search latency, hits returned, reloads, indexed spans
//   - Retrieval metrics: query latency and query count by trace tier
//   - JEPA metrics: models trained, models archived, load-gate denials
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	collector.Idle.RecordSweep(elapsed, stats.Processed, stats.Errors)
//	collector.VectorIndex.RecordSearch(elapsed, len(hits))
//	http.Handle(cfg.Telemetry.Metrics.Path, collector.Handler())
//
// # Prometheus Endpoint
//
// All metrics are exposed under the configured namespace (default
// "statetape") in standard Prometheus format, bound to a loopback address
// consistent with the no-remote-streaming design: this endpoint serves a
// local operator, not a remote collector.
package metrics
