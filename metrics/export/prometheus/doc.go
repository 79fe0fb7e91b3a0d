// Package prometheus exports authguard engine metrics as a Prometheus
// collector.
//
// Register an [Exporter] with your own registry, or mount [Exporter.Handler]
// which serves it from a private one. Counters are named authguard_*_total;
// the hashing latency histogram is authguard_hash_latency_seconds.
package prometheus
