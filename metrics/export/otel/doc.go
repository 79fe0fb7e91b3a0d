// Package otel binds authguard engine metrics to an OpenTelemetry meter.
//
// The caller owns the MeterProvider. Each counter becomes an
// Int64ObservableCounter; the hashing latency histogram is flattened into one
// Int64ObservableGauge per cumulative bucket plus a count gauge.
package otel
