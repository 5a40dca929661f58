// Package otel binds authclient metrics to OpenTelemetry observable
// instruments.
//
// [NewOTelExporter] registers an Int64ObservableCounter per counter, bucket
// gauges distinguished by an "le" attribute for the aggregate latency
// histogram, and per-operation call, failure and latency instruments carrying
// an "operation" attribute. One callback reads
// [authclient.Manager.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Own the OTel MeterProvider. Callers supply the Meter.
//   - Mutate manager state.
package otel
