// Package telemetry exposes Homify's operational signals.
//
//   - Prometheus counters for status reads, commands and startup connections
//     (MetricsListener, RecordConnections), served on /metrics.
//   - OpenTelemetry tracing of HTTP requests, exported to stdout (InitTracer).
//   - InfluxDB history of device states and sensor readings (History).
//
// MetricsListener and History are device.Listeners; register them with
// device.Service.AddListener before serving.
package telemetry
