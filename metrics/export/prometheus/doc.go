// Package prometheus renders sessionguard metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] accepts a [sessionguard.Manager] and exposes an
// [net/http.Handler] that renders all counters and histograms. Counter names
// are prefixed sessionguard_*_total; the single histogram is
// sessionguard_rotate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry. Callers mount the
//     Handler.
//   - Mutate manager state.
package prometheus
