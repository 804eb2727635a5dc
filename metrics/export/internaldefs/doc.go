// Package internaldefs holds the metric name and bucket definitions shared by
// the exporter implementations.
//
// Counter and histogram definitions live here so the Prometheus and OTel
// exporters publish identical metric names and bucket boundaries. A change in
// this package affects all exporters at once.
//
// # What this package must NOT do
//
//   - Import sessionguard's root package indirectly through an exporter.
//   - Perform I/O.
package internaldefs
