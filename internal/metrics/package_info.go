// Package metrics records OpenCensus measurements of cache activity and optionally exports them to
// Datadog, Stackdriver, or Prometheus.
package metrics
