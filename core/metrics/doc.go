// Package metrics defines the sinks that observe dispatch decisions.
// Sinks like the Prometheus and InfluxDB implementations in infra/metrics
// register themselves by name; NewMetricsSink builds one sink or a
// MultiSink from configuration.
package metrics
