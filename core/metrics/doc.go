// Package metrics defines the events emitted by the market operator and the
// winner determination solver, and the sinks that record them. Concrete
// sinks (Prometheus, InfluxDB) register themselves from infra/metrics and are
// selected by type name in the configuration; several sinks are combined
// with a MultiSink.
package metrics
