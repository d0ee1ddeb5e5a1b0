// Package infra groups the adapters around the market core: the zerolog
// logger, Prometheus and InfluxDB sinks, the MQTT transport, the clearing
// journal and Sentry reporting. They depend only on interfaces declared
// under core.
package infra
