// Package metrics exposes bridge telemetry in Prometheus format.
//
// A Metrics value owns a private registry so tests and multiple bridges in
// one process never collide on the global default registerer. It satisfies
// the recorder interfaces of the transmit and climate packages and observes
// device state to keep per-device gauges current.
package metrics
