// Package transmit pushes IR payloads onto the MQTT transport for a single
// blaster topic.
//
// Every Transmit call encodes the payload (raw or envelope framing), publishes
// it through a circuit breaker, and then waits a fixed settle delay so the
// physical receiver has time to process the signal before the next one.
// Delivery is fire-and-forget: there is no retry and no acknowledgement.
package transmit
