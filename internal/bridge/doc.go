// Package bridge connects climate devices to the MQTT bus.
//
// It builds one climate.Device per configured air conditioner, each with
// its own command table and transmitter, and then:
//
//   - restores persisted snapshots on Start
//   - routes JSON commands from irclimate/command/climate/{id} to the device
//   - feeds room sensor readings from irclimate/sensor/{sensor_id}
//   - publishes retained state to irclimate/state/climate/{id}
//   - records snapshots, state history and InfluxDB telemetry on every change
//   - publishes a periodic health report and prunes old history
//
// # Ordering
//
// Paho delivers messages on a single router goroutine, and a climate
// sequence publishes and waits for acknowledgements. Handlers therefore
// never run a sequence inline: commands are queued to a per-device worker
// (preserving arrival order per device) and sensor readings to a shared
// worker.
package bridge
