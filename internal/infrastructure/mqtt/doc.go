// Package mqtt connects the bridge to the MQTT broker.
//
// The broker carries three kinds of traffic for irclimate:
//   - outbound IR payloads to blaster topics (one per configured device)
//   - inbound climate commands and room sensor readings
//   - retained device state and the bridge online/offline status
//
// # Connection
//
// The initial connect is retried with exponential backoff
// (cenkalti/backoff) up to mqtt.reconnect.max_attempts. After that, paho's
// auto-reconnect takes over and tracked subscriptions are restored on every
// reconnect. A Last Will on irclimate/system/status marks the bridge
// offline if it disappears without a clean Close.
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT, log)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllClimateCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(topic, payload)
//	    })
//
// # Security Considerations
//
//   - Set mqtt.broker.tls for any broker reachable off-host
//   - Credentials can be injected with IRCLIMATE_MQTT_USERNAME/PASSWORD
package mqtt
