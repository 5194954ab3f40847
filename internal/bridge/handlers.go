package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/nerrad567/irclimate/internal/climate"
	"github.com/nerrad567/irclimate/internal/infrastructure/mqtt"
)

// handleCommand decodes a command and queues it for the device named by
// the last topic level. It never blocks the MQTT router.
func (b *Bridge) handleCommand(topic string, payload []byte) error {
	deviceID := mqtt.LastSegment(topic)

	cmd, err := climate.DecodeCommand(payload)
	if err != nil {
		return fmt.Errorf("device %s: %w", deviceID, err)
	}

	b.logger.Info("received command",
		"device_id", deviceID,
		"command", cmd.Command,
	)

	return b.enqueue(deviceID, commandJob{cmd: cmd, source: climate.SourceMQTT})
}

// handleSensor queues a reading for the sensor named by the last topic level.
func (b *Bridge) handleSensor(topic string, payload []byte) error {
	sensorID := mqtt.LastSegment(topic)
	if _, ok := b.sensors[sensorID]; !ok {
		return nil
	}

	value, err := parseSensorPayload(payload)
	if err != nil {
		return fmt.Errorf("sensor %s: %w", sensorID, err)
	}

	select {
	case b.sensorCh <- sensorReading{sensorID: sensorID, value: value}:
		return nil
	default:
		return fmt.Errorf("sensor %s: reading dropped, queue full", sensorID)
	}
}

// parseSensorPayload accepts a bare value ("21.5", "unavailable") or a JSON
// object with a "state" field ({"state": 21.5}).
func parseSensorPayload(payload []byte) (string, error) {
	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return strings.Trim(string(trimmed), `"`), nil
	}

	var msg struct {
		State any `json:"state"`
	}
	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()
	if err := dec.Decode(&msg); err != nil {
		return "", fmt.Errorf("decoding sensor payload: %w", err)
	}

	switch v := msg.State.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case json.Number:
		return v.String(), nil
	default:
		return "", fmt.Errorf("unsupported sensor state %v", v)
	}
}
