package climate

import (
	"context"
	"math"
	"strconv"
	"strings"
)

// Sensor states that carry no reading.
const (
	sensorUnknown     = "unknown"
	sensorUnavailable = "unavailable"
)

// UpdateCurrentTemperature records a temperature reading from the sensor
// feed. "unknown", "unavailable" and unparsable values are ignored.
// Never transmits.
func (d *Device) UpdateCurrentTemperature(ctx context.Context, raw string) {
	d.updateSensor(ctx, "temperature", raw, func(s *State, v *float64) {
		s.CurrentTemperature = v
	})
}

// UpdateCurrentHumidity records a humidity reading from the sensor feed.
func (d *Device) UpdateCurrentHumidity(ctx context.Context, raw string) {
	d.updateSensor(ctx, "humidity", raw, func(s *State, v *float64) {
		s.CurrentHumidity = v
	})
}

// updateSensor takes only the field lock, so a reading can land while a
// sequence is waiting on a settle delay.
func (d *Device) updateSensor(ctx context.Context, kind, raw string, set func(*State, *float64)) {
	value := strings.TrimSpace(raw)
	switch strings.ToLower(value) {
	case "", sensorUnknown, sensorUnavailable:
		return
	}

	v, err := strconv.ParseFloat(value, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		d.logger.Warn("ignoring unparsable sensor reading",
			"device_id", d.cfg.ID,
			"sensor", kind,
			"value", raw,
		)
		return
	}

	d.update(func(s *State) { set(s, &v) })
	d.notify(ctx)
}
