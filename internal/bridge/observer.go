package bridge

import (
	"context"
	"encoding/json"

	"github.com/nerrad567/irclimate/internal/climate"
	"github.com/nerrad567/irclimate/internal/infrastructure/influxdb"
	"github.com/nerrad567/irclimate/internal/infrastructure/mqtt"
)

// stateChanged is registered on every device. It publishes retained state,
// persists the snapshot and history, and writes telemetry. Sensor-driven
// changes skip the snapshot and history, which sensors never affect.
func (b *Bridge) stateChanged(ctx context.Context, state climate.State) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	source := climate.SourceFromContext(ctx)

	b.publishState(state)
	b.writeTelemetry(state, source)

	if source == climate.SourceSensor {
		return
	}

	b.saveSnapshot(ctx, state)
	if b.history != nil {
		if err := b.history.RecordStateChange(ctx, state.DeviceID, state, source); err != nil {
			b.logger.Warn("recording state history failed", "device_id", state.DeviceID, "error", err)
		}
	}
}

func (b *Bridge) publishState(state climate.State) {
	payload, err := json.Marshal(state)
	if err != nil {
		b.logger.Error("marshalling state failed", "device_id", state.DeviceID, "error", err)
		return
	}

	// #nosec G115 -- QoS validated by config
	qos := byte(b.cfg.MQTT.QoS)
	if err := b.mqtt.Publish(mqtt.Topics{}.ClimateState(state.DeviceID), payload, qos, true); err != nil {
		b.logger.Warn("publishing state failed", "device_id", state.DeviceID, "error", err)
	}
}

func (b *Bridge) saveSnapshot(ctx context.Context, state climate.State) {
	if b.snapshots == nil {
		return
	}
	if err := b.snapshots.Save(ctx, state.DeviceID, climate.SnapshotOf(state)); err != nil {
		b.logger.Warn("saving snapshot failed", "device_id", state.DeviceID, "error", err)
	}
}

func (b *Bridge) writeTelemetry(state climate.State, source string) {
	if b.telemetry == nil {
		return
	}

	if source == climate.SourceSensor {
		if state.CurrentTemperature != nil {
			b.telemetry.WriteDeviceMetric(state.DeviceID, "temperature_c", *state.CurrentTemperature)
		}
		if state.CurrentHumidity != nil {
			b.telemetry.WriteDeviceMetric(state.DeviceID, "humidity_pct", *state.CurrentHumidity)
		}
		return
	}

	b.telemetry.WritePointWithTime(influxdb.MeasurementClimateState,
		map[string]string{
			"device_id": state.DeviceID,
			"source":    source,
		},
		map[string]interface{}{
			"hvac_mode":          string(state.HVACMode),
			"fan_mode":           string(state.FanMode),
			"preset_mode":        string(state.PresetMode),
			"target_temperature": state.TargetTemperature,
			"power_on":           state.PowerStatus == climate.PowerOn,
			"dimmer_on":          state.DimmerStatus == climate.DimmerOn,
		},
		state.UpdatedAt,
	)
}
