// Package influxdb records climate telemetry in InfluxDB v2.
//
// It wraps the official influxdb-client-go v2 non-blocking write API. Each
// device state change becomes a climate_state point, and each sensor reading
// a device_metrics point, so setpoints can be charted against room readings.
//
// # Usage
//
//	client, err := influxdb.Connect(ctx, cfg.InfluxDB,
//	    influxdb.WithDefaultTag("bridge_id", cfg.Bridge.ID))
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // telemetry off
//	}
//	defer client.Close()
//
//	client.WriteDeviceMetric("living", "temperature_c", 21.5)
//
// # Thread Safety
//
// All methods are safe for concurrent use. Writes are batched according to
// batch_size and flush_interval; write failures are reported through the
// SetOnError callback rather than returned, and keep HealthCheck failing
// for a minute afterwards.
package influxdb
