package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// Measurement names.
const (
	MeasurementClimateState  = "climate_state"
	MeasurementDeviceMetrics = "device_metrics"
)

// WriteDeviceMetric writes one sensor reading as a device_metrics point.
//
// Example:
//
//	client.WriteDeviceMetric("living", "temperature_c", 21.5)
//	client.WriteDeviceMetric("living", "humidity_pct", 48)
func (c *Client) WriteDeviceMetric(deviceID string, measurement string, value float64) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(DeviceMetricPoint(deviceID, measurement, value, time.Now()))
}

// WritePointWithTime writes a point with explicit tags, fields and timestamp.
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.WritePoint(write.NewPoint(measurement, tags, fields, timestamp))
}

// DeviceMetricPoint builds the device_metrics point written by WriteDeviceMetric.
func DeviceMetricPoint(deviceID, measurement string, value float64, ts time.Time) *write.Point {
	return write.NewPoint(
		MeasurementDeviceMetrics,
		map[string]string{
			"device_id":   deviceID,
			"measurement": measurement,
		},
		map[string]interface{}{
			"value": value,
		},
		ts,
	)
}
