package bridge

import (
	"fmt"

	"github.com/nerrad567/irclimate/internal/climate"
	"github.com/nerrad567/irclimate/internal/infrastructure/config"
	"github.com/nerrad567/irclimate/internal/ircode"
	"github.com/nerrad567/irclimate/internal/transmit"
)

// Sensor kinds.
const (
	sensorTemperature = "temperature"
	sensorHumidity    = "humidity"
)

type managedDevice struct {
	device *climate.Device
	tx     *transmit.Transmitter
	queue  chan commandJob
}

type commandJob struct {
	cmd    climate.Command
	source string
}

type sensorRoute struct {
	deviceID string
	kind     string
}

type sensorReading struct {
	sensorID string
	value    string
}

// buildDevice wires a command table, transmitter and state machine for one
// configured device.
func (b *Bridge) buildDevice(dc config.DeviceConfig, metrics Metrics, observers []climate.Observer) (*managedDevice, error) {
	table, err := ircode.Load(dc.CommandTable)
	if err != nil {
		return nil, fmt.Errorf("loading command table: %w", err)
	}

	encoder, err := transmit.EncoderFor(dc.Encoding)
	if err != nil {
		return nil, err
	}

	tcfg := b.cfg.Transmitter
	opts := transmit.Options{
		DeviceID: dc.ID,
		Topic:    dc.IRTopic,
		// #nosec G115 -- QoS validated by config
		QoS:         byte(tcfg.QoS),
		SettleDelay: tcfg.SettleDelay,
		Encoder:     encoder,
		Breaker: transmit.BreakerSettings{
			MaxConsecutiveFailures: tcfg.Breaker.MaxConsecutiveFailures,
			OpenTimeout:            tcfg.Breaker.OpenTimeout,
			Interval:               tcfg.Breaker.Interval,
		},
		Logger: b.logger,
	}
	if metrics != nil {
		opts.Recorder = metrics
	}

	tx, err := transmit.New(b.mqtt, opts)
	if err != nil {
		return nil, err
	}

	dopts := climate.Options{
		Table:       table,
		Transmitter: tx,
		Observers:   observers,
		Logger:      b.logger,
	}
	if metrics != nil {
		dopts.Metrics = metrics
	}

	device, err := climate.New(climate.Config{
		ID:                 dc.ID,
		Name:               dc.Name,
		MinTemp:            dc.MinTemp,
		MaxTemp:            dc.MaxTemp,
		DefaultTemperature: dc.DefaultTemperature,
	}, dopts)
	if err != nil {
		return nil, err
	}

	b.logger.Info("device configured",
		"device_id", dc.ID,
		"ir_topic", dc.IRTopic,
		"encoding", encoder.Name(),
		"commands", table.Size(),
	)

	return &managedDevice{
		device: device,
		tx:     tx,
		queue:  make(chan commandJob, commandQueueSize),
	}, nil
}

func (md *managedDevice) status() DeviceStatus {
	return md.statusOf(climate.Result{State: md.device.State(), Err: md.device.LastError()})
}

func (md *managedDevice) statusOf(res climate.Result) DeviceStatus {
	st := DeviceStatus{
		State:   res.State,
		Breaker: md.tx.BreakerState(),
	}
	if res.Err != nil {
		st.LastError = res.Err.Error()
	}
	return st
}

func (b *Bridge) addSensorRoutes(dc config.DeviceConfig) {
	if dc.TemperatureSensor != "" {
		b.sensors[dc.TemperatureSensor] = append(b.sensors[dc.TemperatureSensor], sensorRoute{deviceID: dc.ID, kind: sensorTemperature})
	}
	if dc.HumiditySensor != "" {
		b.sensors[dc.HumiditySensor] = append(b.sensors[dc.HumiditySensor], sensorRoute{deviceID: dc.ID, kind: sensorHumidity})
	}
}

// enqueue hands a command to the device worker without blocking.
func (b *Bridge) enqueue(deviceID string, job commandJob) error {
	md, ok := b.devices[deviceID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	select {
	case md.queue <- job:
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrQueueFull, deviceID)
	}
}

// runDeviceWorker executes queued commands for one device in order.
func (b *Bridge) runDeviceWorker(md *managedDevice) {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			return
		case job := <-md.queue:
			ctx := climate.WithSource(b.ctx, job.source)
			if err := md.device.Execute(ctx, job.cmd); err != nil {
				b.logger.Warn("command rejected",
					"device_id", md.device.ID(),
					"command", job.cmd.Command,
					"error", err,
				)
			}
		}
	}
}

// runSensorWorker applies sensor readings to every linked device.
func (b *Bridge) runSensorWorker() {
	defer b.wg.Done()

	for {
		select {
		case <-b.ctx.Done():
			return
		case r := <-b.sensorCh:
			b.applySensorReading(r)
		}
	}
}

func (b *Bridge) applySensorReading(r sensorReading) {
	ctx := climate.WithSource(b.ctx, climate.SourceSensor)
	for _, route := range b.sensors[r.sensorID] {
		d := b.devices[route.deviceID].device
		switch route.kind {
		case sensorTemperature:
			d.UpdateCurrentTemperature(ctx, r.value)
		case sensorHumidity:
			d.UpdateCurrentHumidity(ctx, r.value)
		}
	}
}
