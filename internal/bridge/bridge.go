package bridge

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/nerrad567/irclimate/internal/climate"
	"github.com/nerrad567/irclimate/internal/infrastructure/config"
	"github.com/nerrad567/irclimate/internal/infrastructure/mqtt"
	"github.com/nerrad567/irclimate/internal/transmit"
)

const (
	// commandQueueSize bounds pending commands per device.
	commandQueueSize = 16

	// sensorQueueSize bounds pending sensor readings across all devices.
	sensorQueueSize = 64

	// persistTimeout bounds snapshot, history and publish calls made by the
	// state observer.
	persistTimeout = 5 * time.Second

	subscribeQoS = 1
)

// MQTTClient is the broker surface used by the bridge. *mqtt.Client satisfies it.
type MQTTClient interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	Unsubscribe(topic string) error
	IsConnected() bool
}

// TelemetryWriter receives time-series points. *influxdb.Client satisfies it.
type TelemetryWriter interface {
	WriteDeviceMetric(deviceID string, measurement string, value float64)
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time)
}

// Metrics is the combined recorder the bridge hands to transmitters and
// devices. *metrics.Metrics satisfies it.
type Metrics interface {
	transmit.Recorder
	climate.Metrics
	climate.Observer
}

// Logger is the logging surface used by the bridge and handed down to
// devices and transmitters. *logging.Logger satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options wires a bridge to its collaborators. Everything except Config and
// MQTT is optional.
type Options struct {
	Config *config.Config
	MQTT   MQTTClient

	Snapshots climate.SnapshotRepository
	History   climate.HistoryRepository
	Telemetry TelemetryWriter
	Metrics   Metrics

	// Observers receive every device state change, e.g. the websocket hub.
	Observers []climate.Observer

	Logger  Logger
	Version string
}

// Bridge owns every configured device and its MQTT plumbing.
//
// Thread Safety: All exported methods are safe for concurrent use.
type Bridge struct {
	cfg       *config.Config
	mqtt      MQTTClient
	snapshots climate.SnapshotRepository
	history   climate.HistoryRepository
	telemetry TelemetryWriter
	logger    Logger
	health    *HealthReporter

	devices  map[string]*managedDevice
	order    []string
	sensors  map[string][]sensorRoute
	sensorCh chan sensorReading

	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// New loads every device's command table and builds its transmitter and
// state machine. It does not touch the broker; call Start for that.
//
// Returns:
//   - *Bridge: ready to Start
//   - error: if a command table fails to load or a device is misconfigured
func New(opts Options) (*Bridge, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if opts.MQTT == nil {
		return nil, fmt.Errorf("MQTT client is required")
	}

	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	b := &Bridge{
		cfg:       opts.Config,
		mqtt:      opts.MQTT,
		snapshots: opts.Snapshots,
		history:   opts.History,
		telemetry: opts.Telemetry,
		logger:    logger,
		devices:   make(map[string]*managedDevice, len(opts.Config.Devices)),
		sensors:   make(map[string][]sensorRoute),
		sensorCh:  make(chan sensorReading, sensorQueueSize),
		ctx:       ctx,
		cancel:    cancel,
	}

	observers := []climate.Observer{climate.ObserverFunc(b.stateChanged)}
	if opts.Metrics != nil {
		observers = append(observers, opts.Metrics)
	}
	observers = append(observers, opts.Observers...)

	for _, dc := range opts.Config.Devices {
		md, err := b.buildDevice(dc, opts.Metrics, observers)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("device %s: %w", dc.ID, err)
		}
		b.devices[dc.ID] = md
		b.order = append(b.order, dc.ID)
		b.addSensorRoutes(dc)
	}

	b.health = NewHealthReporter(HealthReporterConfig{
		BridgeID:  opts.Config.Bridge.ID,
		Version:   opts.Version,
		Interval:  opts.Config.Bridge.HealthInterval,
		Publisher: opts.MQTT,
		Breakers:  b.breakerStates,
		Logger:    logger,
	})

	return b, nil
}

// Start restores snapshots, publishes initial state, starts the workers
// and subscribes to command and sensor topics.
func (b *Bridge) Start(ctx context.Context) error {
	for _, id := range b.order {
		b.restore(ctx, b.devices[id])
	}

	for _, id := range b.order {
		md := b.devices[id]
		b.wg.Add(1)
		go b.runDeviceWorker(md)
	}
	b.wg.Add(1)
	go b.runSensorWorker()

	commandTopic := mqtt.Topics{}.AllClimateCommands()
	if err := b.mqtt.Subscribe(commandTopic, subscribeQoS, b.handleCommand); err != nil {
		return fmt.Errorf("subscribe to commands: %w", err)
	}
	b.logger.Info("subscribed to commands", "topic", commandTopic)

	for sensorID := range b.sensors {
		topic := mqtt.Topics{}.Sensor(sensorID)
		if err := b.mqtt.Subscribe(topic, subscribeQoS, b.handleSensor); err != nil {
			return fmt.Errorf("subscribe to sensor %s: %w", sensorID, err)
		}
		b.logger.Debug("subscribed to sensor", "topic", topic)
	}

	if b.history != nil && b.cfg.Bridge.HistoryRetention > 0 && b.cfg.Bridge.HistoryPruneInterval > 0 {
		b.wg.Add(1)
		go b.runPruneLoop()
	}

	b.health.SetDeviceCount(len(b.order))
	b.health.Start(b.ctx)

	b.logger.Info("bridge started",
		"bridge_id", b.cfg.Bridge.ID,
		"devices", len(b.order),
		"sensors", len(b.sensors),
	)
	return nil
}

// Stop unsubscribes, drains in-flight sequences, saves a final snapshot
// for every device and stops health reporting. Queued but unstarted
// commands are dropped. Safe to call more than once.
func (b *Bridge) Stop(ctx context.Context) {
	b.stopOnce.Do(func() {
		if b.mqtt.IsConnected() {
			//nolint:errcheck // best effort during shutdown
			b.mqtt.Unsubscribe(mqtt.Topics{}.AllClimateCommands())
			for sensorID := range b.sensors {
				//nolint:errcheck // best effort during shutdown
				b.mqtt.Unsubscribe(mqtt.Topics{}.Sensor(sensorID))
			}
		}

		b.cancel()
		b.wg.Wait()

		for _, id := range b.order {
			b.saveSnapshot(ctx, b.devices[id].device.State())
		}

		b.health.Stop()
		b.logger.Info("bridge stopped")
	})
}

// Devices returns every device in configuration order.
func (b *Bridge) Devices() []*climate.Device {
	out := make([]*climate.Device, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.devices[id].device)
	}
	return out
}

// Device returns one device by ID.
func (b *Bridge) Device(id string) (*climate.Device, bool) {
	md, ok := b.devices[id]
	if !ok {
		return nil, false
	}
	return md.device, true
}

// DeviceStatus is the externally visible view of one device.
type DeviceStatus struct {
	State     climate.State `json:"state"`
	LastError string        `json:"last_error,omitempty"`
	Breaker   string        `json:"breaker"`
}

// Statuses returns every device's status in configuration order.
func (b *Bridge) Statuses() []DeviceStatus {
	out := make([]DeviceStatus, 0, len(b.order))
	for _, id := range b.order {
		out = append(out, b.devices[id].status())
	}
	return out
}

// Status returns one device's status.
func (b *Bridge) Status(id string) (DeviceStatus, bool) {
	md, ok := b.devices[id]
	if !ok {
		return DeviceStatus{}, false
	}
	return md.status(), true
}

// Execute runs a command synchronously on the caller's goroutine. The
// returned status is this command's own outcome: LastError is set when its
// sequence stopped early. Validation failures are returned as errors.
func (b *Bridge) Execute(ctx context.Context, deviceID string, cmd climate.Command) (DeviceStatus, error) {
	md, ok := b.devices[deviceID]
	if !ok {
		return DeviceStatus{}, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	res, err := md.device.Apply(ctx, cmd)
	if err != nil {
		return DeviceStatus{}, err
	}
	return md.statusOf(res), nil
}

// History returns recorded state changes for a device, newest first.
func (b *Bridge) History(ctx context.Context, deviceID string, limit int) ([]climate.HistoryEntry, error) {
	if _, ok := b.devices[deviceID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownDevice, deviceID)
	}
	if b.history == nil {
		return []climate.HistoryEntry{}, nil
	}
	return b.history.GetHistory(ctx, deviceID, limit)
}

// BreakerStates reports each device's transport breaker state.
func (b *Bridge) BreakerStates() map[string]string {
	return b.breakerStates()
}

func (b *Bridge) breakerStates() map[string]string {
	out := make(map[string]string, len(b.devices))
	for id, md := range b.devices {
		out[id] = md.tx.BreakerState()
	}
	return out
}

// restore loads and applies the persisted snapshot, then publishes the
// resulting state without transmitting.
func (b *Bridge) restore(ctx context.Context, md *managedDevice) {
	d := md.device
	if b.snapshots != nil {
		snap, err := b.snapshots.Load(ctx, d.ID())
		switch {
		case err != nil:
			b.logger.Warn("loading snapshot failed, using defaults", "device_id", d.ID(), "error", err)
		case snap.Empty():
			b.logger.Debug("no snapshot stored", "device_id", d.ID())
		default:
			d.Restore(snap)
			b.logger.Info("restored device state", "device_id", d.ID())
			if b.history != nil {
				if err := b.history.RecordStateChange(ctx, d.ID(), d.State(), climate.SourceRestore); err != nil {
					b.logger.Warn("recording state history failed", "device_id", d.ID(), "error", err)
				}
			}
		}
	}

	b.publishState(d.State())
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
