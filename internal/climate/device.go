package climate

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/nerrad567/irclimate/internal/ircode"
)

// Table resolves IR payloads. *ircode.Table satisfies it.
type Table interface {
	Lookup(mode, fan string, temperature int) (ircode.Payload, error)
	LookupNamed(name string) (ircode.Payload, error)
}

// Transmitter sends one payload and blocks for the settle delay.
// *transmit.Transmitter satisfies it.
type Transmitter interface {
	Transmit(ctx context.Context, payload ircode.Payload) error
}

// Observer is notified with the applied state at the end of every operation
// and after sensor updates. Implementations must be safe for concurrent use
// and must not call state-changing methods on the device.
type Observer interface {
	StateChanged(ctx context.Context, state State)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, state State)

// StateChanged implements Observer.
func (f ObserverFunc) StateChanged(ctx context.Context, state State) { f(ctx, state) }

// Metrics receives per-operation observations.
type Metrics interface {
	ObserveSequence(deviceID, operation string, elapsed time.Duration, err error)
}

// Logger is the logging surface used by the device.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Options wires a device to its collaborators.
type Options struct {
	Table       Table
	Transmitter Transmitter
	Observers   []Observer
	Metrics     Metrics
	Logger      Logger
}

// Device owns the state of one air conditioner.
//
// Thread Safety:
//   - opMu serialises every state-changing operation for its whole sequence.
//   - fieldMu guards state fields for short reads and writes, so State and
//     sensor updates never wait on a settle delay.
//   - notifyMu orders notifications: each reads the state and delivers it
//     before the next one starts, so the last delivered state is current.
type Device struct {
	cfg       Config
	table     Table
	tx        Transmitter
	observers []Observer
	metrics   Metrics
	logger    Logger
	now       func() time.Time

	opMu     sync.Mutex
	notifyMu sync.Mutex

	fieldMu sync.RWMutex
	state   State
	lastErr error
}

// New creates a device with default state (off, auto fan, no preset,
// default temperature). Call Restore before serving commands to apply a
// persisted snapshot.
//
// Returns:
//   - *Device: the device
//   - error: ErrInvalidConfig if bounds or collaborators are unusable
func New(cfg Config, opts Options) (*Device, error) {
	if cfg.ID == "" {
		return nil, fmt.Errorf("%w: id is required", ErrInvalidConfig)
	}
	if cfg.MinTemp >= cfg.MaxTemp {
		return nil, fmt.Errorf("%w: min_temp %d must be below max_temp %d", ErrInvalidConfig, cfg.MinTemp, cfg.MaxTemp)
	}
	if cfg.DefaultTemperature < cfg.MinTemp || cfg.DefaultTemperature > cfg.MaxTemp {
		return nil, fmt.Errorf("%w: default temperature %d outside [%d, %d]", ErrInvalidConfig, cfg.DefaultTemperature, cfg.MinTemp, cfg.MaxTemp)
	}
	if opts.Table == nil || opts.Transmitter == nil {
		return nil, fmt.Errorf("%w: table and transmitter are required", ErrInvalidConfig)
	}
	if cfg.Name == "" {
		cfg.Name = cfg.ID
	}

	logger := opts.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	d := &Device{
		cfg:       cfg,
		table:     opts.Table,
		tx:        opts.Transmitter,
		observers: opts.Observers,
		metrics:   opts.Metrics,
		logger:    logger,
		now:       time.Now,
	}
	d.state = d.defaultState()

	return d, nil
}

func (d *Device) defaultState() State {
	return State{
		DeviceID:          d.cfg.ID,
		Name:              d.cfg.Name,
		HVACMode:          HVACOff,
		FanMode:           FanAuto,
		PresetMode:        PresetNone,
		TargetTemperature: d.cfg.DefaultTemperature,
		PowerStatus:       PowerOff,
		DimmerStatus:      DimmerOff,
		MinTemp:           d.cfg.MinTemp,
		MaxTemp:           d.cfg.MaxTemp,
		UpdatedAt:         d.now(),
	}
}

// ID returns the device identifier.
func (d *Device) ID() string { return d.cfg.ID }

// Config returns the static device settings.
func (d *Device) Config() Config { return d.cfg }

// State returns a copy of the current state.
func (d *Device) State() State {
	d.fieldMu.RLock()
	defer d.fieldMu.RUnlock()
	return d.state
}

// Snapshot returns the persisted subset of the current state.
func (d *Device) Snapshot() Snapshot {
	return SnapshotOf(d.State())
}

// LastError returns the error that ended the most recent operation, or nil.
func (d *Device) LastError() error {
	d.fieldMu.RLock()
	defer d.fieldMu.RUnlock()
	return d.lastErr
}

// SetTargetTemperature stores a new setpoint and, if mode is given, switches
// to it. A nil temperature is a no-op. Out-of-range values are rejected
// without changing any field.
func (d *Device) SetTargetTemperature(ctx context.Context, temperature *float64, mode *HVACMode) {
	d.run(ctx, "set_temperature", func(ctx context.Context) error {
		return d.setTargetTemperature(ctx, temperature, mode)
	})
}

// SetHVACMode switches mode and always runs the apply sequence.
func (d *Device) SetHVACMode(ctx context.Context, mode HVACMode) {
	d.run(ctx, "set_hvac_mode", func(ctx context.Context) error {
		return d.setHVACMode(ctx, mode)
	})
}

// SetFanMode changes fan speed; transmits only while the unit is on.
func (d *Device) SetFanMode(ctx context.Context, fan FanMode) {
	d.run(ctx, "set_fan_mode", func(ctx context.Context) error {
		return d.setFanMode(ctx, fan)
	})
}

// SetPresetMode changes preset; transmits only while the unit is on.
func (d *Device) SetPresetMode(ctx context.Context, preset PresetMode) {
	d.run(ctx, "set_preset_mode", func(ctx context.Context) error {
		return d.setPresetMode(ctx, preset)
	})
}

// TurnOn restores the last non-off mode, or cool if there is none.
func (d *Device) TurnOn(ctx context.Context) {
	d.run(ctx, "turn_on", d.turnOn)
}

// TurnOff switches to off.
func (d *Device) TurnOff(ctx context.Context) {
	d.run(ctx, "turn_off", func(ctx context.Context) error {
		return d.setHVACMode(ctx, HVACOff)
	})
}

// Result is the outcome of one operation, captured before the operation
// lock is released.
type Result struct {
	State State
	Err   error
}

// run holds the operation lock for fn plus observer notification. The
// sequence cannot be cancelled once started.
func (d *Device) run(ctx context.Context, operation string, fn func(context.Context) error) Result {
	d.opMu.Lock()
	defer d.opMu.Unlock()

	ctx = context.WithoutCancel(ctx)
	start := d.now()

	err := fn(ctx)

	d.fieldMu.Lock()
	d.lastErr = err
	d.fieldMu.Unlock()

	if err != nil {
		d.logger.Error("climate operation failed",
			"device_id", d.cfg.ID,
			"operation", operation,
			"reason", ErrorReason(err),
			"error", err,
		)
	} else {
		d.logger.Debug("climate operation applied",
			"device_id", d.cfg.ID,
			"operation", operation,
		)
	}

	if d.metrics != nil {
		d.metrics.ObserveSequence(d.cfg.ID, operation, d.now().Sub(start), err)
	}

	return Result{State: d.notify(ctx), Err: err}
}

func (d *Device) setTargetTemperature(ctx context.Context, temperature *float64, mode *HVACMode) error {
	if temperature == nil {
		return nil
	}

	t := *temperature
	if math.IsNaN(t) || t < float64(d.cfg.MinTemp) || t > float64(d.cfg.MaxTemp) {
		return fmt.Errorf("%w: %v not in [%d, %d]", ErrOutOfRange, t, d.cfg.MinTemp, d.cfg.MaxTemp)
	}

	rounded := int(math.RoundToEven(t))
	d.update(func(s *State) { s.TargetTemperature = rounded })

	if mode != nil {
		return d.setHVACMode(ctx, *mode)
	}
	return d.applyIfActive(ctx)
}

func (d *Device) setHVACMode(ctx context.Context, mode HVACMode) error {
	d.update(func(s *State) {
		if mode != HVACOff {
			s.LastOnOperation = mode
		}
		s.HVACMode = mode
	})
	return d.apply(ctx)
}

func (d *Device) setFanMode(ctx context.Context, fan FanMode) error {
	d.update(func(s *State) { s.FanMode = fan })
	return d.applyIfActive(ctx)
}

func (d *Device) setPresetMode(ctx context.Context, preset PresetMode) error {
	d.update(func(s *State) { s.PresetMode = preset })
	return d.applyIfActive(ctx)
}

func (d *Device) turnOn(ctx context.Context) error {
	mode := d.State().LastOnOperation
	if mode == "" {
		mode = HVACCool
	}
	return d.setHVACMode(ctx, mode)
}

func (d *Device) applyIfActive(ctx context.Context) error {
	if d.State().HVACMode == HVACOff {
		return nil
	}
	return d.apply(ctx)
}

// apply runs the ordered transmission pipeline. The first failure aborts
// the remaining steps; fields updated by earlier steps stay as applied.
func (d *Device) apply(ctx context.Context) error {
	st := d.State()
	mode := st.HVACMode
	dimmer := st.DimmerStatus

	if st.PowerStatus == PowerOff && mode != HVACOff {
		if err := d.sendNamed(ctx, ircode.NameOn); err != nil {
			return err
		}
		d.update(func(s *State) { s.PowerStatus = PowerOn })
	}

	stayingInSleep := mode != HVACOff && st.PresetMode == PresetSleep
	if dimmer == DimmerOn && !stayingInSleep {
		if err := d.sendNamed(ctx, ircode.NameDimmer); err != nil {
			return err
		}
		dimmer = DimmerOff
		d.update(func(s *State) { s.DimmerStatus = DimmerOff })
	}

	if mode == HVACOff {
		if err := d.sendNamed(ctx, ircode.NameOff); err != nil {
			return err
		}
		d.update(func(s *State) { s.PowerStatus = PowerOff })
		return nil
	}

	if st.PresetMode == PresetBoost {
		var (
			target int
			name   string
		)
		switch mode {
		case HVACCool:
			target, name = d.cfg.MinTemp, ircode.NameTurboCool
		case HVACHeat:
			target, name = d.cfg.MaxTemp, ircode.NameTurboHeat
		default:
			return fmt.Errorf("%w: boost in mode %q", ErrInvalidPreset, mode)
		}
		d.update(func(s *State) { s.TargetTemperature = target })
		if err := d.sendNamed(ctx, name); err != nil {
			return err
		}
	} else {
		payload, err := d.table.Lookup(string(mode), string(st.FanMode), st.TargetTemperature)
		if err != nil {
			return err
		}
		if err := d.tx.Transmit(ctx, payload); err != nil {
			return err
		}
	}

	if st.PresetMode == PresetSleep && dimmer == DimmerOff {
		if err := d.sendNamed(ctx, ircode.NameDimmer); err != nil {
			return err
		}
		d.update(func(s *State) { s.DimmerStatus = DimmerOn })
	}

	return nil
}

func (d *Device) sendNamed(ctx context.Context, name string) error {
	payload, err := d.table.LookupNamed(name)
	if err != nil {
		return err
	}
	return d.tx.Transmit(ctx, payload)
}

// update mutates state fields under the field lock.
func (d *Device) update(fn func(s *State)) {
	d.fieldMu.Lock()
	fn(&d.state)
	d.state.UpdatedAt = d.now()
	d.fieldMu.Unlock()
}

// notify delivers the current state and returns it.
func (d *Device) notify(ctx context.Context) State {
	d.notifyMu.Lock()
	defer d.notifyMu.Unlock()

	state := d.State()
	for _, o := range d.observers {
		o.StateChanged(ctx, state)
	}
	return state
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
