package climate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Command names accepted by Execute.
const (
	CommandSetTemperature = "set_temperature"
	CommandSetHVACMode    = "set_hvac_mode"
	CommandSetFanMode     = "set_fan_mode"
	CommandSetPresetMode  = "set_preset_mode"
	CommandTurnOn         = "turn_on"
	CommandTurnOff        = "turn_off"
)

// Command is the transport-neutral form of a state-change request, shared
// by the MQTT command topic and the HTTP API.
//
//	{"command": "set_temperature", "temperature": 22, "hvac_mode": "cool"}
type Command struct {
	Command     string   `json:"command"`
	Temperature *float64 `json:"temperature,omitempty"`
	HVACMode    string   `json:"hvac_mode,omitempty"`
	FanMode     string   `json:"fan_mode,omitempty"`
	PresetMode  string   `json:"preset_mode,omitempty"`
}

// DecodeCommand parses a JSON command. Unknown fields are rejected.
func DecodeCommand(data []byte) (Command, error) {
	var cmd Command
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cmd); err != nil {
		return Command{}, fmt.Errorf("%w: %w", ErrInvalidCommand, err)
	}
	return cmd, nil
}

// Execute validates and dispatches a command. Only validation failures are
// returned; once dispatched, the operation absorbs its own errors (see
// LastError).
func (d *Device) Execute(ctx context.Context, cmd Command) error {
	_, err := d.Apply(ctx, cmd)
	return err
}

// Apply is Execute for callers that report the outcome: the Result holds
// the state and error of this command's own operation, unaffected by
// operations queued behind it. The error return is for validation only.
func (d *Device) Apply(ctx context.Context, cmd Command) (Result, error) {
	fn, err := d.operation(cmd)
	if err != nil {
		return Result{}, err
	}
	return d.run(ctx, cmd.Command, fn), nil
}

// operation resolves a command to the sequence run under the operation lock.
func (d *Device) operation(cmd Command) (func(context.Context) error, error) {
	switch cmd.Command {
	case CommandSetTemperature:
		var mode *HVACMode
		if cmd.HVACMode != "" {
			m, err := ParseHVACMode(cmd.HVACMode)
			if err != nil {
				return nil, err
			}
			mode = &m
		}
		return func(ctx context.Context) error {
			return d.setTargetTemperature(ctx, cmd.Temperature, mode)
		}, nil

	case CommandSetHVACMode:
		m, err := ParseHVACMode(cmd.HVACMode)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) error { return d.setHVACMode(ctx, m) }, nil

	case CommandSetFanMode:
		f, err := ParseFanMode(cmd.FanMode)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) error { return d.setFanMode(ctx, f) }, nil

	case CommandSetPresetMode:
		p, err := ParsePresetMode(cmd.PresetMode)
		if err != nil {
			return nil, err
		}
		return func(ctx context.Context) error { return d.setPresetMode(ctx, p) }, nil

	case CommandTurnOn:
		return d.turnOn, nil

	case CommandTurnOff:
		return func(ctx context.Context) error { return d.setHVACMode(ctx, HVACOff) }, nil

	default:
		return nil, fmt.Errorf("%w: unknown command %q", ErrInvalidCommand, cmd.Command)
	}
}
