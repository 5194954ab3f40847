package climate

import (
	"fmt"
	"strings"
	"time"
)

// HVACMode is the desired operating mode.
type HVACMode string

// Operating modes.
const (
	HVACOff  HVACMode = "off"
	HVACCool HVACMode = "cool"
	HVACHeat HVACMode = "heat"
)

// FanMode is the fan speed.
type FanMode string

// Fan speeds.
const (
	FanAuto   FanMode = "auto"
	FanHigh   FanMode = "high"
	FanMedium FanMode = "medium"
	FanLow    FanMode = "low"
)

// PresetMode selects the turbo or sleep overlays.
type PresetMode string

// Presets.
const (
	PresetNone  PresetMode = "none"
	PresetBoost PresetMode = "boost"
	PresetSleep PresetMode = "sleep"
)

// PowerStatus is the tracked belief about physical power.
type PowerStatus string

// DimmerStatus is the tracked belief about the display/beep toggle.
type DimmerStatus string

// Power and dimmer beliefs.
const (
	PowerOff  PowerStatus  = "off"
	PowerOn   PowerStatus  = "on"
	DimmerOff DimmerStatus = "off"
	DimmerOn  DimmerStatus = "on"
)

// HVACModes lists supported modes in display order.
var HVACModes = []HVACMode{HVACOff, HVACCool, HVACHeat}

// FanModes lists supported fan speeds in display order.
var FanModes = []FanMode{FanAuto, FanHigh, FanMedium, FanLow}

// PresetModes lists supported presets in display order.
var PresetModes = []PresetMode{PresetNone, PresetBoost, PresetSleep}

// Valid reports whether m is a known mode.
func (m HVACMode) Valid() bool {
	return m == HVACOff || m == HVACCool || m == HVACHeat
}

// Valid reports whether f is a known fan speed.
func (f FanMode) Valid() bool {
	return f == FanAuto || f == FanHigh || f == FanMedium || f == FanLow
}

// Valid reports whether p is a known preset.
func (p PresetMode) Valid() bool {
	return p == PresetNone || p == PresetBoost || p == PresetSleep
}

// Valid reports whether s is a known power status.
func (s PowerStatus) Valid() bool { return s == PowerOff || s == PowerOn }

// Valid reports whether s is a known dimmer status.
func (s DimmerStatus) Valid() bool { return s == DimmerOff || s == DimmerOn }

// ParseHVACMode parses a case-insensitive mode name.
func ParseHVACMode(s string) (HVACMode, error) {
	m := HVACMode(strings.ToLower(strings.TrimSpace(s)))
	if !m.Valid() {
		return "", fmt.Errorf("%w: unknown hvac mode %q", ErrInvalidCommand, s)
	}
	return m, nil
}

// ParseFanMode parses a case-insensitive fan speed.
func ParseFanMode(s string) (FanMode, error) {
	f := FanMode(strings.ToLower(strings.TrimSpace(s)))
	if !f.Valid() {
		return "", fmt.Errorf("%w: unknown fan mode %q", ErrInvalidCommand, s)
	}
	return f, nil
}

// ParsePresetMode parses a case-insensitive preset name.
func ParsePresetMode(s string) (PresetMode, error) {
	p := PresetMode(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: unknown preset mode %q", ErrInvalidCommand, s)
	}
	return p, nil
}

// Config holds the static settings of one device.
type Config struct {
	ID                 string
	Name               string
	MinTemp            int
	MaxTemp            int
	DefaultTemperature int
}

// State is a point-in-time copy of a device's desired and tracked state.
type State struct {
	DeviceID           string       `json:"device_id"`
	Name               string       `json:"name"`
	HVACMode           HVACMode     `json:"hvac_mode"`
	FanMode            FanMode      `json:"fan_mode"`
	PresetMode         PresetMode   `json:"preset_mode"`
	TargetTemperature  int          `json:"target_temperature"`
	PowerStatus        PowerStatus  `json:"power_status"`
	DimmerStatus       DimmerStatus `json:"dimmer_status"`
	LastOnOperation    HVACMode     `json:"last_on_operation,omitempty"`
	CurrentTemperature *float64     `json:"current_temperature,omitempty"`
	CurrentHumidity    *float64     `json:"current_humidity,omitempty"`
	MinTemp            int          `json:"min_temp"`
	MaxTemp            int          `json:"max_temp"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// Snapshot is the persisted subset of State. Nil fields were absent from the
// store and fall back to defaults on restore.
type Snapshot struct {
	HVACMode          *HVACMode     `json:"hvac_mode,omitempty"`
	FanMode           *FanMode      `json:"fan_mode,omitempty"`
	PresetMode        *PresetMode   `json:"preset_mode,omitempty"`
	TargetTemperature *int          `json:"target_temperature,omitempty"`
	PowerStatus       *PowerStatus  `json:"power_status,omitempty"`
	DimmerStatus      *DimmerStatus `json:"dimmer_status,omitempty"`
	LastOnOperation   *HVACMode     `json:"last_on_operation,omitempty"`
}

// Empty reports whether no field is present.
func (s Snapshot) Empty() bool {
	return s.HVACMode == nil && s.FanMode == nil && s.PresetMode == nil &&
		s.TargetTemperature == nil && s.PowerStatus == nil &&
		s.DimmerStatus == nil && s.LastOnOperation == nil
}

// SnapshotOf captures the persisted fields of a state.
func SnapshotOf(s State) Snapshot {
	hvac, fan, preset := s.HVACMode, s.FanMode, s.PresetMode
	target := s.TargetTemperature
	power, dimmer := s.PowerStatus, s.DimmerStatus

	snap := Snapshot{
		HVACMode:          &hvac,
		FanMode:           &fan,
		PresetMode:        &preset,
		TargetTemperature: &target,
		PowerStatus:       &power,
		DimmerStatus:      &dimmer,
	}
	if s.LastOnOperation != "" {
		last := s.LastOnOperation
		snap.LastOnOperation = &last
	}
	return snap
}
