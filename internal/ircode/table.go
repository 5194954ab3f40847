package ircode

import (
	"fmt"
	"strconv"
)

// Payload is an opaque IR command as stored in the table. It is transmitted
// as-is or wrapped by the transport encoder.
type Payload string

// Well-known named actions.
const (
	NameOn        = "on"
	NameOff       = "off"
	NameDimmer    = "dimmer"
	NameTurboCool = "turboCool"
	NameTurboHeat = "turboHeat"
)

// Table is an immutable command lookup table. Safe for concurrent reads.
type Table struct {
	modes map[string]map[string]map[string]Payload
	named map[string]Payload
}

// NewTable builds a table from already-decoded maps. Temperature keys are
// canonicalised; the input maps are copied.
func NewTable(modes map[string]map[string]map[string]Payload, named map[string]Payload) (*Table, error) {
	t := &Table{
		modes: make(map[string]map[string]map[string]Payload, len(modes)),
		named: make(map[string]Payload, len(named)),
	}

	for mode, fans := range modes {
		fanTable := make(map[string]map[string]Payload, len(fans))
		for fan, temps := range fans {
			tempTable := make(map[string]Payload, len(temps))
			for key, payload := range temps {
				canon, err := canonicalTemperature(key)
				if err != nil {
					return nil, fmt.Errorf("%w: %s/%s: %w", ErrInvalidTable, mode, fan, err)
				}
				tempTable[canon] = payload
			}
			fanTable[fan] = tempTable
		}
		t.modes[mode] = fanTable
	}

	for name, payload := range named {
		t.named[name] = payload
	}

	return t, nil
}

// Lookup returns the payload for a mode, fan speed and integer temperature.
func (t *Table) Lookup(mode, fan string, temperature int) (Payload, error) {
	key := FormatTemperature(float64(temperature))

	fans, ok := t.modes[mode]
	if !ok {
		return "", fmt.Errorf("%w: mode %q", ErrMissingCommand, mode)
	}
	temps, ok := fans[fan]
	if !ok {
		return "", fmt.Errorf("%w: mode %q fan %q", ErrMissingCommand, mode, fan)
	}
	payload, ok := temps[key]
	if !ok {
		return "", fmt.Errorf("%w: mode %q fan %q temperature %s", ErrMissingCommand, mode, fan, key)
	}

	return payload, nil
}

// LookupNamed returns the payload for a named auxiliary action.
func (t *Table) LookupNamed(name string) (Payload, error) {
	payload, ok := t.named[name]
	if !ok {
		return "", fmt.Errorf("%w: named action %q", ErrMissingCommand, name)
	}
	return payload, nil
}

// Modes lists the operating modes present in the table.
func (t *Table) Modes() []string {
	out := make([]string, 0, len(t.modes))
	for mode := range t.modes {
		out = append(out, mode)
	}
	return out
}

// Size returns the number of raw (mode, fan, temperature) entries plus named actions.
func (t *Table) Size() int {
	n := len(t.named)
	for _, fans := range t.modes {
		for _, temps := range fans {
			n += len(temps)
		}
	}
	return n
}

// FormatTemperature renders a temperature in its minimal decimal form:
// 23 → "23", 23.5 → "23.5".
func FormatTemperature(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// canonicalTemperature normalises a table key ("23.0" → "23").
func canonicalTemperature(key string) (string, error) {
	v, err := strconv.ParseFloat(key, 64)
	if err != nil {
		return "", fmt.Errorf("temperature key %q: %w", key, err)
	}
	return FormatTemperature(v), nil
}
