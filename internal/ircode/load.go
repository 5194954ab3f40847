package ircode

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// commandsKey optionally wraps the whole table.
const commandsKey = "commands"

// Load reads a command table from disk. Files ending in .yaml or .yml are
// decoded as YAML; everything else as JSON.
//
// Layout:
//
//	{
//	  "on": "<payload>", "off": "<payload>", "dimmer": "<payload>",
//	  "turboCool": "<payload>", "turboHeat": "<payload>",
//	  "cool": {"auto": {"16": "<payload>", ...}, "high": {...}},
//	  "heat": {...}
//	}
//
// Leaf payloads that are not strings (for example Tasmota IRsend objects)
// are kept as their compact JSON text.
//
// Returns:
//   - *Table: the loaded table
//   - error: if the file is missing or cannot be interpreted
func Load(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading command table: %w", err)
	}

	var raw map[string]any
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidTable, path, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidTable, path, err)
		}
	}

	table, err := fromMap(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return table, nil
}

// Parse decodes a JSON command table held in memory.
func Parse(data []byte) (*Table, error) {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidTable, err)
	}
	return fromMap(raw)
}

func fromMap(raw map[string]any) (*Table, error) {
	if raw == nil {
		return nil, fmt.Errorf("%w: empty document", ErrInvalidTable)
	}

	if inner, ok := raw[commandsKey]; ok {
		m, ok := asMap(inner)
		if !ok {
			return nil, fmt.Errorf("%w: %q must be an object", ErrInvalidTable, commandsKey)
		}
		raw = m
	}

	modes := make(map[string]map[string]map[string]Payload)
	named := make(map[string]Payload)

	for key, value := range raw {
		fans, isMap := asMap(value)
		if !isMap || isNamedAction(key) {
			payload, err := toPayload(value)
			if err != nil {
				return nil, fmt.Errorf("%w: %q: %w", ErrInvalidTable, key, err)
			}
			named[key] = payload
			continue
		}

		fanTable := make(map[string]map[string]Payload, len(fans))
		for fan, tempsValue := range fans {
			temps, ok := asMap(tempsValue)
			if !ok {
				return nil, fmt.Errorf("%w: %s/%s must map temperatures to payloads", ErrInvalidTable, key, fan)
			}
			tempTable := make(map[string]Payload, len(temps))
			for temp, leaf := range temps {
				payload, err := toPayload(leaf)
				if err != nil {
					return nil, fmt.Errorf("%w: %s/%s/%s: %w", ErrInvalidTable, key, fan, temp, err)
				}
				tempTable[temp] = payload
			}
			fanTable[fan] = tempTable
		}
		modes[key] = fanTable
	}

	return NewTable(modes, named)
}

func isNamedAction(key string) bool {
	switch key {
	case NameOn, NameOff, NameDimmer, NameTurboCool, NameTurboHeat:
		return true
	}
	return false
}

// asMap accepts both JSON (map[string]any) and YAML (which may yield
// map[string]any or, for non-string keys such as bare 23, map[any]any) objects.
func asMap(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, val := range m {
			out[fmt.Sprint(k)] = val
		}
		return out, true
	}
	return nil, false
}

func toPayload(v any) (Payload, error) {
	switch p := v.(type) {
	case string:
		return Payload(p), nil
	case nil:
		return "", fmt.Errorf("payload is null")
	}

	if m, ok := asMap(v); ok {
		v = m
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}
	return Payload(b), nil
}
