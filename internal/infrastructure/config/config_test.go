package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
bridge:
  id: "test-bridge"
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
transmitter:
  settle_delay: 250ms
devices:
  - id: living
    ir_topic: "zigbee2mqtt/ir-living/set"
    encoding: envelope
    command_table: "/etc/irclimate/codes/daikin.json"
    temperature_sensor: "sensor.living_temp"
  - id: bedroom
    name: "Bedroom AC"
    ir_topic: "tasmota/ir-bedroom/cmnd/irsend"
    command_table: "/etc/irclimate/codes/lg.yaml"
    min_temp: 18
    max_temp: 28
    default_temperature: 24
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bridge.ID != "test-bridge" {
		t.Errorf("Bridge.ID = %q, want %q", cfg.Bridge.ID, "test-bridge")
	}
	if cfg.Transmitter.SettleDelay != 250*time.Millisecond {
		t.Errorf("Transmitter.SettleDelay = %v, want 250ms", cfg.Transmitter.SettleDelay)
	}
	if len(cfg.Devices) != 2 {
		t.Fatalf("len(Devices) = %d, want 2", len(cfg.Devices))
	}

	living := cfg.Devices[0]
	if living.Name != "living" {
		t.Errorf("Name defaulted to %q, want id", living.Name)
	}
	if living.MinTemp != DefaultMinTemp || living.MaxTemp != DefaultMaxTemp {
		t.Errorf("range = [%d,%d], want [%d,%d]", living.MinTemp, living.MaxTemp, DefaultMinTemp, DefaultMaxTemp)
	}
	if living.DefaultTemperature != DefaultTargetTemperature {
		t.Errorf("DefaultTemperature = %d, want %d", living.DefaultTemperature, DefaultTargetTemperature)
	}
	if living.Encoding != EncodingEnvelope {
		t.Errorf("Encoding = %q, want %q", living.Encoding, EncodingEnvelope)
	}

	bedroom := cfg.Devices[1]
	if bedroom.Encoding != EncodingRaw {
		t.Errorf("Encoding defaulted to %q, want %q", bedroom.Encoding, EncodingRaw)
	}
	if bedroom.MinTemp != 18 || bedroom.MaxTemp != 28 || bedroom.DefaultTemperature != 24 {
		t.Errorf("bedroom bounds = %+v", bedroom)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_NoDevices(t *testing.T) {
	path := writeConfig(t, `
bridge:
  id: "b"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error for missing devices, got nil")
	}
	if !strings.Contains(err.Error(), "at least one device") {
		t.Errorf("error = %v, want mention of devices", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
devices:
  - id: a
    ir_topic: t
    command_table: c.json
`)

	t.Setenv("IRCLIMATE_DATABASE_PATH", "/var/lib/irclimate/state.db")
	t.Setenv("IRCLIMATE_MQTT_HOST", "broker.lan")
	t.Setenv("IRCLIMATE_MQTT_PASSWORD", "s3cret")
	t.Setenv("IRCLIMATE_INFLUXDB_TOKEN", "tok")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/var/lib/irclimate/state.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.MQTT.Broker.Host != "broker.lan" {
		t.Errorf("MQTT.Broker.Host = %q", cfg.MQTT.Broker.Host)
	}
	if cfg.MQTT.Auth.Password != "s3cret" {
		t.Errorf("MQTT.Auth.Password not overridden")
	}
	if cfg.InfluxDB.Token != "tok" {
		t.Errorf("InfluxDB.Token not overridden")
	}
}

func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Devices = []DeviceConfig{{
		ID:                 "living",
		Name:               "Living",
		IRTopic:            "ir/living",
		Encoding:           EncodingRaw,
		CommandTable:       "codes.json",
		MinTemp:            16,
		MaxTemp:            30,
		DefaultTemperature: 23,
	}}
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid config",
			mutate: func(*Config) {},
		},
		{
			name:    "empty bridge id",
			mutate:  func(c *Config) { c.Bridge.ID = "" },
			wantErr: "bridge.id",
		},
		{
			name:    "empty database path",
			mutate:  func(c *Config) { c.Database.Path = "" },
			wantErr: "database.path",
		},
		{
			name:    "invalid mqtt qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantErr: "mqtt.qos",
		},
		{
			name:    "invalid api port",
			mutate:  func(c *Config) { c.API.Port = 0 },
			wantErr: "api.port",
		},
		{
			name: "api port ignored when disabled",
			mutate: func(c *Config) {
				c.API.Enabled = false
				c.API.Port = 0
			},
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *Config) { c.Security.JWT.Secret = "short" },
			wantErr: "security.jwt.secret",
		},
		{
			name:    "influx enabled without url",
			mutate:  func(c *Config) { c.InfluxDB.Enabled = true },
			wantErr: "influxdb.url",
		},
		{
			name:    "negative settle delay",
			mutate:  func(c *Config) { c.Transmitter.SettleDelay = -time.Second },
			wantErr: "settle_delay",
		},
		{
			name: "duplicate device id",
			mutate: func(c *Config) {
				c.Devices = append(c.Devices, c.Devices[0])
			},
			wantErr: "duplicated",
		},
		{
			name:    "missing ir topic",
			mutate:  func(c *Config) { c.Devices[0].IRTopic = "" },
			wantErr: "ir_topic",
		},
		{
			name:    "missing command table",
			mutate:  func(c *Config) { c.Devices[0].CommandTable = "" },
			wantErr: "command_table",
		},
		{
			name:    "unknown encoding",
			mutate:  func(c *Config) { c.Devices[0].Encoding = "base64" },
			wantErr: "encoding",
		},
		{
			name:    "inverted range",
			mutate:  func(c *Config) { c.Devices[0].MinTemp = 31 },
			wantErr: "min_temp",
		},
		{
			name:    "default outside range",
			mutate:  func(c *Config) { c.Devices[0].DefaultTemperature = 40 },
			wantErr: "default_temperature",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() error = nil, want %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Timeouts(t *testing.T) {
	cfg := defaultConfig()

	if got := cfg.GetReadTimeout(); got != 30*time.Second {
		t.Errorf("GetReadTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetWriteTimeout(); got != 30*time.Second {
		t.Errorf("GetWriteTimeout() = %v, want 30s", got)
	}
	if got := cfg.GetIdleTimeout(); got != 60*time.Second {
		t.Errorf("GetIdleTimeout() = %v, want 60s", got)
	}
}

func TestLoad_ExampleConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "..", "configs", "config.yaml"))
	if err != nil {
		t.Fatalf("Load(example) error = %v", err)
	}
	if cfg.Transmitter.Breaker.OpenTimeout != 30*time.Second {
		t.Errorf("Breaker.OpenTimeout = %v, want 30s", cfg.Transmitter.Breaker.OpenTimeout)
	}
	if len(cfg.Devices) != 1 || cfg.Devices[0].Encoding != EncodingEnvelope {
		t.Errorf("Devices = %+v", cfg.Devices)
	}
}
