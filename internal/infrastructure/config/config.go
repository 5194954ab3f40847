package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Frame encodings accepted by devices[].encoding.
const (
	EncodingRaw      = "raw"
	EncodingEnvelope = "envelope"
)

// Config is the root configuration structure for the IR climate bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Bridge      BridgeConfig      `yaml:"bridge"`
	Database    DatabaseConfig    `yaml:"database"`
	MQTT        MQTTConfig        `yaml:"mqtt"`
	API         APIConfig         `yaml:"api"`
	WebSocket   WebSocketConfig   `yaml:"websocket"`
	InfluxDB    InfluxDBConfig    `yaml:"influxdb"`
	Logging     LoggingConfig     `yaml:"logging"`
	Transmitter TransmitterConfig `yaml:"transmitter"`
	Security    SecurityConfig    `yaml:"security"`
	Devices     []DeviceConfig    `yaml:"devices"`
}

// BridgeConfig identifies this bridge instance.
type BridgeConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`

	// HistoryRetention is how long state history rows are kept.
	HistoryRetention time.Duration `yaml:"history_retention"`

	// HistoryPruneInterval is how often old history is deleted.
	HistoryPruneInterval time.Duration `yaml:"history_prune_interval"`

	// HealthInterval is how often the bridge health message is published.
	HealthInterval time.Duration `yaml:"health_interval"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
// Delays are in seconds. MaxAttempts bounds the initial connect retries; 0 means unlimited.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// WebSocketConfig contains settings for the live state stream.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TransmitterConfig tunes how IR payloads are pushed onto the transport.
type TransmitterConfig struct {
	// SettleDelay is the pause after every transmission before the next may start.
	SettleDelay time.Duration `yaml:"settle_delay"`

	// QoS used for IR command publishes.
	QoS int `yaml:"qos"`

	Breaker BreakerConfig `yaml:"breaker"`
}

// BreakerConfig configures the circuit breaker guarding IR publishes.
type BreakerConfig struct {
	// MaxConsecutiveFailures trips the breaker open.
	MaxConsecutiveFailures uint32 `yaml:"max_consecutive_failures"`

	// OpenTimeout is how long the breaker stays open before a probe is allowed.
	OpenTimeout time.Duration `yaml:"open_timeout"`

	// Interval clears the failure counts while closed. 0 never clears.
	Interval time.Duration `yaml:"interval"`
}

// SecurityConfig contains API security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig enables bearer-token auth on mutating API routes when Secret is set.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	Issuer string `yaml:"issuer"`
}

// DeviceConfig describes one IR-controlled air conditioner.
type DeviceConfig struct {
	ID                 string `yaml:"id"`
	Name               string `yaml:"name"`
	IRTopic            string `yaml:"ir_topic"`
	Encoding           string `yaml:"encoding"`
	CommandTable       string `yaml:"command_table"`
	MinTemp            int    `yaml:"min_temp"`
	MaxTemp            int    `yaml:"max_temp"`
	DefaultTemperature int    `yaml:"default_temperature"`
	TemperatureSensor  string `yaml:"temperature_sensor"`
	HumiditySensor     string `yaml:"humidity_sensor"`
}

// Device defaults applied when a field is left zero.
const (
	DefaultMinTemp            = 16
	DefaultMaxTemp            = 30
	DefaultTargetTemperature  = 23
	defaultSettleDelay        = time.Second
	defaultHistoryRetention   = 30 * 24 * time.Hour
	defaultHistoryPruneEvery  = time.Hour
	defaultHealthInterval     = 30 * time.Second
	defaultBreakerFailures    = 5
	defaultBreakerOpenTimeout = 30 * time.Second
)

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//  4. Per-device defaults for fields left empty
//
// Environment variables follow the pattern: IRCLIMATE_SECTION_KEY
// For example: IRCLIMATE_DATABASE_PATH, IRCLIMATE_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	cfg.applyDeviceDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:                   "irclimate-01",
			Name:                 "IR Climate Bridge",
			HistoryRetention:     defaultHistoryRetention,
			HistoryPruneInterval: defaultHistoryPruneEvery,
			HealthInterval:       defaultHealthInterval,
		},
		Database: DatabaseConfig{
			Path:        "./data/irclimate.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "irclimate",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  10,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Transmitter: TransmitterConfig{
			SettleDelay: defaultSettleDelay,
			QoS:         1,
			Breaker: BreakerConfig{
				MaxConsecutiveFailures: defaultBreakerFailures,
				OpenTimeout:            defaultBreakerOpenTimeout,
			},
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				Issuer: "irclimate",
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: IRCLIMATE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IRCLIMATE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("IRCLIMATE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("IRCLIMATE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("IRCLIMATE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("IRCLIMATE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("IRCLIMATE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("IRCLIMATE_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
}

// applyDeviceDefaults fills per-device fields the YAML left empty.
func (c *Config) applyDeviceDefaults() {
	for i := range c.Devices {
		d := &c.Devices[i]
		if d.Name == "" {
			d.Name = d.ID
		}
		if d.Encoding == "" {
			d.Encoding = EncodingRaw
		}
		if d.MinTemp == 0 && d.MaxTemp == 0 {
			d.MinTemp = DefaultMinTemp
			d.MaxTemp = DefaultMaxTemp
		}
		if d.DefaultTemperature == 0 {
			d.DefaultTemperature = DefaultTargetTemperature
		}
	}
}

// Validate checks the configuration for errors.
//
// All problems are collected so an operator sees every mistake in one pass.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.Transmitter.QoS < 0 || c.Transmitter.QoS > 2 {
		errs = append(errs, "transmitter.qos must be 0, 1, or 2")
	}
	if c.Transmitter.SettleDelay < 0 {
		errs = append(errs, "transmitter.settle_delay cannot be negative")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	const minJWTSecretLength = 32
	if s := c.Security.JWT.Secret; s != "" && len(s) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(c.Devices) == 0 {
		errs = append(errs, "at least one device must be configured")
	}

	seen := make(map[string]bool, len(c.Devices))
	for i, d := range c.Devices {
		prefix := fmt.Sprintf("devices[%d]", i)
		if d.ID == "" {
			errs = append(errs, prefix+".id is required")
		} else if seen[d.ID] {
			errs = append(errs, fmt.Sprintf("%s.id %q is duplicated", prefix, d.ID))
		}
		seen[d.ID] = true

		if d.IRTopic == "" {
			errs = append(errs, prefix+".ir_topic is required")
		}
		if d.CommandTable == "" {
			errs = append(errs, prefix+".command_table is required")
		}
		if d.Encoding != EncodingRaw && d.Encoding != EncodingEnvelope {
			errs = append(errs, fmt.Sprintf("%s.encoding must be %q or %q", prefix, EncodingRaw, EncodingEnvelope))
		}
		if d.MinTemp >= d.MaxTemp {
			errs = append(errs, prefix+".min_temp must be below max_temp")
		}
		if d.DefaultTemperature < d.MinTemp || d.DefaultTemperature > d.MaxTemp {
			errs = append(errs, prefix+".default_temperature must be within [min_temp, max_temp]")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
