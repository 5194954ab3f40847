package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/nerrad567/irclimate/internal/infrastructure/config"
)

func testConfig() config.MQTTConfig {
	return config.MQTTConfig{
		Broker: config.MQTTBrokerConfig{
			Host:     "127.0.0.1",
			Port:     1883,
			ClientID: "irclimate-test",
		},
		QoS: 1,
		Reconnect: config.MQTTReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     5,
			MaxAttempts:  3,
		},
	}
}

type mockLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *mockLogger) record(msg string) {
	l.mu.Lock()
	l.messages = append(l.messages, msg)
	l.mu.Unlock()
}

func (l *mockLogger) Info(msg string, _ ...any)  { l.record(msg) }
func (l *mockLogger) Warn(msg string, _ ...any)  { l.record(msg) }
func (l *mockLogger) Error(msg string, _ ...any) { l.record(msg) }

func (l *mockLogger) has(substr string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if strings.Contains(m, substr) {
			return true
		}
	}
	return false
}

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name string
		got  string
		want string
	}{
		{"ClimateCommand", topics.ClimateCommand("living"), "irclimate/command/climate/living"},
		{"ClimateState", topics.ClimateState("living"), "irclimate/state/climate/living"},
		{"Sensor", topics.Sensor("living_temp"), "irclimate/sensor/living_temp"},
		{"SystemStatus", topics.SystemStatus(), "irclimate/system/status"},
		{"SystemHealth", topics.SystemHealth(), "irclimate/system/health"},
		{"AllClimateCommands", topics.AllClimateCommands(), "irclimate/command/climate/+"},
		{"AllSensors", topics.AllSensors(), "irclimate/sensor/+"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("%s = %q, want %q", tt.name, tt.got, tt.want)
			}
		})
	}
}

func TestLastSegment(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"irclimate/command/climate/living", "living"},
		{"irclimate/sensor/t1", "t1"},
		{"bare", "bare"},
		{"trailing/", ""},
	}
	for _, tt := range tests {
		if got := LastSegment(tt.topic); got != tt.want {
			t.Errorf("LastSegment(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}

func TestBuildClientOptions(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Username = "bridge"
	cfg.Auth.Password = "secret"

	opts := buildClientOptions(cfg)
	configureLWT(opts, cfg.Broker.ClientID)

	if len(opts.Servers) != 1 || opts.Servers[0].String() != "tcp://127.0.0.1:1883" {
		t.Errorf("Servers = %v, want tcp://127.0.0.1:1883", opts.Servers)
	}
	if opts.ClientID != "irclimate-test" {
		t.Errorf("ClientID = %q", opts.ClientID)
	}
	if opts.Username != "bridge" || opts.Password != "secret" {
		t.Error("credentials not applied")
	}
	if !opts.AutoReconnect || opts.ConnectRetry {
		t.Errorf("AutoReconnect=%v ConnectRetry=%v, want true/false", opts.AutoReconnect, opts.ConnectRetry)
	}
	if opts.MaxReconnectInterval != 5*time.Second {
		t.Errorf("MaxReconnectInterval = %v, want 5s", opts.MaxReconnectInterval)
	}
	if !opts.WillEnabled || opts.WillTopic != "irclimate/system/status" || !opts.WillRetained {
		t.Errorf("LWT = enabled:%v topic:%q retained:%v", opts.WillEnabled, opts.WillTopic, opts.WillRetained)
	}

	var will StatusMessage
	if err := json.Unmarshal(opts.WillPayload, &will); err != nil {
		t.Fatalf("LWT payload is not JSON: %v", err)
	}
	if will.Status != StatusOffline || will.Reason != "unexpected_disconnect" {
		t.Errorf("LWT payload = %+v", will)
	}
}

func TestBuildClientOptions_TLS(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.TLS = true
	cfg.Broker.Port = 8883

	opts := buildClientOptions(cfg)
	if opts.Servers[0].Scheme != "ssl" {
		t.Errorf("scheme = %q, want ssl", opts.Servers[0].Scheme)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.MinVersion != tlsMinVersion {
		t.Error("TLS config not applied")
	}
}

func TestConnectBackOff_MaxAttempts(t *testing.T) {
	cfg := testConfig()
	b := connectBackOff(cfg)

	retries := 0
	for b.NextBackOff() != backoff.Stop {
		retries++
		if retries > 10 {
			t.Fatal("backoff never stopped")
		}
	}
	if retries != cfg.Reconnect.MaxAttempts-1 {
		t.Errorf("retries = %d, want %d", retries, cfg.Reconnect.MaxAttempts-1)
	}
}

func TestConnectBackOff_Defaults(t *testing.T) {
	cfg := testConfig()
	cfg.Reconnect = config.MQTTReconnectConfig{}

	if got := initialDelay(cfg); got != defaultInitialDelay {
		t.Errorf("initialDelay = %v, want %v", got, defaultInitialDelay)
	}
	if got := maxDelay(cfg); got != defaultMaxDelay {
		t.Errorf("maxDelay = %v, want %v", got, defaultMaxDelay)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 1
	cfg.Reconnect.MaxAttempts = 2
	logger := &mockLogger{}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client, err := Connect(ctx, cfg, logger)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Fatalf("Connect() error = %v, want ErrConnectionFailed", err)
	}
	if client != nil {
		t.Error("Connect() returned a client on failure")
	}
	if !logger.has("retrying") {
		t.Error("retry was not logged")
	}
}

func TestConnect_CancelledContext(t *testing.T) {
	cfg := testConfig()
	cfg.Broker.Port = 1
	cfg.Reconnect.MaxAttempts = 0

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Connect(ctx, cfg, nil)
	if !errors.Is(err, ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestPublishValidation(t *testing.T) {
	c := &Client{subscriptions: map[string]subscription{}}

	tests := []struct {
		name    string
		topic   string
		payload []byte
		qos     byte
		want    error
	}{
		{"empty topic", "", []byte("x"), 0, ErrInvalidTopic},
		{"invalid qos", "t", []byte("x"), 3, ErrInvalidQoS},
		{"oversized", "t", make([]byte, maxPayloadSize+1), 0, ErrPublishFailed},
		{"not connected", "t", []byte("x"), 1, ErrNotConnected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := c.Publish(tt.topic, tt.payload, tt.qos, false)
			if !errors.Is(err, tt.want) {
				t.Errorf("Publish() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := &Client{subscriptions: map[string]subscription{}}
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 0, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v", err)
	}
	if err := c.Subscribe("t", 3, handler); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("invalid qos error = %v", err)
	}
	if err := c.Subscribe("t", 0, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v", err)
	}
	if err := c.Subscribe("t", 0, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected error = %v", err)
	}
	if err := c.Unsubscribe("t"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Unsubscribe() error = %v", err)
	}
	if c.SubscriptionCount() != 0 || c.HasSubscription("t") {
		t.Error("failed subscribe left a tracked subscription")
	}
}

func TestDispatch_RecoversPanicAndLogsErrors(t *testing.T) {
	logger := &mockLogger{}
	c := &Client{logger: logger}

	c.dispatch(func(string, []byte) error { panic("boom") }, "t", nil)
	if !logger.has("panic recovered") {
		t.Error("panic was not logged")
	}

	c.dispatch(func(string, []byte) error { return errors.New("bad payload") }, "t", nil)
	if !logger.has("handler returned error") {
		t.Error("handler error was not logged")
	}
}

func TestCloseNil(t *testing.T) {
	var c *Client
	if err := c.Close(); err != nil {
		t.Errorf("Close() on nil client error = %v", err)
	}
	if c.IsConnected() {
		t.Error("nil client reports connected")
	}
}

func TestHealthCheck_Disconnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() error = %v, want ErrNotConnected", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := c.HealthCheck(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("HealthCheck() error = %v, want context.Canceled", err)
	}
}
