package mqtt

import (
	"crypto/tls"
	"encoding/json"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/irclimate/internal/infrastructure/config"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second

	// defaultDisconnectQuiesce is in milliseconds.
	defaultDisconnectQuiesce = 1000

	defaultKeepAlive = 60 * time.Second

	defaultInitialDelay = time.Second
	defaultMaxDelay     = 60 * time.Second

	maxQoS = 2

	tlsMinVersion = tls.VersionTLS12
)

// Status payload values.
const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// StatusMessage is the retained payload on the system status topic.
type StatusMessage struct {
	Status    string `json:"status"`
	ClientID  string `json:"client_id"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// buildClientOptions maps the MQTT config onto paho options.
//
// The initial connect is not retried by paho; Connect drives that with
// backoff. Auto-reconnect after a lost connection stays with paho.
func buildClientOptions(cfg config.MQTTConfig) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.Broker.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Broker.Host, cfg.Broker.Port))
	opts.SetClientID(cfg.Broker.ClientID)

	if cfg.Auth.Username != "" {
		opts.SetUsername(cfg.Auth.Username)
		opts.SetPassword(cfg.Auth.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(false)
	opts.SetMaxReconnectInterval(maxDelay(cfg))
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	if cfg.Broker.TLS {
		opts.SetTLSConfig(&tls.Config{MinVersion: tlsMinVersion})
	}

	return opts
}

// connectBackOff builds the retry policy for the initial connect.
func connectBackOff(cfg config.MQTTConfig) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initialDelay(cfg)
	b.MaxInterval = maxDelay(cfg)
	b.MaxElapsedTime = 0

	if cfg.Reconnect.MaxAttempts > 0 {
		// #nosec G115 -- positive int
		return backoff.WithMaxRetries(b, uint64(cfg.Reconnect.MaxAttempts-1))
	}
	return b
}

func initialDelay(cfg config.MQTTConfig) time.Duration {
	if cfg.Reconnect.InitialDelay > 0 {
		return time.Duration(cfg.Reconnect.InitialDelay) * time.Second
	}
	return defaultInitialDelay
}

func maxDelay(cfg config.MQTTConfig) time.Duration {
	if cfg.Reconnect.MaxDelay > 0 {
		return time.Duration(cfg.Reconnect.MaxDelay) * time.Second
	}
	return defaultMaxDelay
}

// configureLWT makes the broker publish a retained offline status if the
// bridge disconnects without Close.
func configureLWT(opts *pahomqtt.ClientOptions, clientID string) {
	opts.SetWill(Topics{}.SystemStatus(), statusPayload(clientID, StatusOffline, "unexpected_disconnect"), 1, true)
}

func statusPayload(clientID, status, reason string) string {
	b, _ := json.Marshal(StatusMessage{ //nolint:errcheck // plain strings always marshal
		Status:    status,
		ClientID:  clientID,
		Reason:    reason,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	return string(b)
}
