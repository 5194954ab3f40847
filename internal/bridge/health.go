package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nerrad567/irclimate/internal/infrastructure/mqtt"
)

const defaultHealthInterval = 30 * time.Second

// HealthStatus is the operational status reported by the bridge.
type HealthStatus string

// Health statuses.
const (
	HealthHealthy  HealthStatus = "healthy"
	HealthDegraded HealthStatus = "degraded"
	HealthStopping HealthStatus = "stopping"
)

// HealthMessage is the retained payload on irclimate/system/health.
type HealthMessage struct {
	BridgeID      string            `json:"bridge_id"`
	Version       string            `json:"version,omitempty"`
	Status        HealthStatus      `json:"status"`
	Reason        string            `json:"reason,omitempty"`
	Devices       int               `json:"devices"`
	Breakers      map[string]string `json:"breakers,omitempty"`
	UptimeSeconds int64             `json:"uptime_seconds"`
	Timestamp     string            `json:"timestamp"`
}

// HealthPublisher publishes health messages. *mqtt.Client satisfies it.
type HealthPublisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	IsConnected() bool
}

// HealthReporterConfig configures a HealthReporter.
type HealthReporterConfig struct {
	BridgeID string
	Version  string

	// Interval between reports. Default: 30 seconds.
	Interval time.Duration

	Publisher HealthPublisher

	// Breakers returns the breaker state per device.
	Breakers func() map[string]string

	Logger Logger
}

// HealthReporter publishes a retained health message at a fixed interval.
type HealthReporter struct {
	bridgeID  string
	version   string
	startTime time.Time
	interval  time.Duration
	publisher HealthPublisher
	breakers  func() map[string]string
	logger    Logger
	now       func() time.Time

	deviceCount   int
	deviceCountMu sync.RWMutex

	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewHealthReporter creates a reporter; call Start to begin publishing.
func NewHealthReporter(cfg HealthReporterConfig) *HealthReporter {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultHealthInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = nopLogger{}
	}

	return &HealthReporter{
		bridgeID:  cfg.BridgeID,
		version:   cfg.Version,
		startTime: time.Now(),
		interval:  interval,
		publisher: cfg.Publisher,
		breakers:  cfg.Breakers,
		logger:    logger,
		now:       time.Now,
		done:      make(chan struct{}),
	}
}

// Start begins periodic reporting until ctx is done or Stop is called.
func (h *HealthReporter) Start(ctx context.Context) {
	h.wg.Add(1)
	go h.reportLoop(ctx)
}

// Stop ends reporting and publishes a final "stopping" status.
// Safe to call multiple times.
func (h *HealthReporter) Stop() {
	h.stopOnce.Do(func() {
		close(h.done)
		h.wg.Wait()

		//nolint:errcheck // best effort during shutdown
		h.publish(HealthStopping, "")
	})
}

// SetDeviceCount updates the managed device count.
func (h *HealthReporter) SetDeviceCount(count int) {
	h.deviceCountMu.Lock()
	h.deviceCount = count
	h.deviceCountMu.Unlock()
}

// PublishNow publishes the current status immediately.
func (h *HealthReporter) PublishNow() error {
	status, reason := h.determineStatus()
	return h.publish(status, reason)
}

func (h *HealthReporter) reportLoop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	if err := h.PublishNow(); err != nil {
		h.logger.Warn("failed to publish initial health", "error", err)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.done:
			return
		case <-ticker.C:
			if err := h.PublishNow(); err != nil {
				h.logger.Warn("failed to publish health", "error", err)
			}
		}
	}
}

// determineStatus is degraded while the broker is unreachable or any
// device's transport breaker is not closed.
func (h *HealthReporter) determineStatus() (HealthStatus, string) {
	if h.publisher == nil || !h.publisher.IsConnected() {
		return HealthDegraded, "MQTT disconnected"
	}

	if h.breakers != nil {
		var tripped []string
		for id, state := range h.breakers() {
			if state != "closed" {
				tripped = append(tripped, id)
			}
		}
		if len(tripped) > 0 {
			sort.Strings(tripped)
			return HealthDegraded, fmt.Sprintf("IR transport breaker not closed: %v", tripped)
		}
	}

	return HealthHealthy, ""
}

func (h *HealthReporter) message(status HealthStatus, reason string) HealthMessage {
	h.deviceCountMu.RLock()
	devices := h.deviceCount
	h.deviceCountMu.RUnlock()

	msg := HealthMessage{
		BridgeID:      h.bridgeID,
		Version:       h.version,
		Status:        status,
		Reason:        reason,
		Devices:       devices,
		UptimeSeconds: int64(h.now().Sub(h.startTime).Seconds()),
		Timestamp:     h.now().UTC().Format(time.RFC3339),
	}
	if h.breakers != nil {
		msg.Breakers = h.breakers()
	}
	return msg
}

func (h *HealthReporter) publish(status HealthStatus, reason string) error {
	if h.publisher == nil {
		return nil
	}

	payload, err := json.Marshal(h.message(status, reason))
	if err != nil {
		return err
	}
	return h.publisher.Publish(mqtt.Topics{}.SystemHealth(), payload, 1, true)
}
