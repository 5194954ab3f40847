package transmit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sony/gobreaker"

	"github.com/nerrad567/irclimate/internal/ircode"
)

// DefaultSettleDelay is the pause enforced after each transmission.
const DefaultSettleDelay = time.Second

// Breaker defaults used when BreakerSettings is left zero.
const (
	defaultBreakerFailures    = 5
	defaultBreakerOpenTimeout = 30 * time.Second
)

// Publisher is the transport primitive. *mqtt.Client satisfies it.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Recorder receives one observation per transmission attempt.
type Recorder interface {
	ObserveTransmission(deviceID string, err error)
	SetBreakerState(deviceID string, state string)
}

// Logger is the logging surface used by the transmitter.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// BreakerSettings configures the circuit breaker guarding the publish call.
type BreakerSettings struct {
	MaxConsecutiveFailures uint32
	OpenTimeout            time.Duration
	Interval               time.Duration
}

// Options configures a Transmitter.
type Options struct {
	// DeviceID labels metrics and logs.
	DeviceID string

	// Topic is the blaster topic; fixed for the lifetime of the transmitter.
	Topic string

	QoS         byte
	SettleDelay time.Duration
	Encoder     Encoder
	Breaker     BreakerSettings
	Recorder    Recorder
	Logger      Logger
}

// Transmitter serialises IR payloads onto one topic.
//
// Thread Safety:
//   - Transmit may be called concurrently, but callers that need ordering
//     (the climate state machine) serialise their own sequences.
type Transmitter struct {
	pub      Publisher
	deviceID string
	topic    string
	qos      byte
	settle   time.Duration
	encoder  Encoder
	breaker  *gobreaker.CircuitBreaker
	recorder Recorder

	// sleep is swapped in tests.
	sleep func(ctx context.Context, d time.Duration) error

	logger   Logger
	loggerMu sync.RWMutex
}

// New creates a Transmitter publishing to opts.Topic.
//
// Parameters:
//   - pub: transport used for publishing
//   - opts: topic, framing and breaker settings
//
// Returns:
//   - *Transmitter: ready for use
//   - error: if pub is nil or no topic is configured
func New(pub Publisher, opts Options) (*Transmitter, error) {
	if pub == nil {
		return nil, fmt.Errorf("%w: publisher is required", ErrTransport)
	}
	if opts.Topic == "" {
		return nil, fmt.Errorf("%w: topic is required", ErrTransport)
	}
	if opts.Encoder == nil {
		opts.Encoder = RawEncoder{}
	}
	if opts.SettleDelay < 0 {
		opts.SettleDelay = 0
	}

	t := &Transmitter{
		pub:      pub,
		deviceID: opts.DeviceID,
		topic:    opts.Topic,
		qos:      opts.QoS,
		settle:   opts.SettleDelay,
		encoder:  opts.Encoder,
		recorder: opts.Recorder,
		logger:   opts.Logger,
		sleep:    sleepContext,
	}
	t.breaker = gobreaker.NewCircuitBreaker(t.breakerSettings(opts.Breaker))

	if t.recorder != nil {
		t.recorder.SetBreakerState(t.deviceID, t.breaker.State().String())
	}

	return t, nil
}

func (t *Transmitter) breakerSettings(bs BreakerSettings) gobreaker.Settings {
	fails := bs.MaxConsecutiveFailures
	if fails == 0 {
		fails = defaultBreakerFailures
	}
	open := bs.OpenTimeout
	if open <= 0 {
		open = defaultBreakerOpenTimeout
	}

	return gobreaker.Settings{
		Name:     "ir-" + t.topic,
		Interval: bs.Interval,
		Timeout:  open,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= fails
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			t.logWarn("IR transport breaker changed state",
				"device_id", t.deviceID,
				"topic", t.topic,
				"from", from.String(),
				"to", to.String(),
			)
			if t.recorder != nil {
				t.recorder.SetBreakerState(t.deviceID, to.String())
			}
		},
	}
}

// Transmit encodes and publishes one payload, then blocks for the settle delay.
//
// The settle delay only runs after a successful publish; a failed publish
// returns immediately with an error wrapping ErrTransport.
func (t *Transmitter) Transmit(ctx context.Context, payload ircode.Payload) error {
	frame, err := t.encoder.Encode(payload)
	if err != nil {
		t.observe(err)
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}

	_, err = t.breaker.Execute(func() (interface{}, error) {
		return nil, t.pub.Publish(t.topic, frame, t.qos, false)
	})
	t.observe(err)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return fmt.Errorf("%w: breaker %s: %w", ErrTransport, t.breaker.State(), err)
		}
		return fmt.Errorf("%w: publish to %s: %w", ErrTransport, t.topic, err)
	}

	t.logDebug("IR payload transmitted",
		"device_id", t.deviceID,
		"topic", t.topic,
		"bytes", len(frame),
	)

	if t.settle > 0 {
		if err := t.sleep(ctx, t.settle); err != nil {
			return fmt.Errorf("settle delay: %w", err)
		}
	}

	return nil
}

// Topic returns the blaster topic.
func (t *Transmitter) Topic() string {
	return t.topic
}

// SettleDelay returns the configured post-transmission pause.
func (t *Transmitter) SettleDelay() time.Duration {
	return t.settle
}

// BreakerState reports the circuit breaker state ("closed", "half-open", "open").
func (t *Transmitter) BreakerState() string {
	return t.breaker.State().String()
}

// SetLogger sets the logger.
func (t *Transmitter) SetLogger(logger Logger) {
	t.loggerMu.Lock()
	t.logger = logger
	t.loggerMu.Unlock()
}

func (t *Transmitter) observe(err error) {
	if t.recorder != nil {
		t.recorder.ObserveTransmission(t.deviceID, err)
	}
}

func (t *Transmitter) logDebug(msg string, args ...any) {
	t.loggerMu.RLock()
	logger := t.logger
	t.loggerMu.RUnlock()
	if logger != nil {
		logger.Debug(msg, args...)
	}
}

func (t *Transmitter) logWarn(msg string, args ...any) {
	t.loggerMu.RLock()
	logger := t.logger
	t.loggerMu.RUnlock()
	if logger != nil {
		logger.Warn(msg, args...)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
