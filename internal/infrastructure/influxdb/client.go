package influxdb

import (
	"context"
	"fmt"
	"sync"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/irclimate/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second

	// writeErrorWindow is how long an async write failure keeps
	// HealthCheck failing after the server answers pings again.
	writeErrorWindow = time.Minute
)

// Option customises Connect.
type Option func(*influxdb2.Options)

// WithDefaultTag adds a tag to every point written through the client.
func WithDefaultTag(key, value string) Option {
	return func(o *influxdb2.Options) {
		if value != "" {
			o.AddDefaultTag(key, value)
		}
	}
}

// Client wraps the InfluxDB v2 client and its batched, non-blocking write API.
//
// Thread Safety:
//   - All methods are safe for concurrent use; writes are queued by the
//     underlying client and flushed in the background.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	now      func() time.Time

	mu           sync.RWMutex
	connected    bool
	onError      func(err error)
	lastWriteErr error
	lastErrAt    time.Time
}

// Connect creates the client, pings the server and starts the write API.
//
// Parameters:
//   - ctx: bounds the initial ping (capped at 10s)
//   - cfg: influxdb section of the config file
//   - opts: extra client options such as WithDefaultTag
//
// Returns:
//   - *Client: connected client
//   - error: ErrDisabled when turned off, ErrConnectionFailed if the ping fails
func Connect(ctx context.Context, cfg config.InfluxDBConfig, opts ...Option) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	options := influxdb2.DefaultOptions().
		SetBatchSize(uint(positiveOr(cfg.BatchSize, defaultBatchSize))). // #nosec G115 -- positive
		SetFlushInterval(uint(flushInterval(cfg).Milliseconds()))        // #nosec G115 -- positive
	for _, opt := range opts {
		opt(options)
	}
	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, options)

	pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	if err := ping(pingCtx, client); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		client:    client,
		writeAPI:  client.WriteAPI(cfg.Org, cfg.Bucket),
		now:       time.Now,
		connected: true,
	}
	go c.watchWriteErrors(c.writeAPI.Errors())

	return c, nil
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// flushInterval converts the configured seconds to a duration.
func flushInterval(cfg config.InfluxDBConfig) time.Duration {
	if cfg.FlushInterval <= 0 {
		return defaultFlushInterval
	}
	return time.Duration(cfg.FlushInterval) * time.Second
}

func ping(ctx context.Context, client influxdb2.Client) error {
	healthy, err := client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if !healthy {
		return fmt.Errorf("server not healthy")
	}
	return nil
}

func (c *Client) watchWriteErrors(errs <-chan error) {
	for err := range errs {
		c.recordWriteError(err)
	}
}

func (c *Client) recordWriteError(err error) {
	c.mu.Lock()
	c.lastWriteErr = err
	c.lastErrAt = c.now()
	callback := c.onError
	c.mu.Unlock()

	if callback != nil {
		callback(err)
	}
}

// Close flushes pending writes and closes the client.
func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}

	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()

	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// HealthCheck pings the server and fails while a background write error
// is more recent than one minute.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(checkCtx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}

	c.mu.RLock()
	lastErr, at := c.lastWriteErr, c.lastErrAt
	c.mu.RUnlock()
	if lastErr != nil && c.now().Sub(at) < writeErrorWindow {
		return fmt.Errorf("%w: %w", ErrWriteFailed, lastErr)
	}
	return nil
}

// IsConnected reports whether the client is open. A nil client is not.
func (c *Client) IsConnected() bool {
	if c == nil {
		return false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}

// SetOnError sets the callback for asynchronous write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Flush blocks until buffered points are sent. No-op after Close.
func (c *Client) Flush() {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}
