// IR Climate Bridge
//
// irclimate drives infrared-controlled air conditioners from MQTT. Each
// configured unit gets a state machine that turns climate commands into
// ordered IR payloads for a blaster, and publishes the resulting state.
//
// Usage:
//
//	irclimate                  run the bridge (config from IRCLIMATE_CONFIG)
//	irclimate token <subject>  print an API bearer token signed with security.jwt.secret
//	irclimate migrate [status|up|down]
//	                           inspect, apply or roll back the SQLite schema
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/irclimate/internal/api"
	"github.com/nerrad567/irclimate/internal/bridge"
	"github.com/nerrad567/irclimate/internal/climate"
	"github.com/nerrad567/irclimate/internal/infrastructure/config"
	"github.com/nerrad567/irclimate/internal/infrastructure/database"
	"github.com/nerrad567/irclimate/internal/infrastructure/influxdb"
	"github.com/nerrad567/irclimate/internal/infrastructure/logging"
	"github.com/nerrad567/irclimate/internal/infrastructure/mqtt"
	"github.com/nerrad567/irclimate/internal/metrics"
	"github.com/nerrad567/irclimate/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"

	// shutdownTimeout bounds the final snapshot writes on exit.
	shutdownTimeout = 15 * time.Second

	defaultTokenTTL = 365 * 24 * time.Hour
)

func main() {
	if len(os.Args) > 1 {
		var err error
		switch os.Args[1] {
		case "token":
			err = issueToken(os.Args[2:], os.Stdout)
		case "migrate":
			err = migrate(context.Background(), os.Args[2:], os.Stdout)
		default:
			err = fmt.Errorf("unknown command %q", os.Args[1])
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // linear startup sequence
	log := logging.Default()
	log.Info("starting irclimate",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version, cfg.Bridge.ID)
	log.Info("configuration loaded",
		"path", configPath,
		"bridge_id", cfg.Bridge.ID,
		"devices", len(cfg.Devices),
	)

	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	applied, err := db.Migrate(ctx, migrations.FS)
	if err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	for _, m := range applied {
		log.Info("migration applied", "version", m.Version, "name", m.Name)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	mqttClient, err := mqtt.Connect(ctx, cfg.MQTT, log.Component("mqtt"))
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	influxClient := connectInflux(ctx, cfg.InfluxDB, cfg.Bridge.ID, log)
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	m := metrics.New()

	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(cfg.WebSocket, log.Component("websocket"))
	}

	opts := bridge.Options{
		Config:    cfg,
		MQTT:      mqttClient,
		Snapshots: climate.NewSQLiteSnapshotRepository(db.DB),
		History:   climate.NewSQLiteHistoryRepository(db.DB),
		Metrics:   m,
		Logger:    log.Component("bridge"),
		Version:   version,
	}
	if influxClient != nil {
		opts.Telemetry = influxClient
	}
	if hub != nil {
		opts.Observers = append(opts.Observers, hub)
	}

	b, err := bridge.New(opts)
	if err != nil {
		return fmt.Errorf("building bridge: %w", err)
	}
	if startErr := b.Start(ctx); startErr != nil {
		b.Stop(context.Background())
		return fmt.Errorf("starting bridge: %w", startErr)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		b.Stop(stopCtx)
	}()

	if cfg.API.Enabled {
		checks := map[string]api.HealthChecker{
			"database": db,
			"mqtt":     mqttClient,
		}
		if influxClient != nil {
			checks["influxdb"] = influxClient
		}

		srv, srvErr := api.New(api.Deps{
			Config:     cfg.API,
			WS:         cfg.WebSocket,
			Security:   cfg.Security,
			Logger:     log.Component("api"),
			Controller: b,
			Metrics:    m.Handler(),
			Checks:     checks,
			Hub:        hub,
			Version:    version,
		})
		if srvErr != nil {
			return fmt.Errorf("creating API server: %w", srvErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	log.Info("irclimate ready")

	<-ctx.Done()
	log.Info("shutdown signal received")

	return nil
}

// connectInflux returns nil when telemetry is disabled or unreachable; the
// bridge runs without it.
func connectInflux(ctx context.Context, cfg config.InfluxDBConfig, bridgeID string, log *logging.Logger) *influxdb.Client {
	client, err := influxdb.Connect(ctx, cfg, influxdb.WithDefaultTag("bridge_id", bridgeID))
	switch {
	case errors.Is(err, influxdb.ErrDisabled):
		log.Info("InfluxDB disabled")
		return nil
	case err != nil:
		log.Warn("InfluxDB unavailable, continuing without telemetry", "error", err)
		return nil
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.URL,
		"org", cfg.Org,
		"bucket", cfg.Bucket,
	)
	return client
}

// getConfigPath returns the configuration file path, honouring IRCLIMATE_CONFIG.
func getConfigPath() string {
	if path := os.Getenv("IRCLIMATE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// issueToken prints a bearer token for the API. Arguments: subject and an
// optional lifetime ("720h"; "0" for no expiry).
func issueToken(args []string, out io.Writer) error {
	if len(args) == 0 || args[0] == "" {
		return fmt.Errorf("usage: irclimate token <subject> [ttl]")
	}

	ttl := defaultTokenTTL
	if len(args) > 1 {
		parsed, err := time.ParseDuration(args[1])
		if err != nil {
			return fmt.Errorf("invalid ttl %q: %w", args[1], err)
		}
		ttl = parsed
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	token, err := api.IssueToken(cfg.Security.JWT, args[0], ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

// migrate runs schema maintenance against database.path without starting
// the bridge. "status" (default) lists applied and pending migrations, "up"
// applies pending ones and "down" reverts the latest.
func migrate(ctx context.Context, args []string, out io.Writer) error {
	action := "status"
	if len(args) > 0 {
		action = args[0]
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	switch action {
	case "status":
		applied, pending, err := db.MigrationStatus(ctx, migrations.FS)
		if err != nil {
			return err
		}
		for _, r := range applied {
			fmt.Fprintf(out, "applied  %s_%s  %s\n", r.Version, r.Name, r.AppliedAt.Format(time.RFC3339))
		}
		for _, m := range pending {
			fmt.Fprintf(out, "pending  %s_%s\n", m.Version, m.Name)
		}
		return nil
	case "up":
		applied, err := db.Migrate(ctx, migrations.FS)
		for _, m := range applied {
			fmt.Fprintf(out, "applied  %s_%s\n", m.Version, m.Name)
		}
		return err
	case "down":
		m, err := db.Rollback(ctx, migrations.FS)
		if err != nil {
			return err
		}
		if m.Version == "" {
			fmt.Fprintln(out, "nothing to roll back")
			return nil
		}
		fmt.Fprintf(out, "reverted %s_%s\n", m.Version, m.Name)
		return nil
	default:
		return fmt.Errorf("usage: irclimate migrate [status|up|down]")
	}
}
