// Gray Logic DB Core - pooled relational database access.
//
// This is the main entry point for the database core service. It opens the
// configured connection pools, applies schema migrations, verifies every
// pool answers and then exports pool telemetry until it is stopped:
//   - Prometheus metrics for pool occupancy and counters
//   - MQTT events for pool changes and slow or failed statements
//   - InfluxDB points for statements, pool events and periodic pool stats
//   - A read-only HTTP API with a WebSocket event stream
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/nerrad567/gray-logic-dbcore/internal/api"
	"github.com/nerrad567/gray-logic-dbcore/internal/engine"
	"github.com/nerrad567/gray-logic-dbcore/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dbcore/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-dbcore/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-dbcore/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-dbcore/internal/migrate"
	"github.com/nerrad567/gray-logic-dbcore/internal/pool"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// defaultConfigPath is used when DBCORE_CONFIG is not set.
	defaultConfigPath = "configs/config.yaml"

	// healthCheckTimeout bounds the startup check of each pool.
	healthCheckTimeout = 10 * time.Second

	// metricsShutdownTimeout bounds the graceful stop of the metrics server.
	metricsShutdownTimeout = 5 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Gray Logic DB Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	mgr := pool.NewManager(cfg.Pools)
	mgr.SetLogger(log.With("component", "pool"))
	defer func() {
		log.Info("shutting down connection pools")
		if shutdownErr := mgr.Shutdown(); shutdownErr != nil {
			log.Error("error shutting down pools", "error", shutdownErr)
		}
	}()
	log.Info("connection pools configured", "pools", mgr.Names())

	eng := engine.New(cfg.Statements)
	eng.SetLogger(log.With("component", "engine"))

	var poolObservers pool.MultiObserver
	var statementObservers engine.MultiObserver
	checks := make(map[string]api.Checker)

	// Publish events to MQTT (optional)
	if cfg.MQTT.Enabled {
		mqttClient, connErr := mqtt.Connect(cfg.MQTT)
		if connErr != nil {
			return fmt.Errorf("connecting to MQTT: %w", connErr)
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
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		// #nosec G115 -- qos validated to 0..2 by config.Validate
		publisher := mqtt.NewEventPublisher(mqttClient, cfg.MQTT.Topic, byte(cfg.MQTT.QoS))
		publisher.SetLogger(log.With("component", "mqtt"))
		publisher.Start(ctx)
		defer publisher.Stop()

		poolObservers = append(poolObservers, publisher)
		statementObservers = append(statementObservers, publisher)
		checks["mqtt"] = mqttClient
	} else {
		log.Info("MQTT disabled")
	}

	// Write telemetry to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})

		poolObservers = append(poolObservers, influxClient)
		statementObservers = append(statementObservers, influxClient)
		checks["influxdb"] = influxClient
	} else {
		log.Info("InfluxDB disabled")
	}

	var migrator *migrate.Migrator
	if cfg.Migrations.Dir != "" {
		migrator, err = loadMigrator(cfg.Migrations, eng, log)
		if err != nil {
			return fmt.Errorf("loading migrations: %w", err)
		}
	}

	// Serve the operations API (optional)
	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer, err = api.New(api.Deps{
			Config:   cfg.API,
			Logger:   log.With("component", "api"),
			Pools:    mgr,
			Engine:   eng,
			Migrator: migrator,
			Checks:   checks,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		poolObservers = append(poolObservers, apiServer)
		statementObservers = append(statementObservers, apiServer)
	} else {
		log.Info("API disabled")
	}

	if len(poolObservers) > 0 {
		mgr.SetObserver(poolObservers)
		eng.SetObserver(statementObservers)
	}

	if migrator != nil {
		if migrateErr := runMigrations(ctx, cfg.Migrations.Pools, mgr, migrator, log); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
	}

	if err := healthCheck(ctx, mgr, eng, log); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	if apiServer != nil {
		if err := apiServer.Start(ctx); err != nil {
			return fmt.Errorf("starting API server: %w", err)
		}
		defer func() {
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.Metrics.Enabled {
		g.Go(func() error {
			return serveMetrics(gctx, cfg.Metrics, mgr, log)
		})
	}
	if influxClient != nil {
		g.Go(func() error {
			reportPoolStats(gctx, mgr, influxClient, cfg.InfluxDB.GetFlushInterval())
			return nil
		})
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-gctx.Done()

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("shutdown signal received, cleaning up")

	// Deferred calls run in reverse order:
	// 1. API server (if enabled)
	// 2. InfluxDB (if enabled)
	// 3. MQTT publisher and client (if enabled)
	// 4. Connection pools

	log.Info("Gray Logic DB Core stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses DBCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("DBCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// loadMigrator reads the migration scripts from the configured directory.
func loadMigrator(cfg config.MigrationsConfig, eng *engine.Engine, log *logging.Logger) (*migrate.Migrator, error) {
	migs, err := migrate.Load(os.DirFS(cfg.Dir), ".")
	if err != nil {
		return nil, err
	}
	m := migrate.New(eng, migs)
	m.SetLogger(log.With("component", "migrate"))
	log.Info("migrations loaded", "dir", cfg.Dir, "count", len(migs))
	return m, nil
}

// runMigrations applies the migration scripts to each named pool in turn.
func runMigrations(ctx context.Context, pools []string, mgr *pool.Manager, m *migrate.Migrator, log *logging.Logger) error {
	for _, name := range pools {
		if err := migratePool(ctx, mgr, m, name, log); err != nil {
			return fmt.Errorf("pool %s: %w", name, err)
		}
	}
	return nil
}

func migratePool(ctx context.Context, mgr *pool.Manager, m *migrate.Migrator, name string, log *logging.Logger) error {
	conn, err := mgr.Acquire(ctx, name)
	if err != nil {
		return err
	}
	defer conn.Close() //nolint:errcheck // every migration is committed individually

	n, err := m.Up(ctx, conn)
	if err != nil {
		return err
	}
	log.Info("database migrations complete", "pool", name, "applied", n)
	return nil
}

// healthCheck verifies every pool can hand out a connection that answers a
// query. Pools are checked concurrently; the first failure is returned.
func healthCheck(ctx context.Context, mgr *pool.Manager, eng *engine.Engine, log *logging.Logger) error {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	for _, name := range mgr.Names() {
		g.Go(func() error {
			conn, err := mgr.Acquire(gctx, name)
			if err != nil {
				return fmt.Errorf("pool %s: %w", name, err)
			}
			defer conn.Close() //nolint:errcheck // read-only check

			if err := conn.HealthCheck(gctx); err != nil {
				return fmt.Errorf("pool %s: %w", name, err)
			}
			today, err := eng.CurrentDate(gctx, conn)
			if err != nil {
				return fmt.Errorf("pool %s: %w", name, err)
			}
			log.Info("pool healthy",
				"pool", name,
				"dialect", conn.Dialect().Name(),
				"current_date", today.String(),
			)
			return nil
		})
	}
	return g.Wait()
}

// metricsHandler returns the Prometheus handler for the pool collector and
// the Go runtime.
func metricsHandler(mgr *pool.Manager) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		pool.NewMetricsCollector(mgr),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// serveMetrics serves Prometheus metrics until ctx is cancelled.
func serveMetrics(ctx context.Context, cfg config.MetricsConfig, mgr *pool.Manager, log *logging.Logger) error {
	mux := http.NewServeMux()
	mux.Handle(cfg.Path, metricsHandler(mgr))

	srv := &http.Server{
		Addr:              cfg.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("metrics server listening", "listen", cfg.Listen, "path", cfg.Path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("metrics server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("error stopping metrics server", "error", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// reportPoolStats writes a snapshot of every pool to InfluxDB each interval
// until ctx is cancelled.
func reportPoolStats(ctx context.Context, mgr *pool.Manager, influxClient *influxdb.Client, interval time.Duration) {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			influxClient.WritePoolStats(poolStats(mgr))
		}
	}
}

// poolStats returns the stats of every configured pool.
func poolStats(mgr *pool.Manager) []pool.Stats {
	names := mgr.Names()
	stats := make([]pool.Stats, 0, len(names))
	for _, name := range names {
		if s, err := mgr.Stats(name); err == nil {
			stats = append(stats, s)
		}
	}
	return stats
}
