// Homify Core - home automation backend.
//
// This is the main entry point. It loads configuration, connects every
// configured device once, and serves the device, sensor and audit API
// until interrupted. Device failures never stop the process.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/homify-core/migrations"

	"github.com/nerrad567/homify-core/internal/api"
	"github.com/nerrad567/homify-core/internal/audit"
	"github.com/nerrad567/homify-core/internal/bridges/mock"
	"github.com/nerrad567/homify-core/internal/bridges/tapo"
	"github.com/nerrad567/homify-core/internal/device"
	"github.com/nerrad567/homify-core/internal/infrastructure/config"
	"github.com/nerrad567/homify-core/internal/infrastructure/database"
	"github.com/nerrad567/homify-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/homify-core/internal/infrastructure/logging"
	"github.com/nerrad567/homify-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/homify-core/internal/sensors"
	"github.com/nerrad567/homify-core/internal/statebus"
	"github.com/nerrad567/homify-core/internal/telemetry"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires every component and blocks until ctx is cancelled.
// Only configuration and infrastructure failures return an error.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // Linear startup sequence
	log := logging.Default(version)
	log.Info("starting Homify Core",
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "site", cfg.Site.ID)

	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	if cfg.Telemetry.Metrics.Enabled {
		telemetry.InitMetrics()
	}
	if cfg.Telemetry.Tracing.Enabled {
		shutdown, tracerErr := telemetry.InitTracer(cfg.Telemetry.Tracing, version, os.Stdout)
		if tracerErr != nil {
			return fmt.Errorf("initialising tracing: %w", tracerErr)
		}
		defer func() {
			if shutdownErr := shutdown(context.Background()); shutdownErr != nil {
				log.Error("error shutting down tracer", "error", shutdownErr)
			}
		}()
	}

	registry, err := device.NewRegistry(descriptorsFromConfig(cfg.Devices.Registry))
	if err != nil {
		return fmt.Errorf("building device registry: %w", err)
	}

	simDriver := mock.NewDriver()
	simDriver.SetLogger(log)
	drivers, err := device.NewDrivers(
		tapo.NewDriver(tapo.Options{HTTPClient: &http.Client{}, Logger: log}),
		simDriver,
	)
	if err != nil {
		return fmt.Errorf("registering drivers: %w", err)
	}

	conns := device.NewManager(device.ManagerOptions{
		Registry: registry,
		Drivers:  drivers,
		Credentials: map[device.Protocol]device.Credentials{
			device.ProtocolTapo: {
				Username: cfg.Protocols.Tapo.Username,
				Password: cfg.Protocols.Tapo.Password,
			},
		},
		ConnectTimeout: cfg.Devices.ConnectTimeoutDuration(),
		Parallelism:    cfg.Devices.Parallelism,
		Logger:         log,
	}).Initialize(ctx)
	defer func() {
		if closeErr := conns.Close(); closeErr != nil {
			log.Error("error closing device connections", "error", closeErr)
		}
	}()
	telemetry.RecordConnections(conns)

	service := device.NewService(device.ServiceOptions{
		Registry:       registry,
		Drivers:        drivers,
		Connections:    conns,
		RequestTimeout: cfg.Devices.RequestTimeoutDuration(),
		Parallelism:    cfg.Devices.Parallelism,
		Logger:         log,
	})

	auditRepo := audit.NewSQLiteRepository(db.DB)
	recorder := audit.NewRecorder(auditRepo, log)
	recCtx, stopRecorder := context.WithCancel(ctx)
	recorder.Start(recCtx)
	defer func() {
		stopRecorder()
		recorder.Wait()
	}()
	service.AddListener(recorder)

	if cfg.Telemetry.Metrics.Enabled {
		service.AddListener(telemetry.MetricsListener{})
	}

	var history *telemetry.History
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		history = telemetry.NewHistory(influxClient, registry)
		service.AddListener(history)
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("InfluxDB disabled")
	}

	var mqttClient *mqtt.Client
	var bus *statebus.Bus
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		bus = statebus.New(mqttClient, service, log)
		service.AddListener(bus)
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	deps := api.Deps{
		Config:    cfg.API,
		WS:        cfg.WebSocket,
		Telemetry: cfg.Telemetry,
		Logger:    log,
		Devices:   service,
		Sensors:   sensors.NewGenerator(nil),
		Audit:     auditRepo,
		Version:   version,
	}
	if history != nil {
		deps.Readings = history
	}
	server, err := api.New(deps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	service.AddListener(server.Hub())
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("starting API server: %w", err)
	}
	defer func() {
		if closeErr := server.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Commands may only arrive once every listener is registered.
	if bus != nil {
		if err := bus.Start(ctx); err != nil {
			return fmt.Errorf("starting MQTT state bus: %w", err)
		}
	}

	if err := healthCheck(ctx, db, mqttClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	return nil
}

func getConfigPath() string {
	if path := os.Getenv("HOMIFY_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// descriptorsFromConfig converts the registry section, keeping its order.
func descriptorsFromConfig(devices []config.DeviceConfig) []device.Descriptor {
	out := make([]device.Descriptor, 0, len(devices))
	for _, d := range devices {
		out = append(out, device.Descriptor{
			ID:            d.ID,
			Name:          d.Name,
			Class:         device.Class(d.Class),
			Protocol:      device.Protocol(d.Protocol),
			AddressSource: d.AddressSource,
		})
	}
	return out
}

func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	return nil
}
