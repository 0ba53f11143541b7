package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nerrad567/homify-core/internal/audit"
	"github.com/nerrad567/homify-core/internal/device"
	"github.com/nerrad567/homify-core/internal/infrastructure/config"
	"github.com/nerrad567/homify-core/internal/infrastructure/logging"
	"github.com/nerrad567/homify-core/internal/sensors"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// DeviceService is the device layer seen by the handlers.
// *device.Service satisfies it.
type DeviceService interface {
	ListAll(ctx context.Context) map[string]device.Entry
	Get(ctx context.Context, id string) (device.Entry, error)
	Control(ctx context.Context, id string, on bool) (device.ControlResult, error)
	Connected() int
}

// SensorSource produces sensor readings. *sensors.Generator satisfies it.
type SensorSource interface {
	Read() sensors.Reading
}

// ReadingRecorder receives every reading served by the sensors endpoint.
type ReadingRecorder interface {
	RecordReading(r sensors.Reading)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config    config.APIConfig
	WS        config.WebSocketConfig
	Telemetry config.TelemetryConfig
	Logger    *logging.Logger
	Devices   DeviceService
	Sensors   SensorSource
	Readings  ReadingRecorder  // optional
	Audit     audit.Repository // optional; GET /api/audit returns 503 without it
	Hub       *Hub             // optional; created by New when nil
	Version   string
}

// Server is the HTTP API server for Homify Core.
type Server struct {
	cfg       config.APIConfig
	wsCfg     config.WebSocketConfig
	telemetry config.TelemetryConfig
	logger    *logging.Logger
	devices   DeviceService
	sensors   SensorSource
	readings  ReadingRecorder
	auditRepo audit.Repository
	version   string
	server    *http.Server
	hub       *Hub
	ownHub    bool
	cancel    context.CancelFunc
}

// New creates a new API server with the given dependencies.
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Devices == nil {
		return nil, fmt.Errorf("device service is required")
	}
	if deps.Sensors == nil {
		deps.Sensors = sensors.NewGenerator(nil)
	}

	s := &Server{
		cfg:       deps.Config,
		wsCfg:     deps.WS,
		telemetry: deps.Telemetry,
		logger:    deps.Logger,
		devices:   deps.Devices,
		sensors:   deps.Sensors,
		readings:  deps.Readings,
		auditRepo: deps.Audit,
		version:   deps.Version,
		hub:       deps.Hub,
	}
	if s.hub == nil {
		s.hub = NewHub(deps.WS, deps.Logger)
		s.ownHub = true
	}

	return s, nil
}

// Hub returns the WebSocket hub. Register it with device.Service.AddListener
// to stream state changes.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.buildRouter()
	if s.telemetry.Tracing.Enabled {
		h = otelhttp.NewHandler(h, "homify-api")
	}
	return h
}

// Start begins listening for HTTP connections in a background goroutine.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	if s.ownHub {
		go s.hub.Run(srvCtx)
	}

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.Handler(),
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("API server starting with TLS", "address", s.server.Addr, "cert", s.cfg.TLS.CertFile)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("API server starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close waits up to gracefulShutdownTimeout for in-flight requests,
// then closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck reports whether the server has been started.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}
	return nil
}
