package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-dbcore/internal/engine"
	"github.com/nerrad567/gray-logic-dbcore/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-dbcore/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-dbcore/internal/migrate"
	"github.com/nerrad567/gray-logic-dbcore/internal/pool"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Checker is an optional infrastructure component whose health /health
// reports, such as the MQTT or InfluxDB client.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config   config.APIConfig
	Logger   *logging.Logger
	Pools    *pool.Manager
	Engine   *engine.Engine
	Migrator *migrate.Migrator // optional; migration routes answer 404 without it
	Checks   map[string]Checker
	Version  string
}

// Server is the operations HTTP API.
//
// It also implements pool.Observer and engine.Observer, relaying events to
// WebSocket subscribers.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
type Server struct {
	cfg      config.APIConfig
	logger   *logging.Logger
	pools    *pool.Manager
	engine   *engine.Engine
	migrator *migrate.Migrator
	checks   map[string]Checker
	version  string
	hub      *Hub
	server   *http.Server
	cancel   context.CancelFunc
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called, but its hub accepts
// events immediately.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Pools == nil {
		return nil, fmt.Errorf("pool manager is required")
	}
	if deps.Engine == nil {
		return nil, fmt.Errorf("engine is required")
	}

	return &Server{
		cfg:      deps.Config,
		logger:   deps.Logger,
		pools:    deps.Pools,
		engine:   deps.Engine,
		migrator: deps.Migrator,
		checks:   deps.Checks,
		version:  deps.Version,
		hub:      NewHub(deps.Config.WebSocket, deps.Logger),
	}, nil
}

// Handler returns the router with all routes and middleware.
func (s *Server) Handler() http.Handler {
	return s.buildRouter()
}

// Start begins listening for HTTP connections in a background goroutine.
// It fails if the address cannot be bound.
func (s *Server) Start(ctx context.Context) error {
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(srvCtx)

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		s.cancel()
		return fmt.Errorf("listening on %s: %w", addr, err)
	}

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.buildRouter(),
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server listening", "address", ln.Addr().String())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()
	return nil
}

// Close gracefully shuts down the API server and disconnects WebSocket clients.
func (s *Server) Close() error {
	if s.cancel != nil {
		s.cancel()
	}
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
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

// PoolEvent implements pool.Observer.
func (s *Server) PoolEvent(ev pool.Event) {
	payload := map[string]any{
		"pool":    ev.Pool,
		"kind":    string(ev.Kind),
		"conn_id": ev.ConnID,
		"busy":    ev.Busy,
	}
	if ev.Err != nil {
		payload["error"] = ev.Err.Error()
	}
	s.hub.Broadcast(ChannelPool, payload)
}

// Statement implements engine.Observer. Bind values are never relayed.
func (s *Server) Statement(ev engine.StatementEvent) {
	payload := map[string]any{
		"pool":       ev.Pool,
		"conn_id":    ev.ConnID,
		"dialect":    ev.Dialect,
		"kind":       ev.Kind,
		"sql":        ev.SQL,
		"elapsed_ms": ev.Elapsed.Milliseconds(),
		"rows":       ev.Rows,
		"slow":       ev.Slow,
	}
	if ev.Err != nil {
		payload["error"] = ev.Err.Error()
	}
	s.hub.Broadcast(ChannelStatement, payload)
}
