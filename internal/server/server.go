// Package server exposes the bridge over HTTP: the chat webhook, the live
// viewer feed and the REST query and command endpoints.
package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"telemetry-bridge/internal/broadcast"
	"telemetry-bridge/internal/chat"
)

// Options configures the HTTP surface
type Options struct {
	Addr string
	// CommandRate and CommandBurst bound command submissions per client IP
	CommandRate  float64
	CommandBurst int
	// RequestTimeout bounds report and command handling
	RequestTimeout time.Duration
}

// Deps are the components the handlers call into
type Deps struct {
	Hub        *broadcast.Hub
	Reports    chat.Reports
	Dispatcher chat.Dispatcher
	Responder  *chat.Responder
	Metrics    http.Handler
	// BusConnected reports the MQTT connection state for /healthz
	BusConnected func() bool
	Clock        clockwork.Clock
}

// Server bundles router and dependencies for the HTTP API
type Server struct {
	opts     Options
	deps     Deps
	engine   *gin.Engine
	limiter  *rateLimiter
	upgrader websocket.Upgrader
	started  time.Time
	log      *slog.Logger
}

// New constructs a server with routes and middleware
func New(opts Options, deps Deps, log *slog.Logger) *Server {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 10 * time.Second
	}
	if deps.Clock == nil {
		deps.Clock = clockwork.NewRealClock()
	}
	if deps.BusConnected == nil {
		deps.BusConnected = func() bool { return true }
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(requestLogger(log))
	engine.Use(corsMiddleware())

	s := &Server{
		opts:    opts,
		deps:    deps,
		engine:  engine,
		limiter: newRateLimiter(deps.Clock, opts.CommandRate, opts.CommandBurst),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Browser dashboards are served from other origins
			CheckOrigin: func(*http.Request) bool { return true },
		},
		started: deps.Clock.Now(),
		log:     log.With("component", "http"),
	}
	s.registerRoutes()
	return s
}

// Engine exposes the underlying gin engine (for tests)
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// Run starts the HTTP server and blocks until shutdown
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", "addr", s.opts.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"duration", time.Since(start),
			"client_ip", c.ClientIP(),
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("HTTP request", attrs...)
		case status >= http.StatusBadRequest:
			log.Warn("HTTP request", attrs...)
		default:
			log.Debug("HTTP request", attrs...)
		}
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
