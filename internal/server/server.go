// Package server exposes DAG validation and repair over HTTP.
//
// Routes:
//
//	GET  /health                 liveness and version
//	POST /validate/dag           semantic validation ({dag_spec}), 200 valid / 422 invalid
//	POST /validate/environment   deployment checks for a specification
//	POST /v1/specs/validate      schema + semantic aggregated validation
//	POST /v1/specs/repair        bounded repair loop
//	GET  /v1/runs                recent repair runs (history enabled)
//	GET  /v1/runs/:id            one repair run with its iterations
//	GET  /metrics                Prometheus metrics
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/ShayCichocki/dagforge/internal/repair"
	"github.com/ShayCichocki/dagforge/internal/semantic"
	"github.com/ShayCichocki/dagforge/internal/state"
	"github.com/ShayCichocki/dagforge/internal/validation"
	"github.com/ShayCichocki/dagforge/internal/version"
)

// ServiceName is reported by /health and used for tracing.
const ServiceName = "dagforge"

// DefaultMaxIterations applies to repair requests that do not set one.
const DefaultMaxIterations = 3

// shutdownTimeout bounds graceful shutdown in Run.
const shutdownTimeout = 10 * time.Second

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	checker       *semantic.Checker
	validator     *validation.Validator
	driver        *repair.Driver
	history       state.HistoryStore
	gatherer      prometheus.Gatherer
	logger        *slog.Logger
	maxIterations int
	engine        *gin.Engine
}

// Option configures a Server.
type Option func(*Server)

// WithRepairDriver enables /v1/specs/repair. Without it the route answers 503.
func WithRepairDriver(d *repair.Driver) Option {
	return func(s *Server) { s.driver = d }
}

// WithHistory records repair runs and enables the /v1/runs routes.
func WithHistory(h state.HistoryStore) Option {
	return func(s *Server) { s.history = h }
}

// WithGatherer sets the registry served on /metrics.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		if g != nil {
			s.gatherer = g
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithDefaultMaxIterations sets the budget for repair requests that omit one.
func WithDefaultMaxIterations(n int) Option {
	return func(s *Server) {
		if n >= repair.MinIterations && n <= repair.MaxIterations {
			s.maxIterations = n
		}
	}
}

// New creates a server. checker answers /validate/dag and validator answers
// /v1/specs/validate.
func New(checker *semantic.Checker, validator *validation.Validator, opts ...Option) *Server {
	s := &Server{
		checker:       checker,
		validator:     validator,
		gatherer:      prometheus.DefaultGatherer,
		logger:        slog.Default(),
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware(ServiceName))
	r.Use(requestLogger(s.logger))

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{})))

	validate := r.Group("/validate")
	{
		validate.POST("/dag", s.handleValidateDAG)
		validate.POST("/environment", s.handleValidateEnvironment)
	}

	v1 := r.Group("/v1")
	{
		v1.POST("/specs/validate", s.handleSpecValidate)
		v1.POST("/specs/repair", s.handleSpecRepair)
		v1.GET("/runs", s.handleListRuns)
		v1.GET("/runs/:id", s.handleGetRun)
	}

	return r
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", "addr", addr, "version", version.Get())
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("listen: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.logger.Info("server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

// requestLogger logs one line per request.
func requestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelError
		}
		logger.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		)
	}
}
