// Package http serves the public application forms, the status page API
// and the admin console API over gin.
package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/access-portal/internal/application/port"
	"github.com/garyjia/access-portal/internal/application/service"
	"github.com/garyjia/access-portal/internal/auth"
	"github.com/garyjia/access-portal/internal/domain/entity"
	"github.com/garyjia/access-portal/internal/metrics"
)

// Version is reported by the health endpoint
var Version = "dev"

// Logger interface for logging operations
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Authenticator checks admin credentials and tokens
type Authenticator interface {
	Login(username, password string) (*auth.Token, error)
	Verify(token string) (*auth.Claims, error)
}

// Exporter renders applications as a downloadable workbook
type Exporter interface {
	Write(w io.Writer, apps []*entity.Application) error
	Filename(now time.Time) string
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            int
	Mode            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	MaxUploadSize   int64
	MaxBodySize     int64
	MetricsPath     string
	RateLimit       RateLimitConfig
}

// RateLimitConfig throttles submissions, uploads and logins per client IP
type RateLimitConfig struct {
	Enabled           bool
	RequestsPerSecond float64
	Burst             int
}

// DefaultServerConfig returns default server configuration
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            8080,
		Mode:            gin.ReleaseMode,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		AllowedOrigins:  []string{"*"},
		MaxUploadSize:   10 << 20,
		MaxBodySize:     1 << 20,
		MetricsPath:     "/metrics",
		RateLimit:       RateLimitConfig{Enabled: true, RequestsPerSecond: 1, Burst: 10},
	}
}

// Dependencies are the collaborators the handlers call into.
// Metrics and HealthCheck are optional.
type Dependencies struct {
	Applications service.ApplicationService
	Auth         Authenticator
	Files        port.FileStorage
	Exporter     Exporter
	Metrics      *metrics.Metrics
	HealthCheck  func(ctx context.Context) error
	Location     *time.Location
	Now          func() time.Time
}

// Server is the HTTP server adapter
type Server struct {
	config     ServerConfig
	deps       Dependencies
	httpServer *http.Server
	router     *gin.Engine
	limiter    *ipRateLimiter
	logger     Logger
}

// NewServer creates a new HTTP server with the given services
func NewServer(config ServerConfig, deps Dependencies, logger Logger) *Server {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if config.MaxUploadSize <= 0 {
		config.MaxUploadSize = 10 << 20
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = 1 << 20
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	server := &Server{
		config: config,
		deps:   deps,
		router: gin.New(),
		logger: logger,
	}
	if config.RateLimit.Enabled {
		server.limiter = newIPRateLimiter(config.RateLimit.RequestsPerSecond, config.RateLimit.Burst, deps.Now)
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

// setupMiddleware configures middleware for the router
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(s.metricsMiddleware())
	s.router.Use(s.loggingMiddleware())
	s.router.Use(s.corsMiddleware())
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.HealthCheck)
	if s.deps.Metrics != nil && s.config.MetricsPath != "" {
		s.router.GET(s.config.MetricsPath, gin.WrapH(s.deps.Metrics.Handler()))
	}

	api := s.router.Group("/api")
	{
		throttled := api.Group("", s.rateLimitMiddleware())
		throttled.POST("/apply/:kind", s.Apply)
		throttled.POST("/upload", s.Upload)
		throttled.POST("/admin/login", s.Login)

		api.GET("/status", s.Status)
		api.GET("/files/:key", s.File)

		admin := api.Group("/admin", s.authMiddleware())
		admin.GET("/requests", s.ListRequests)
		admin.GET("/requests/export", s.Export)
		admin.GET("/requests/:id", s.GetRequest)
		admin.POST("/requests/approve", s.ProcessRequest)
		admin.GET("/stats", s.Stats)
		admin.GET("/calendar", s.CalendarView)
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	addr := s.Address()

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("Starting HTTP server", "address", addr)

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("HTTP server shutdown requested")
		return s.Stop()
	case err := <-errCh:
		s.logger.Error("HTTP server error", "error", err)
		return err
	}
}

// Stop gracefully stops the HTTP server
func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("Stopping HTTP server")

	timeout := s.config.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error", "error", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

// Router returns the underlying gin router (for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}
