// Package http provides the admin API server, its middleware and the metrics server.
package http

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	authHTTP "github.com/allisson/tokenvault/internal/auth/http"
	authService "github.com/allisson/tokenvault/internal/auth/service"
	"github.com/allisson/tokenvault/internal/config"
	credentialHTTP "github.com/allisson/tokenvault/internal/credential/http"
	cryptoHTTP "github.com/allisson/tokenvault/internal/crypto/http"
	"github.com/allisson/tokenvault/internal/metrics"
)

const readinessTimeout = 2 * time.Second

// Server is the admin API HTTP server.
type Server struct {
	db     *sql.DB
	server *http.Server
	router *gin.Engine
	logger *slog.Logger
}

// NewServer creates a server bound to host:port. The database is used by the
// readiness probe only.
func NewServer(db *sql.DB, host string, port int, logger *slog.Logger) *Server {
	return &Server{
		db:     db,
		logger: logger,
		server: &http.Server{
			Addr:         fmt.Sprintf("%s:%d", host, port),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 45 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

// SetupRouter registers every route. Everything under /v1 requires the admin
// bearer key; /health and /ready are public.
func (s *Server) SetupRouter(
	ctx context.Context,
	cfg *config.Config,
	credentialHandler *credentialHTTP.CredentialHandler,
	keyHandler *cryptoHTTP.KeyHandler,
	keyService authService.AdminKeyService,
	metricsProvider *metrics.Provider,
) {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestid.New(requestid.WithGenerator(func() string {
		return uuid.Must(uuid.NewV7()).String()
	})))
	router.Use(CustomLoggerMiddleware(s.logger))

	if metricsProvider != nil {
		router.Use(metrics.HTTPMetricsMiddleware(metricsProvider.MeterProvider(), cfg.MetricsNamespace))
	}

	if corsMiddleware := createCORSMiddleware(cfg.CORSEnabled, cfg.CORSAllowOrigins, s.logger); corsMiddleware != nil {
		router.Use(corsMiddleware)
	}

	router.GET("/health", s.healthHandler)
	router.GET("/ready", s.readinessHandler)

	v1 := router.Group("/v1")
	if cfg.RateLimitEnabled {
		v1.Use(RateLimitMiddleware(ctx, cfg.RateLimitRequestsPerSec, cfg.RateLimitBurst, s.logger))
	}
	v1.Use(authHTTP.AdminAuthMiddleware(keyService, cfg.AdminAPIKeyHash, s.logger))

	credentials := v1.Group("/credentials")
	{
		credentials.POST("", credentialHandler.LinkHandler)
		credentials.GET("", credentialHandler.ListHandler)
		credentials.GET("/:id", credentialHandler.GetHandler)
		credentials.DELETE("/:id", credentialHandler.DeleteHandler)
		credentials.POST("/:id/rotate", credentialHandler.RotateHandler)
		credentials.POST("/:id/reencrypt", credentialHandler.ReEncryptHandler)
	}

	v1.GET("/encryption/key", keyHandler.GetHandler)

	s.router = router
}

// Handler returns the configured router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves requests until Shutdown is called.
func (s *Server) Start(ctx context.Context) error {
	if s.router == nil {
		return fmt.Errorf("router is not configured")
	}
	s.server.Handler = s.router

	s.logger.Info("starting http server", slog.String("addr", s.server.Addr))

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.server.Shutdown(ctx)
}

func (s *Server) healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

// readinessHandler reports ready only while the database answers a ping.
func (s *Server) readinessHandler(c *gin.Context) {
	database := "ok"
	if s.db == nil {
		database = "error"
	} else {
		ctx, cancel := context.WithTimeout(c.Request.Context(), readinessTimeout)
		defer cancel()
		if err := s.db.PingContext(ctx); err != nil {
			s.logger.Warn("readiness check failed", slog.Any("error", err))
			database = "error"
		}
	}

	status, code := "ready", http.StatusOK
	if database != "ok" {
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	c.JSON(code, gin.H{
		"status":     status,
		"components": gin.H{"database": database},
	})
}
