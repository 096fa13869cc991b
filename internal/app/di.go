// Package app provides the dependency injection container that assembles the
// application components.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/jonboulle/clockwork"

	authService "github.com/allisson/tokenvault/internal/auth/service"
	"github.com/allisson/tokenvault/internal/config"
	credentialHTTP "github.com/allisson/tokenvault/internal/credential/http"
	credentialUseCase "github.com/allisson/tokenvault/internal/credential/usecase"
	credentialService "github.com/allisson/tokenvault/internal/credential/service"
	cryptoDomain "github.com/allisson/tokenvault/internal/crypto/domain"
	cryptoHTTP "github.com/allisson/tokenvault/internal/crypto/http"
	cryptoService "github.com/allisson/tokenvault/internal/crypto/service"
	"github.com/allisson/tokenvault/internal/database"
	"github.com/allisson/tokenvault/internal/http"
	"github.com/allisson/tokenvault/internal/metrics"
	"github.com/allisson/tokenvault/internal/provider"
)

// Container holds all application dependencies. Components are created on
// first access and cached; a failed initialisation is cached too.
type Container struct {
	config *config.Config

	// ctx is cancelled by Shutdown and bounds background goroutines owned by
	// components (e.g. rate limiter cleanup).
	ctx    context.Context
	cancel context.CancelFunc

	// Infrastructure
	logger          *slog.Logger
	clock           clockwork.Clock
	db              *sql.DB
	txManager       database.TxManager
	metricsProvider *metrics.Provider
	businessMetrics metrics.BusinessMetrics

	// Crypto
	kmsService      cryptoService.KMSService
	aeadManager     cryptoService.AEADManager
	keyRegistry     *cryptoDomain.KeyRegistry
	envelopeService cryptoService.EnvelopeService
	keyHandler      *cryptoHTTP.KeyHandler

	// Credentials
	tokenAccess       *credentialService.TokenAccess
	refresherRegistry *provider.Registry
	credentialRepo    credentialUseCase.CredentialRepository
	credentialUseCase credentialUseCase.CredentialUseCase
	rotationUseCase   credentialUseCase.RotationUseCase
	rotationWorker    *credentialUseCase.RotationWorker
	credentialHandler *credentialHTTP.CredentialHandler
	adminKeyService   authService.AdminKeyService

	// Servers
	httpServer    *http.Server
	metricsServer *http.MetricsServer

	mu                    sync.Mutex
	loggerInit            sync.Once
	clockInit             sync.Once
	dbInit                sync.Once
	txManagerInit         sync.Once
	metricsProviderInit   sync.Once
	businessMetricsInit   sync.Once
	kmsServiceInit        sync.Once
	aeadManagerInit       sync.Once
	keyRegistryInit       sync.Once
	envelopeServiceInit   sync.Once
	keyHandlerInit        sync.Once
	tokenAccessInit       sync.Once
	refresherRegistryInit sync.Once
	credentialRepoInit    sync.Once
	credentialUseCaseInit sync.Once
	rotationUseCaseInit   sync.Once
	rotationWorkerInit    sync.Once
	credentialHandlerInit sync.Once
	adminKeyServiceInit   sync.Once
	httpServerInit        sync.Once
	metricsServerInit     sync.Once
	initErrors            map[string]error
}

// NewContainer creates a new dependency injection container with the provided configuration.
func NewContainer(cfg *config.Config) *Container {
	ctx, cancel := context.WithCancel(context.Background())
	return &Container{
		config:     cfg,
		ctx:        ctx,
		cancel:     cancel,
		initErrors: make(map[string]error),
	}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// Logger returns the JSON logger configured with LOG_LEVEL.
func (c *Container) Logger() *slog.Logger {
	c.loggerInit.Do(func() {
		c.logger = c.initLogger()
	})
	return c.logger
}

// Clock returns the wall clock used by rotation and providers.
func (c *Container) Clock() clockwork.Clock {
	c.clockInit.Do(func() {
		c.clock = clockwork.NewRealClock()
	})
	return c.clock
}

// DB returns the database connection.
func (c *Container) DB() (*sql.DB, error) {
	c.dbInit.Do(func() {
		var err error
		c.db, err = c.initDB()
		c.remember("db", err)
	})
	return c.db, c.stored("db")
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() (database.TxManager, error) {
	c.txManagerInit.Do(func() {
		var err error
		c.txManager, err = c.initTxManager()
		c.remember("txManager", err)
	})
	return c.txManager, c.stored("txManager")
}

// MetricsProvider returns the metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	c.metricsProviderInit.Do(func() {
		if !c.config.MetricsEnabled {
			return
		}
		var err error
		c.metricsProvider, err = metrics.NewProvider(c.config.MetricsNamespace)
		c.remember("metricsProvider", err)
	})
	return c.metricsProvider, c.stored("metricsProvider")
}

// BusinessMetrics returns the use case metrics, a no-op when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	c.businessMetricsInit.Do(func() {
		var err error
		c.businessMetrics, err = c.initBusinessMetrics()
		c.remember("businessMetrics", err)
	})
	return c.businessMetrics, c.stored("businessMetrics")
}

// HTTPServer returns the admin API server with every route registered.
func (c *Container) HTTPServer() (*http.Server, error) {
	c.httpServerInit.Do(func() {
		var err error
		c.httpServer, err = c.initHTTPServer()
		c.remember("httpServer", err)
	})
	return c.httpServer, c.stored("httpServer")
}

// MetricsServer returns the metrics server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*http.MetricsServer, error) {
	c.metricsServerInit.Do(func() {
		var err error
		c.metricsServer, err = c.initMetricsServer()
		c.remember("metricsServer", err)
	})
	return c.metricsServer, c.stored("metricsServer")
}

// Shutdown releases every initialised resource: background goroutines,
// metrics, the database pool and the key material.
func (c *Container) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancel()

	var shutdownErrors []error

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("metrics provider shutdown: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			shutdownErrors = append(shutdownErrors, fmt.Errorf("database close: %w", err))
		}
	}

	if c.keyRegistry != nil {
		c.keyRegistry.Close()
	}

	return errors.Join(shutdownErrors...)
}

// remember caches a failed initialisation under name.
func (c *Container) remember(name string, err error) {
	if err == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initErrors[name] = err
}

// stored returns the cached initialisation error for name, if any.
func (c *Container) stored(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.initErrors[name]
}

func (c *Container) initLogger() *slog.Logger {
	var level slog.Level
	switch c.config.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}

func (c *Container) initDB() (*sql.DB, error) {
	db, err := database.Connect(c.ctx, database.Config{
		Driver:             c.config.DBDriver,
		ConnectionString:   c.config.DBConnectionString,
		MaxOpenConnections: c.config.DBMaxOpenConnections,
		MaxIdleConnections: c.config.DBMaxIdleConnections,
		ConnMaxLifetime:    c.config.DBConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

func (c *Container) initTxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for tx manager: %w", err)
	}
	return database.NewTxManager(db), nil
}

func (c *Container) initBusinessMetrics() (metrics.BusinessMetrics, error) {
	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider: %w", err)
	}
	if metricsProvider == nil {
		return metrics.NewNoOpBusinessMetrics(), nil
	}
	return metrics.NewBusinessMetrics(metricsProvider.MeterProvider(), c.config.MetricsNamespace)
}

func (c *Container) initHTTPServer() (*http.Server, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for http server: %w", err)
	}

	credentialHandler, err := c.CredentialHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get credential handler: %w", err)
	}

	keyHandler, err := c.KeyHandler()
	if err != nil {
		return nil, fmt.Errorf("failed to get key handler: %w", err)
	}

	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider: %w", err)
	}

	if c.config.AdminAPIKeyHash == "" {
		c.Logger().Warn("ADMIN_API_KEY_HASH is not set, every admin API request will be rejected")
	}

	server := http.NewServer(db, c.config.ServerHost, c.config.ServerPort, c.Logger())
	server.SetupRouter(
		c.ctx,
		c.config,
		credentialHandler,
		keyHandler,
		c.AdminKeyService(),
		metricsProvider,
	)
	return server, nil
}

func (c *Container) initMetricsServer() (*http.MetricsServer, error) {
	metricsProvider, err := c.MetricsProvider()
	if err != nil {
		return nil, fmt.Errorf("failed to get metrics provider: %w", err)
	}
	if metricsProvider == nil {
		return nil, nil
	}
	return http.NewMetricsServer(c.config.ServerHost, c.config.MetricsPort, c.Logger(), metricsProvider), nil
}
