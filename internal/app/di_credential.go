package app

import (
	"fmt"
	nethttp "net/http"

	authService "github.com/allisson/tokenvault/internal/auth/service"
	credentialHTTP "github.com/allisson/tokenvault/internal/credential/http"
	credentialRepository "github.com/allisson/tokenvault/internal/credential/repository"
	credentialService "github.com/allisson/tokenvault/internal/credential/service"
	credentialUseCase "github.com/allisson/tokenvault/internal/credential/usecase"
	"github.com/allisson/tokenvault/internal/database"
	"github.com/allisson/tokenvault/internal/provider"
)

// TokenAccess returns the token compatibility layer.
func (c *Container) TokenAccess() (*credentialService.TokenAccess, error) {
	c.tokenAccessInit.Do(func() {
		var err error
		c.tokenAccess, err = c.initTokenAccess()
		c.remember("tokenAccess", err)
	})
	return c.tokenAccess, c.stored("tokenAccess")
}

// RefresherRegistry returns the provider refreshers built from OAUTH_PROVIDERS.
func (c *Container) RefresherRegistry() (*provider.Registry, error) {
	c.refresherRegistryInit.Do(func() {
		var err error
		c.refresherRegistry, err = c.initRefresherRegistry()
		c.remember("refresherRegistry", err)
	})
	return c.refresherRegistry, c.stored("refresherRegistry")
}

// CredentialRepository returns the credential repository for the configured driver.
func (c *Container) CredentialRepository() (credentialUseCase.CredentialRepository, error) {
	c.credentialRepoInit.Do(func() {
		var err error
		c.credentialRepo, err = c.initCredentialRepository()
		c.remember("credentialRepo", err)
	})
	return c.credentialRepo, c.stored("credentialRepo")
}

// CredentialUseCase returns the credential use case, decorated with metrics.
func (c *Container) CredentialUseCase() (credentialUseCase.CredentialUseCase, error) {
	c.credentialUseCaseInit.Do(func() {
		var err error
		c.credentialUseCase, err = c.initCredentialUseCase()
		c.remember("credentialUseCase", err)
	})
	return c.credentialUseCase, c.stored("credentialUseCase")
}

// RotationUseCase returns the token rotation use case, decorated with metrics.
func (c *Container) RotationUseCase() (credentialUseCase.RotationUseCase, error) {
	c.rotationUseCaseInit.Do(func() {
		var err error
		c.rotationUseCase, err = c.initRotationUseCase()
		c.remember("rotationUseCase", err)
	})
	return c.rotationUseCase, c.stored("rotationUseCase")
}

// RotationWorker returns the scheduled rotation worker.
func (c *Container) RotationWorker() (*credentialUseCase.RotationWorker, error) {
	c.rotationWorkerInit.Do(func() {
		var err error
		c.rotationWorker, err = c.initRotationWorker()
		c.remember("rotationWorker", err)
	})
	return c.rotationWorker, c.stored("rotationWorker")
}

// CredentialHandler returns the credential HTTP handler.
func (c *Container) CredentialHandler() (*credentialHTTP.CredentialHandler, error) {
	c.credentialHandlerInit.Do(func() {
		var err error
		c.credentialHandler, err = c.initCredentialHandler()
		c.remember("credentialHandler", err)
	})
	return c.credentialHandler, c.stored("credentialHandler")
}

// AdminKeyService returns the admin API key service.
func (c *Container) AdminKeyService() authService.AdminKeyService {
	c.adminKeyServiceInit.Do(func() {
		c.adminKeyService = authService.NewAdminKeyService()
	})
	return c.adminKeyService
}

func (c *Container) initTokenAccess() (*credentialService.TokenAccess, error) {
	envelopeService, err := c.EnvelopeService()
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope service for token access: %w", err)
	}
	return credentialService.NewTokenAccess(envelopeService, c.config.PlaintextFallbackEnabled, c.Logger()), nil
}

func (c *Container) initRefresherRegistry() (*provider.Registry, error) {
	configs := make([]provider.Config, 0, len(c.config.Providers))
	for _, p := range c.config.Providers {
		configs = append(configs, provider.Config{
			Name:             p.Name,
			ClientID:         p.ClientID,
			ClientSecret:     p.ClientSecret,
			TokenURL:         p.TokenURL,
			RefreshSupported: p.RefreshSupported,
			RateLimitPerSec:  p.RateLimitPerSec,
			RateLimitBurst:   p.RateLimitBurst,
		})
	}

	httpClient := &nethttp.Client{Timeout: c.config.TokenRefreshTimeout}
	registry, err := provider.NewRegistryFromConfig(configs, httpClient, c.Clock(), c.Logger())
	if err != nil {
		return nil, fmt.Errorf("failed to configure token providers: %w", err)
	}
	return registry, nil
}

func (c *Container) initCredentialRepository() (credentialUseCase.CredentialRepository, error) {
	db, err := c.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database for credential repository: %w", err)
	}

	switch c.config.DBDriver {
	case database.DriverPostgres:
		return credentialRepository.NewPostgreSQLCredentialRepository(db), nil
	case database.DriverMySQL:
		return credentialRepository.NewMySQLCredentialRepository(db), nil
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", c.config.DBDriver)
	}
}

func (c *Container) initCredentialUseCase() (credentialUseCase.CredentialUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for credential use case: %w", err)
	}

	credentialRepo, err := c.CredentialRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get credential repository for credential use case: %w", err)
	}

	refreshers, err := c.RefresherRegistry()
	if err != nil {
		return nil, err
	}

	envelopeService, err := c.EnvelopeService()
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope service for credential use case: %w", err)
	}

	tokenAccess, err := c.TokenAccess()
	if err != nil {
		return nil, err
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics: %w", err)
	}

	useCase := credentialUseCase.NewCredentialUseCase(
		txManager,
		credentialRepo,
		refreshers,
		envelopeService,
		tokenAccess,
		c.Clock(),
		c.Logger(),
	)
	return credentialUseCase.NewCredentialUseCaseWithMetrics(useCase, businessMetrics), nil
}

func (c *Container) initRotationUseCase() (credentialUseCase.RotationUseCase, error) {
	txManager, err := c.TxManager()
	if err != nil {
		return nil, fmt.Errorf("failed to get tx manager for rotation use case: %w", err)
	}

	credentialRepo, err := c.CredentialRepository()
	if err != nil {
		return nil, fmt.Errorf("failed to get credential repository for rotation use case: %w", err)
	}

	refreshers, err := c.RefresherRegistry()
	if err != nil {
		return nil, err
	}

	envelopeService, err := c.EnvelopeService()
	if err != nil {
		return nil, fmt.Errorf("failed to get envelope service for rotation use case: %w", err)
	}

	tokenAccess, err := c.TokenAccess()
	if err != nil {
		return nil, err
	}

	businessMetrics, err := c.BusinessMetrics()
	if err != nil {
		return nil, fmt.Errorf("failed to get business metrics: %w", err)
	}

	useCase := credentialUseCase.NewRotationUseCase(
		credentialUseCase.RotationConfig{
			Lookahead:         c.config.TokenRotationLookahead,
			RefreshTimeout:    c.config.TokenRefreshTimeout,
			Concurrency:       c.config.TokenRotationConcurrency,
			BatchSize:         c.config.TokenRotationBatchSize,
			PlaintextLockstep: c.config.LegacyPlaintextLockstep,
		},
		txManager,
		credentialRepo,
		refreshers,
		envelopeService,
		tokenAccess,
		c.Clock(),
		c.Logger(),
	)
	return credentialUseCase.NewRotationUseCaseWithMetrics(useCase, businessMetrics), nil
}

func (c *Container) initRotationWorker() (*credentialUseCase.RotationWorker, error) {
	rotationUseCase, err := c.RotationUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get rotation use case for worker: %w", err)
	}
	return credentialUseCase.NewRotationWorker(
		rotationUseCase,
		c.config.TokenRotationInterval,
		c.Clock(),
		c.Logger(),
	), nil
}

func (c *Container) initCredentialHandler() (*credentialHTTP.CredentialHandler, error) {
	credentialUC, err := c.CredentialUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get credential use case for handler: %w", err)
	}

	rotationUseCase, err := c.RotationUseCase()
	if err != nil {
		return nil, fmt.Errorf("failed to get rotation use case for handler: %w", err)
	}

	return credentialHTTP.NewCredentialHandler(credentialUC, rotationUseCase, c.Logger()), nil
}
