package provider

import (
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/jonboulle/clockwork"

	credentialDomain "github.com/allisson/tokenvault/internal/credential/domain"
	credentialUsecase "github.com/allisson/tokenvault/internal/credential/usecase"
	"github.com/allisson/tokenvault/internal/errors"
)

// Registry maps provider names to refreshers. Names are case-insensitive.
type Registry struct {
	mu         sync.RWMutex
	refreshers map[string]credentialUsecase.TokenRefresher
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{refreshers: make(map[string]credentialUsecase.TokenRefresher)}
}

// NewRegistryFromConfig registers a guarded refresher for every provider.
// Providers with RefreshSupported unset get an UnsupportedRefresher.
func NewRegistryFromConfig(
	configs []Config,
	httpClient *http.Client,
	clock clockwork.Clock,
	logger *slog.Logger,
) (*Registry, error) {
	registry := NewRegistry()
	for _, cfg := range configs {
		cfg = cfg.withDefaults()
		if cfg.Name == "" {
			return nil, errors.Wrap(errors.ErrInvalidInput, "provider name is required")
		}

		var refresher credentialUsecase.TokenRefresher = NewUnsupportedRefresher(cfg.Name)
		if cfg.RefreshSupported {
			if cfg.TokenURL == "" {
				return nil, errors.Wrapf(errors.ErrInvalidInput, "provider %s: token url is required", cfg.Name)
			}
			refresher = NewGuardedRefresher(cfg, NewOAuth2Refresher(cfg, httpClient, clock), logger)
		}

		if err := registry.Register(cfg.Name, refresher); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register adds a refresher. Registering a name twice is an error.
func (r *Registry) Register(name string, refresher credentialUsecase.TokenRefresher) error {
	name = normalizeName(name)

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.refreshers[name]; ok {
		return errors.Wrapf(errors.ErrConflict, "provider %s already registered", name)
	}
	r.refreshers[name] = refresher
	return nil
}

// Get returns the refresher of provider, or ErrUnknownProvider.
func (r *Registry) Get(provider string) (credentialUsecase.TokenRefresher, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	refresher, ok := r.refreshers[normalizeName(provider)]
	if !ok {
		return nil, errors.Wrap(credentialDomain.ErrUnknownProvider, provider)
	}
	return refresher, nil
}

// Names returns the registered provider names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.refreshers))
	for name := range r.refreshers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var _ credentialUsecase.RefresherRegistry = (*Registry)(nil)
