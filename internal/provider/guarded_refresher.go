package provider

import (
	"context"
	"log/slog"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	credentialDomain "github.com/allisson/tokenvault/internal/credential/domain"
	credentialUsecase "github.com/allisson/tokenvault/internal/credential/usecase"
	"github.com/allisson/tokenvault/internal/errors"
)

// GuardedRefresher limits the request rate to a provider and stops calling it
// while it keeps failing.
type GuardedRefresher struct {
	name    string
	next    credentialUsecase.TokenRefresher
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
}

// NewGuardedRefresher wraps next. The breaker opens after
// cfg.BreakerMaxFailures consecutive transient failures and probes again
// after cfg.BreakerTimeout.
func NewGuardedRefresher(
	cfg Config,
	next credentialUsecase.TokenRefresher,
	logger *slog.Logger,
) *GuardedRefresher {
	cfg = cfg.withDefaults()

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerMaxFailures
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !isTransient(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("provider circuit breaker state changed",
					slog.String("provider", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			}
		},
	}

	return &GuardedRefresher{
		name:    cfg.Name,
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (g *GuardedRefresher) Refresh(ctx context.Context, refreshToken string) (*credentialDomain.TokenSet, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &credentialDomain.RefreshError{Provider: g.name, Err: errors.Wrap(err, "rate limited")}
	}

	v, err := g.breaker.Execute(func() (any, error) {
		return g.next.Refresh(ctx, refreshToken)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, &credentialDomain.RefreshError{Provider: g.name, Err: err}
		}
		return nil, err
	}
	return v.(*credentialDomain.TokenSet), nil
}

// State returns the breaker state.
func (g *GuardedRefresher) State() gobreaker.State {
	return g.breaker.State()
}

// isTransient reports whether err says something about the provider's health.
// Revoked grants and unsupported refreshes are answers, not outages.
func isTransient(err error) bool {
	if errors.Is(err, credentialDomain.ErrRefreshUnsupported) || errors.Is(err, context.Canceled) {
		return false
	}
	var refreshErr *credentialDomain.RefreshError
	if errors.As(err, &refreshErr) && refreshErr.Revoked {
		return false
	}
	return true
}
