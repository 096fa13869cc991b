package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	cryptoService "github.com/allisson/tokenvault/internal/crypto/service"
	credentialDomain "github.com/allisson/tokenvault/internal/credential/domain"
	credentialService "github.com/allisson/tokenvault/internal/credential/service"
	"github.com/allisson/tokenvault/internal/database"
	"github.com/allisson/tokenvault/internal/errors"
)

// RotationConfig holds the rotation settings.
type RotationConfig struct {
	// Lookahead is how far ahead of expiry a token is refreshed.
	Lookahead time.Duration
	// RefreshTimeout bounds each provider call.
	RefreshTimeout time.Duration
	// Concurrency limits parallel rotations within a sweep.
	Concurrency int
	// BatchSize is the page size used to list credentials.
	BatchSize int
	// PlaintextLockstep keeps existing legacy plaintext fields updated.
	PlaintextLockstep bool
}

func (c RotationConfig) withDefaults() RotationConfig {
	if c.Lookahead <= 0 {
		c.Lookahead = time.Hour
	}
	if c.RefreshTimeout <= 0 {
		c.RefreshTimeout = 30 * time.Second
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	return c
}

type rotationUseCase struct {
	config          RotationConfig
	txManager       database.TxManager
	credentialRepo  CredentialRepository
	refreshers      RefresherRegistry
	envelopeService cryptoService.EnvelopeService
	tokenAccess     *credentialService.TokenAccess
	clock           clockwork.Clock
	logger          *slog.Logger
	inflight        singleflight.Group
}

// NewRotationUseCase creates a RotationUseCase.
func NewRotationUseCase(
	config RotationConfig,
	txManager database.TxManager,
	credentialRepo CredentialRepository,
	refreshers RefresherRegistry,
	envelopeService cryptoService.EnvelopeService,
	tokenAccess *credentialService.TokenAccess,
	clock clockwork.Clock,
	logger *slog.Logger,
) RotationUseCase {
	return &rotationUseCase{
		config:          config.withDefaults(),
		txManager:       txManager,
		credentialRepo:  credentialRepo,
		refreshers:      refreshers,
		envelopeService: envelopeService,
		tokenAccess:     tokenAccess,
		clock:           clock,
		logger:          logger,
	}
}

func (r *rotationUseCase) Sweep(ctx context.Context) (*credentialDomain.SweepReport, error) {
	report := &credentialDomain.SweepReport{StartedAt: r.clock.Now().UTC()}
	var mu sync.Mutex

	for offset := 0; ; offset += r.config.BatchSize {
		credentials, err := r.credentialRepo.List(ctx, offset, r.config.BatchSize)
		if err != nil {
			return report, errors.Wrap(err, "failed to list credentials")
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(r.config.Concurrency)
		for _, credential := range credentials {
			g.Go(func() error {
				result := r.sweepOne(gctx, credential)
				mu.Lock()
				report.Add(result)
				mu.Unlock()
				return nil
			})
		}
		_ = g.Wait()

		if len(credentials) < r.config.BatchSize {
			break
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
	}

	report.Duration = r.clock.Since(report.StartedAt)
	r.logger.InfoContext(ctx, "token rotation sweep finished",
		slog.Int("evaluated", report.Evaluated),
		slog.Int("fresh", report.Fresh),
		slog.Int("refreshed", report.Refreshed),
		slog.Int("failed", report.Failed),
		slog.Duration("duration", report.Duration),
	)
	return report, nil
}

// sweepOne skips fresh credentials without touching the database again. Due
// ones go through Rotate, which re-reads the row under the in-flight guard.
func (r *rotationUseCase) sweepOne(
	ctx context.Context,
	credential *credentialDomain.Credential,
) *credentialDomain.RotationResult {
	result := r.evaluate(credential)
	if result.State == credentialDomain.StateFresh {
		return result
	}

	rotated, err := r.Rotate(ctx, credential.ID, false)
	if err != nil {
		return r.fail(ctx, result, err)
	}
	return rotated
}

// Rotate shares one rotation per credential and mode among concurrent callers.
// A forced call never joins an unforced flight, since that flight may stop at
// fresh. The shared call is detached from the caller that started it and is
// bounded by the refresh timeout; a caller whose context ends stops waiting
// without failing the others.
func (r *rotationUseCase) Rotate(
	ctx context.Context,
	id uuid.UUID,
	force bool,
) (*credentialDomain.RotationResult, error) {
	key := id.String()
	if force {
		key += ":force"
	}

	flightCtx := context.WithoutCancel(ctx)
	ch := r.inflight.DoChan(key, func() (any, error) {
		credential, err := r.credentialRepo.Get(flightCtx, id)
		if err != nil {
			return nil, err
		}
		return r.rotate(flightCtx, credential, force), nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		result := *res.Val.(*credentialDomain.RotationResult)
		return &result, nil
	}
}

// evaluate applies the fresh -> nearing-expiry transition. Unknown expiry stays fresh.
func (r *rotationUseCase) evaluate(credential *credentialDomain.Credential) *credentialDomain.RotationResult {
	result := &credentialDomain.RotationResult{
		CredentialID: credential.ID,
		Provider:     credential.Provider,
		State:        credentialDomain.StateFresh,
	}

	expiresAt, ok := credential.APIConfig.ExpiresAt()
	if !ok {
		return result
	}
	result.ExpiresAt = expiresAt

	if !expiresAt.After(r.clock.Now().Add(r.config.Lookahead)) {
		result.State = credentialDomain.StateNearingExpiry
	}
	return result
}

func (r *rotationUseCase) rotate(
	ctx context.Context,
	credential *credentialDomain.Credential,
	force bool,
) *credentialDomain.RotationResult {
	result := r.evaluate(credential)
	if result.State == credentialDomain.StateFresh && !force {
		return result
	}

	result.State = credentialDomain.StateRefreshing
	r.logger.InfoContext(ctx, "refreshing credential tokens",
		slog.String("credential_id", credential.ID.String()),
		slog.String("provider", credential.Provider),
		slog.Bool("forced", force),
	)

	refreshToken, tokens, err := r.refresh(ctx, credential)
	if err != nil {
		return r.fail(ctx, result, err)
	}

	if err := r.persist(ctx, credential, refreshToken, tokens); err != nil {
		return r.fail(ctx, result, err)
	}

	result.State = credentialDomain.StateRefreshed
	result.ExpiresAt = tokens.ExpiresAt()
	r.logger.InfoContext(ctx, "credential tokens refreshed",
		slog.String("credential_id", credential.ID.String()),
		slog.String("provider", credential.Provider),
		slog.String("state", string(result.State)),
		slog.Uint64("key_version", uint64(r.envelopeService.CurrentKeyVersion())),
	)
	return result
}

// refresh calls the provider and returns the refresh token it used with the new token set.
func (r *rotationUseCase) refresh(
	ctx context.Context,
	credential *credentialDomain.Credential,
) (string, *credentialDomain.TokenSet, error) {
	refresher, err := r.refreshers.Get(credential.Provider)
	if err != nil {
		return "", nil, err
	}

	refreshToken, err := r.tokenAccess.ResolveRefreshToken(ctx, credential.APIConfig)
	if err != nil {
		return "", nil, err
	}

	refreshCtx, cancel := context.WithTimeout(ctx, r.config.RefreshTimeout)
	defer cancel()

	tokens, err := refresher.Refresh(refreshCtx, refreshToken)
	if err != nil {
		if errors.Is(refreshCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return "", nil, fmt.Errorf("provider did not answer within %s: %w", r.config.RefreshTimeout, context.DeadlineExceeded)
		}
		return "", nil, err
	}
	if tokens == nil || tokens.AccessToken == "" {
		return "", nil, &credentialDomain.RefreshError{
			Provider: credential.Provider,
			Err:      errors.New("provider returned no access token"),
		}
	}
	refreshed := *tokens
	if refreshed.RetrievedAt.IsZero() {
		refreshed.RetrievedAt = r.clock.Now().UTC()
	}
	return refreshToken, &refreshed, nil
}

// persist seals the new tokens, stages the new blob and writes it only if the
// credential has not changed since it was read.
func (r *rotationUseCase) persist(
	ctx context.Context,
	credential *credentialDomain.Credential,
	previousRefreshToken string,
	tokens *credentialDomain.TokenSet,
) error {
	staged := *tokens
	if staged.RefreshToken == "" {
		staged.RefreshToken = previousRefreshToken
	}

	access, err := r.envelopeService.Encrypt(staged.AccessToken)
	if err != nil {
		return errors.Wrap(err, "failed to encrypt access token")
	}
	refresh, err := r.envelopeService.Encrypt(staged.RefreshToken)
	if err != nil {
		return errors.Wrap(err, "failed to encrypt refresh token")
	}

	config := credential.APIConfig.WithTokens(access, refresh, staged, r.config.PlaintextLockstep)

	return r.txManager.WithTx(ctx, func(ctx context.Context) error {
		return r.credentialRepo.UpdateConfig(ctx, credential.ID, config, credential.Revision)
	})
}

func (r *rotationUseCase) fail(
	ctx context.Context,
	result *credentialDomain.RotationResult,
	err error,
) *credentialDomain.RotationResult {
	result.State = credentialDomain.StateRefreshFailed
	result.ErrorKind = credentialDomain.ClassifyRotationError(err)
	result.Err = err

	r.logger.ErrorContext(ctx, "token rotation failed",
		slog.String("credential_id", result.CredentialID.String()),
		slog.String("provider", result.Provider),
		slog.String("state", string(result.State)),
		slog.String("error_kind", string(result.ErrorKind)),
		slog.Any("error", err),
	)
	return result
}
