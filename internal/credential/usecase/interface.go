// Package usecase orchestrates credential storage, token encryption and
// provider refreshes.
package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	credentialDomain "github.com/allisson/tokenvault/internal/credential/domain"
	credentialService "github.com/allisson/tokenvault/internal/credential/service"
)

// CredentialRepository persists credentials.
type CredentialRepository interface {
	Create(ctx context.Context, credential *credentialDomain.Credential) error
	Get(ctx context.Context, id uuid.UUID) (*credentialDomain.Credential, error)
	List(ctx context.Context, offset, limit int) ([]*credentialDomain.Credential, error)
	// UpdateConfig replaces api_config only when the stored revision still equals
	// expectedRevision, and bumps the revision.
	UpdateConfig(
		ctx context.Context,
		id uuid.UUID,
		config credentialDomain.APIConfig,
		expectedRevision uint,
	) error
	Delete(ctx context.Context, id uuid.UUID) error
}

// TokenRefresher exchanges a refresh token for a new token set at one provider.
type TokenRefresher interface {
	Refresh(ctx context.Context, refreshToken string) (*credentialDomain.TokenSet, error)
}

// RefresherRegistry looks up the refresher of a provider. Unknown providers
// return ErrUnknownProvider.
type RefresherRegistry interface {
	Get(provider string) (TokenRefresher, error)
}

// CredentialStatus describes a credential without exposing any token.
type CredentialStatus struct {
	Credential *credentialDomain.Credential
	Tokens     credentialService.ConfigStatus
	// ExpiresAt is the zero time when the stored blob carries no expiry.
	ExpiresAt         time.Time
	CurrentKeyVersion uint
}

// CredentialUseCase manages linked credentials and their stored tokens.
type CredentialUseCase interface {
	Link(ctx context.Context, input *credentialDomain.LinkCredentialInput) (*credentialDomain.Credential, error)
	Get(ctx context.Context, id uuid.UUID) (*credentialDomain.Credential, error)
	List(ctx context.Context, offset, limit int) ([]*credentialDomain.Credential, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Status(ctx context.Context, id uuid.UUID) (*CredentialStatus, error)

	// ResolveAccessToken returns the access token for an immediate API call.
	ResolveAccessToken(ctx context.Context, id uuid.UUID) (string, error)

	// ReEncrypt seals plaintext-only tokens and envelopes under old keys with the
	// current key. With dropPlaintext the legacy plaintext fields are removed.
	ReEncrypt(ctx context.Context, id uuid.UUID, dropPlaintext bool) (*credentialDomain.ReEncryptResult, error)

	// ReEncryptBatch runs ReEncrypt over every credential, batchSize at a time.
	ReEncryptBatch(ctx context.Context, batchSize int, dropPlaintext bool) (*credentialDomain.ReEncryptReport, error)
}

// RotationUseCase refreshes tokens that are about to expire.
type RotationUseCase interface {
	// Sweep evaluates every credential once. Only a listing failure is returned;
	// per-credential failures are counted in the report.
	Sweep(ctx context.Context) (*credentialDomain.SweepReport, error)

	// Rotate evaluates one credential, refreshing it when it is nearing expiry or
	// force is set. Refresh failures are reported in the result, not as an error.
	Rotate(ctx context.Context, id uuid.UUID, force bool) (*credentialDomain.RotationResult, error)
}
