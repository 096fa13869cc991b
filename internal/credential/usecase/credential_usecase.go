package usecase

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	cryptoDomain "github.com/allisson/tokenvault/internal/crypto/domain"
	cryptoService "github.com/allisson/tokenvault/internal/crypto/service"
	credentialDomain "github.com/allisson/tokenvault/internal/credential/domain"
	credentialService "github.com/allisson/tokenvault/internal/credential/service"
	"github.com/allisson/tokenvault/internal/database"
	"github.com/allisson/tokenvault/internal/errors"
)

// DefaultReEncryptBatchSize is used when ReEncryptBatch gets a non-positive batch size.
const DefaultReEncryptBatchSize = 100

type credentialUseCase struct {
	txManager       database.TxManager
	credentialRepo  CredentialRepository
	refreshers      RefresherRegistry
	envelopeService cryptoService.EnvelopeService
	tokenAccess     *credentialService.TokenAccess
	clock           clockwork.Clock
	logger          *slog.Logger
}

// NewCredentialUseCase creates a CredentialUseCase.
func NewCredentialUseCase(
	txManager database.TxManager,
	credentialRepo CredentialRepository,
	refreshers RefresherRegistry,
	envelopeService cryptoService.EnvelopeService,
	tokenAccess *credentialService.TokenAccess,
	clock clockwork.Clock,
	logger *slog.Logger,
) CredentialUseCase {
	return &credentialUseCase{
		txManager:       txManager,
		credentialRepo:  credentialRepo,
		refreshers:      refreshers,
		envelopeService: envelopeService,
		tokenAccess:     tokenAccess,
		clock:           clock,
		logger:          logger,
	}
}

// Link stores a newly linked account. Tokens are only ever stored sealed.
func (c *credentialUseCase) Link(
	ctx context.Context,
	input *credentialDomain.LinkCredentialInput,
) (*credentialDomain.Credential, error) {
	if _, err := c.refreshers.Get(input.Provider); err != nil {
		return nil, err
	}

	access, err := c.envelopeService.Encrypt(input.AccessToken)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encrypt access token")
	}

	var refresh *cryptoDomain.Envelope
	if input.RefreshToken != "" {
		refresh, err = c.envelopeService.Encrypt(input.RefreshToken)
		if err != nil {
			return nil, errors.Wrap(err, "failed to encrypt refresh token")
		}
	}

	now := c.clock.Now().UTC()
	config := credentialDomain.MetadataConfig(input.Metadata).WithTokens(access, refresh, credentialDomain.TokenSet{
		AccessToken:  input.AccessToken,
		RefreshToken: input.RefreshToken,
		ExpiresIn:    input.ExpiresIn,
		RetrievedAt:  now,
	}, false)

	credential := &credentialDomain.Credential{
		ID:          uuid.Must(uuid.NewV7()),
		Provider:    input.Provider,
		AccountName: input.AccountName,
		APIConfig:   config,
		Revision:    1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := c.credentialRepo.Create(ctx, credential); err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "credential linked",
		slog.String("credential_id", credential.ID.String()),
		slog.String("provider", credential.Provider),
		slog.Uint64("key_version", uint64(access.KeyVersion)),
	)
	return credential, nil
}

func (c *credentialUseCase) Get(ctx context.Context, id uuid.UUID) (*credentialDomain.Credential, error) {
	return c.credentialRepo.Get(ctx, id)
}

func (c *credentialUseCase) List(ctx context.Context, offset, limit int) ([]*credentialDomain.Credential, error) {
	return c.credentialRepo.List(ctx, offset, limit)
}

func (c *credentialUseCase) Delete(ctx context.Context, id uuid.UUID) error {
	return c.credentialRepo.Delete(ctx, id)
}

// Status reports how the tokens of a credential are stored and when they expire.
func (c *credentialUseCase) Status(ctx context.Context, id uuid.UUID) (*CredentialStatus, error) {
	credential, err := c.credentialRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	status := &CredentialStatus{
		Credential:        credential,
		Tokens:            c.tokenAccess.Inspect(credential.APIConfig),
		CurrentKeyVersion: c.envelopeService.CurrentKeyVersion(),
	}
	if expiresAt, ok := credential.APIConfig.ExpiresAt(); ok {
		status.ExpiresAt = expiresAt
	}
	return status, nil
}

func (c *credentialUseCase) ResolveAccessToken(ctx context.Context, id uuid.UUID) (string, error) {
	credential, err := c.credentialRepo.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return c.tokenAccess.ResolveAccessToken(ctx, credential.APIConfig)
}

func (c *credentialUseCase) ReEncrypt(
	ctx context.Context,
	id uuid.UUID,
	dropPlaintext bool,
) (*credentialDomain.ReEncryptResult, error) {
	credential, err := c.credentialRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return c.reEncrypt(ctx, credential, dropPlaintext)
}

func (c *credentialUseCase) reEncrypt(
	ctx context.Context,
	credential *credentialDomain.Credential,
	dropPlaintext bool,
) (*credentialDomain.ReEncryptResult, error) {
	if credential.APIConfig == nil {
		return nil, credentialDomain.ErrMissingConfiguration
	}

	result := &credentialDomain.ReEncryptResult{
		CredentialID: credential.ID,
		KeyVersion:   c.envelopeService.CurrentKeyVersion(),
	}

	next := credential.APIConfig.Clone()
	slots := []struct {
		field        credentialDomain.TokenField
		encryptedKey string
	}{
		{credential.APIConfig.AccessTokenField(), credentialDomain.KeyAccessTokenEncrypted},
		{credential.APIConfig.RefreshTokenField(), credentialDomain.KeyRefreshTokenEncrypted},
	}

	for _, slot := range slots {
		envelope, err := c.migrateField(slot.field)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to re-encrypt %s", slot.encryptedKey)
		}
		if envelope != nil {
			next[slot.encryptedKey] = envelope.ToMap()
			result.Changed = true
		}
	}

	if dropPlaintext && (next.Has(credentialDomain.KeyAccessToken) || next.Has(credentialDomain.KeyRefreshToken)) {
		next = next.WithoutPlaintext()
		result.Changed = true
	}

	if !result.Changed {
		return result, nil
	}

	err := c.txManager.WithTx(ctx, func(ctx context.Context) error {
		return c.credentialRepo.UpdateConfig(ctx, credential.ID, next, credential.Revision)
	})
	if err != nil {
		return nil, err
	}

	c.logger.InfoContext(ctx, "credential re-encrypted",
		slog.String("credential_id", credential.ID.String()),
		slog.Uint64("key_version", uint64(result.KeyVersion)),
		slog.Bool("plaintext_dropped", dropPlaintext),
	)
	return result, nil
}

// migrateField returns a new envelope for the slot, or nil when it needs no change.
func (c *credentialUseCase) migrateField(field credentialDomain.TokenField) (*cryptoDomain.Envelope, error) {
	switch field.Kind {
	case credentialDomain.TokenEncrypted:
		if !c.envelopeService.NeedsReEncryption(field.Envelope) {
			return nil, nil
		}
		return c.envelopeService.ReEncrypt(field.Envelope)
	case credentialDomain.TokenPlaintext:
		return c.envelopeService.Encrypt(field.Plaintext)
	case credentialDomain.TokenMalformed:
		return nil, field.Err
	default:
		return nil, nil
	}
}

func (c *credentialUseCase) ReEncryptBatch(
	ctx context.Context,
	batchSize int,
	dropPlaintext bool,
) (*credentialDomain.ReEncryptReport, error) {
	if batchSize <= 0 {
		batchSize = DefaultReEncryptBatchSize
	}

	start := c.clock.Now()
	report := &credentialDomain.ReEncryptReport{}
	for offset := 0; ; offset += batchSize {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		credentials, err := c.credentialRepo.List(ctx, offset, batchSize)
		if err != nil {
			return report, err
		}

		for _, credential := range credentials {
			report.Scanned++
			result, err := c.reEncrypt(ctx, credential, dropPlaintext)
			switch {
			case err != nil:
				report.Failed++
				c.logger.ErrorContext(ctx, "failed to re-encrypt credential",
					slog.String("credential_id", credential.ID.String()),
					slog.String("provider", credential.Provider),
					slog.Any("error", err),
				)
			case result.Changed:
				report.Migrated++
			default:
				report.Unchanged++
			}
		}

		if len(credentials) < batchSize {
			break
		}
	}

	c.logger.InfoContext(ctx, "re-encryption finished",
		slog.Int("scanned", report.Scanned),
		slog.Int("migrated", report.Migrated),
		slog.Int("unchanged", report.Unchanged),
		slog.Int("failed", report.Failed),
		slog.Duration("duration", c.clock.Since(start)),
	)
	return report, nil
}
