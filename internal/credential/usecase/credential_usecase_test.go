package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/tokenvault/internal/crypto/domain"
	cryptoService "github.com/allisson/tokenvault/internal/crypto/service"
	credentialDomain "github.com/allisson/tokenvault/internal/credential/domain"
	credentialService "github.com/allisson/tokenvault/internal/credential/service"
)

var linkTime = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newCredentialUseCase(
	repo *mockCredentialRepository,
	envelopes cryptoService.EnvelopeService,
) CredentialUseCase {
	return NewCredentialUseCase(
		passthroughTxManager{},
		repo,
		staticRefreshers{"linkedin": &mockTokenRefresher{}},
		envelopes,
		credentialService.NewTokenAccess(envelopes, true, nil),
		clockwork.NewFakeClockAt(linkTime),
		discardLogger(),
	)
}

func TestCredentialUseCase_Link(t *testing.T) {
	ctx := context.Background()

	t.Run("Success_StoresOnlySealedTokens", func(t *testing.T) {
		envelopes := newEnvelopeService(t, 2, 1)
		repo := &mockCredentialRepository{}
		uc := newCredentialUseCase(repo, envelopes)

		var stored *credentialDomain.Credential
		repo.On("Create", ctx, mock.AnythingOfType("*domain.Credential")).
			Run(func(args mock.Arguments) {
				stored = args.Get(1).(*credentialDomain.Credential)
			}).
			Return(nil).
			Once()

		credential, err := uc.Link(ctx, &credentialDomain.LinkCredentialInput{
			Provider:     "linkedin",
			AccountName:  "acme",
			AccessToken:  "access-1",
			RefreshToken: "refresh-1",
			ExpiresIn:    time.Hour,
			Metadata:     map[string]any{"scope": "r_liteprofile", credentialDomain.KeyAccessToken: "stale"},
		})

		require.NoError(t, err)
		require.Same(t, stored, credential)
		assert.Equal(t, uint(1), credential.Revision)
		assert.Equal(t, linkTime, credential.CreatedAt)
		assert.Equal(t, "r_liteprofile", credential.APIConfig.String("scope"))
		assert.False(t, credential.APIConfig.Has(credentialDomain.KeyAccessToken))
		assert.False(t, credential.APIConfig.Has(credentialDomain.KeyRefreshToken))
		assert.Equal(t, "access-1", openToken(t, envelopes, credential.APIConfig, credentialDomain.KeyAccessTokenEncrypted))
		assert.Equal(t, "refresh-1", openToken(t, envelopes, credential.APIConfig, credentialDomain.KeyRefreshTokenEncrypted))

		expiresAt, ok := credential.APIConfig.ExpiresAt()
		require.True(t, ok)
		assert.Equal(t, linkTime.Add(time.Hour), expiresAt)
		repo.AssertExpectations(t)
	})

	t.Run("Success_WithoutRefreshToken", func(t *testing.T) {
		envelopes := newEnvelopeService(t, 1)
		repo := &mockCredentialRepository{}
		uc := newCredentialUseCase(repo, envelopes)

		repo.On("Create", ctx, mock.Anything).Return(nil).Once()

		credential, err := uc.Link(ctx, &credentialDomain.LinkCredentialInput{
			Provider:    "linkedin",
			AccessToken: "access-1",
		})

		require.NoError(t, err)
		assert.False(t, credential.APIConfig.Has(credentialDomain.KeyRefreshTokenEncrypted))
		_, ok := credential.APIConfig.ExpiresAt()
		assert.False(t, ok)
	})

	t.Run("Success_MetadataCannotSupplyTokens", func(t *testing.T) {
		envelopes := newEnvelopeService(t, 1)
		repo := &mockCredentialRepository{}
		uc := newCredentialUseCase(repo, envelopes)

		foreign, err := envelopes.Encrypt("refresh-of-another-account")
		require.NoError(t, err)

		repo.On("Create", ctx, mock.Anything).Return(nil).Once()

		credential, err := uc.Link(ctx, &credentialDomain.LinkCredentialInput{
			Provider:    "linkedin",
			AccessToken: "access-1",
			Metadata: map[string]any{
				"scope": "r_liteprofile",
				credentialDomain.KeyRefreshTokenEncrypted: foreign.ToMap(),
				credentialDomain.KeyRefreshToken:          "refresh-plain",
				credentialDomain.KeyExpiresAt:             "2099-01-01T00:00:00Z",
			},
		})

		require.NoError(t, err)
		assert.Equal(t, "r_liteprofile", credential.APIConfig.String("scope"))
		assert.False(t, credential.APIConfig.Has(credentialDomain.KeyRefreshTokenEncrypted))
		assert.False(t, credential.APIConfig.Has(credentialDomain.KeyRefreshToken))
		assert.False(t, credential.APIConfig.Has(credentialDomain.KeyExpiresAt))
		assert.Equal(t, "access-1", openToken(t, envelopes, credential.APIConfig, credentialDomain.KeyAccessTokenEncrypted))
	})

	t.Run("Error_UnknownProvider", func(t *testing.T) {
		repo := &mockCredentialRepository{}
		uc := newCredentialUseCase(repo, newEnvelopeService(t, 1))

		_, err := uc.Link(ctx, &credentialDomain.LinkCredentialInput{Provider: "myspace", AccessToken: "x"})

		assert.ErrorIs(t, err, credentialDomain.ErrUnknownProvider)
		repo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("Error_EmptyAccessToken", func(t *testing.T) {
		repo := &mockCredentialRepository{}
		uc := newCredentialUseCase(repo, newEnvelopeService(t, 1))

		_, err := uc.Link(ctx, &credentialDomain.LinkCredentialInput{Provider: "linkedin"})

		assert.ErrorIs(t, err, cryptoDomain.ErrEmptyInput)
	})

	t.Run("Error_RepositoryFails", func(t *testing.T) {
		repo := &mockCredentialRepository{}
		uc := newCredentialUseCase(repo, newEnvelopeService(t, 1))
		dbErr := errors.New("database down")

		repo.On("Create", ctx, mock.Anything).Return(dbErr).Once()

		_, err := uc.Link(ctx, &credentialDomain.LinkCredentialInput{Provider: "linkedin", AccessToken: "x"})

		assert.ErrorIs(t, err, dbErr)
	})
}

func TestCredentialUseCase_Status(t *testing.T) {
	ctx := context.Background()
	envelopes := newEnvelopeService(t, 2, 1)
	oldEnvelopes := newEnvelopeService(t, 1)
	repo := &mockCredentialRepository{}
	uc := newCredentialUseCase(repo, envelopes)

	id := uuid.Must(uuid.NewV7())
	repo.On("Get", ctx, id).Return(&credentialDomain.Credential{
		ID: id,
		APIConfig: credentialDomain.APIConfig{
			credentialDomain.KeyAccessTokenEncrypted: sealedToken(t, oldEnvelopes, "access"),
			credentialDomain.KeyRefreshToken:         "legacy-refresh",
			credentialDomain.KeyExpiresAt:            "2026-03-01T13:00:00Z",
		},
	}, nil).Once()

	status, err := uc.Status(ctx, id)

	require.NoError(t, err)
	assert.Equal(t, uint(2), status.CurrentKeyVersion)
	assert.Equal(t, credentialDomain.TokenEncrypted, status.Tokens.AccessToken.Kind)
	assert.Equal(t, uint(1), status.Tokens.AccessToken.KeyVersion)
	assert.True(t, status.Tokens.AccessToken.NeedsReEncryption)
	assert.Equal(t, credentialDomain.TokenPlaintext, status.Tokens.RefreshToken.Kind)
	assert.True(t, status.Tokens.NeedsMigration())
	assert.Equal(t, linkTime.Add(time.Hour), status.ExpiresAt)
}

func TestCredentialUseCase_ResolveAccessToken(t *testing.T) {
	ctx := context.Background()
	envelopes := newEnvelopeService(t, 1)
	repo := &mockCredentialRepository{}
	uc := newCredentialUseCase(repo, envelopes)

	sealedID := uuid.Must(uuid.NewV7())
	legacyID := uuid.Must(uuid.NewV7())
	missingID := uuid.Must(uuid.NewV7())

	repo.On("Get", ctx, sealedID).Return(&credentialDomain.Credential{
		ID:        sealedID,
		APIConfig: credentialDomain.APIConfig{credentialDomain.KeyAccessTokenEncrypted: sealedToken(t, envelopes, "sealed")},
	}, nil)
	repo.On("Get", ctx, legacyID).Return(&credentialDomain.Credential{
		ID:        legacyID,
		APIConfig: credentialDomain.APIConfig{credentialDomain.KeyAccessToken: "legacy"},
	}, nil)
	repo.On("Get", ctx, missingID).Return(nil, credentialDomain.ErrCredentialNotFound)

	token, err := uc.ResolveAccessToken(ctx, sealedID)
	require.NoError(t, err)
	assert.Equal(t, "sealed", token)

	token, err = uc.ResolveAccessToken(ctx, legacyID)
	require.NoError(t, err)
	assert.Equal(t, "legacy", token)

	_, err = uc.ResolveAccessToken(ctx, missingID)
	assert.ErrorIs(t, err, credentialDomain.ErrCredentialNotFound)
}

func TestCredentialUseCase_ReEncrypt(t *testing.T) {
	ctx := context.Background()
	oldEnvelopes := newEnvelopeService(t, 1)

	t.Run("Success_MigratesOldVersionAndPlaintext", func(t *testing.T) {
		envelopes := newEnvelopeService(t, 2, 1)
		repo := &mockCredentialRepository{}
		uc := newCredentialUseCase(repo, envelopes)
		id := uuid.Must(uuid.NewV7())

		repo.On("Get", ctx, id).Return(&credentialDomain.Credential{
			ID:       id,
			Revision: 5,
			APIConfig: credentialDomain.APIConfig{
				credentialDomain.KeyAccessTokenEncrypted: sealedToken(t, oldEnvelopes, "access"),
				credentialDomain.KeyRefreshToken:         "legacy-refresh",
				"scope":                                  "x",
			},
		}, nil).Once()

		var staged credentialDomain.APIConfig
		repo.On("UpdateConfig", ctx, id, mock.Anything, uint(5)).
			Run(func(args mock.Arguments) {
				staged = args.Get(2).(credentialDomain.APIConfig)
			}).
			Return(nil).
			Once()

		result, err := uc.ReEncrypt(ctx, id, false)

		require.NoError(t, err)
		assert.True(t, result.Changed)
		assert.Equal(t, uint(2), result.KeyVersion)
		assert.Equal(t, "access", openToken(t, envelopes, staged, credentialDomain.KeyAccessTokenEncrypted))
		assert.Equal(t, "legacy-refresh", openToken(t, envelopes, staged, credentialDomain.KeyRefreshTokenEncrypted))
		assert.Equal(t, "legacy-refresh", staged.String(credentialDomain.KeyRefreshToken))
		assert.Equal(t, "x", staged.String("scope"))
		repo.AssertExpectations(t)
	})

	t.Run("Success_DropPlaintext", func(t *testing.T) {
		envelopes := newEnvelopeService(t, 1)
		repo := &mockCredentialRepository{}
		uc := newCredentialUseCase(repo, envelopes)
		id := uuid.Must(uuid.NewV7())

		repo.On("Get", ctx, id).Return(&credentialDomain.Credential{
			ID: id,
			APIConfig: credentialDomain.APIConfig{
				credentialDomain.KeyAccessTokenEncrypted: sealedToken(t, envelopes, "access"),
				credentialDomain.KeyAccessToken:          "access",
			},
		}, nil).Once()
		repo.On("UpdateConfig", ctx, id, mock.MatchedBy(func(config credentialDomain.APIConfig) bool {
			return !config.Has(credentialDomain.KeyAccessToken) && config.Has(credentialDomain.KeyAccessTokenEncrypted)
		}), uint(0)).Return(nil).Once()

		result, err := uc.ReEncrypt(ctx, id, true)

		require.NoError(t, err)
		assert.True(t, result.Changed)
		repo.AssertExpectations(t)
	})

	t.Run("Success_AlreadyCurrent", func(t *testing.T) {
		envelopes := newEnvelopeService(t, 1)
		repo := &mockCredentialRepository{}
		uc := newCredentialUseCase(repo, envelopes)
		id := uuid.Must(uuid.NewV7())

		repo.On("Get", ctx, id).Return(&credentialDomain.Credential{
			ID:        id,
			APIConfig: credentialDomain.APIConfig{credentialDomain.KeyAccessTokenEncrypted: sealedToken(t, envelopes, "a")},
		}, nil).Once()

		result, err := uc.ReEncrypt(ctx, id, true)

		require.NoError(t, err)
		assert.False(t, result.Changed)
		repo.AssertNotCalled(t, "UpdateConfig", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Error_MalformedEnvelopeIsNotOverwritten", func(t *testing.T) {
		envelopes := newEnvelopeService(t, 1)
		repo := &mockCredentialRepository{}
		uc := newCredentialUseCase(repo, envelopes)
		id := uuid.Must(uuid.NewV7())

		repo.On("Get", ctx, id).Return(&credentialDomain.Credential{
			ID: id,
			APIConfig: credentialDomain.APIConfig{
				credentialDomain.KeyAccessTokenEncrypted: "not an envelope",
				credentialDomain.KeyAccessToken:          "legacy",
			},
		}, nil).Once()

		_, err := uc.ReEncrypt(ctx, id, false)

		assert.ErrorIs(t, err, cryptoDomain.ErrMalformedEnvelope)
		repo.AssertNotCalled(t, "UpdateConfig", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("Error_UnknownKeyVersion", func(t *testing.T) {
		envelopes := newEnvelopeService(t, 3)
		repo := &mockCredentialRepository{}
		uc := newCredentialUseCase(repo, envelopes)
		id := uuid.Must(uuid.NewV7())

		repo.On("Get", ctx, id).Return(&credentialDomain.Credential{
			ID:        id,
			APIConfig: credentialDomain.APIConfig{credentialDomain.KeyAccessTokenEncrypted: sealedToken(t, oldEnvelopes, "a")},
		}, nil).Once()

		_, err := uc.ReEncrypt(ctx, id, false)

		assert.ErrorIs(t, err, cryptoDomain.ErrKeyVersionNotFound)
	})

	t.Run("Error_ConcurrentModification", func(t *testing.T) {
		envelopes := newEnvelopeService(t, 1)
		repo := &mockCredentialRepository{}
		uc := newCredentialUseCase(repo, envelopes)
		id := uuid.Must(uuid.NewV7())

		repo.On("Get", ctx, id).Return(&credentialDomain.Credential{
			ID:        id,
			APIConfig: credentialDomain.APIConfig{credentialDomain.KeyAccessToken: "legacy"},
		}, nil).Once()
		repo.On("UpdateConfig", ctx, id, mock.Anything, uint(0)).
			Return(credentialDomain.ErrConcurrentModification).
			Once()

		_, err := uc.ReEncrypt(ctx, id, false)

		assert.ErrorIs(t, err, credentialDomain.ErrConcurrentModification)
	})
}

func TestCredentialUseCase_ReEncryptBatch(t *testing.T) {
	ctx := context.Background()
	envelopes := newEnvelopeService(t, 1)
	repo := &mockCredentialRepository{}
	uc := newCredentialUseCase(repo, envelopes)

	current := &credentialDomain.Credential{
		ID:        uuid.Must(uuid.NewV7()),
		APIConfig: credentialDomain.APIConfig{credentialDomain.KeyAccessTokenEncrypted: sealedToken(t, envelopes, "a")},
	}
	legacy := &credentialDomain.Credential{
		ID:        uuid.Must(uuid.NewV7()),
		Revision:  2,
		APIConfig: credentialDomain.APIConfig{credentialDomain.KeyAccessToken: "b"},
	}
	broken := &credentialDomain.Credential{
		ID:        uuid.Must(uuid.NewV7()),
		APIConfig: credentialDomain.APIConfig{credentialDomain.KeyRefreshTokenEncrypted: map[string]any{"iv": "x"}},
	}

	repo.On("List", ctx, 0, 2).Return([]*credentialDomain.Credential{current, legacy}, nil).Once()
	repo.On("List", ctx, 2, 2).Return([]*credentialDomain.Credential{broken}, nil).Once()
	repo.On("UpdateConfig", ctx, legacy.ID, mock.Anything, uint(2)).Return(nil).Once()

	report, err := uc.ReEncryptBatch(ctx, 2, false)

	require.NoError(t, err)
	assert.Equal(t, &credentialDomain.ReEncryptReport{Scanned: 3, Migrated: 1, Unchanged: 1, Failed: 1}, report)
	repo.AssertExpectations(t)
}

func TestCredentialUseCase_ReEncryptBatch_ListError(t *testing.T) {
	ctx := context.Background()
	repo := &mockCredentialRepository{}
	uc := newCredentialUseCase(repo, newEnvelopeService(t, 1))

	repo.On("List", ctx, 0, DefaultReEncryptBatchSize).Return(nil, errors.New("database down")).Once()

	report, err := uc.ReEncryptBatch(ctx, 0, false)

	assert.EqualError(t, err, "database down")
	assert.Equal(t, 0, report.Scanned)
}

func TestCredentialUseCase_Delete(t *testing.T) {
	ctx := context.Background()
	repo := &mockCredentialRepository{}
	uc := newCredentialUseCase(repo, newEnvelopeService(t, 1))
	id := uuid.Must(uuid.NewV7())

	repo.On("Delete", ctx, id).Return(credentialDomain.ErrCredentialNotFound).Once()

	assert.ErrorIs(t, uc.Delete(ctx, id), credentialDomain.ErrCredentialNotFound)
}
