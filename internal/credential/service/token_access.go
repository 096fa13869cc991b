// Package service implements token access over a credential's api_config blob,
// preferring envelopes and falling back to legacy plaintext while the migration
// window is open.
package service

import (
	"context"
	"fmt"
	"log/slog"

	cryptoService "github.com/allisson/tokenvault/internal/crypto/service"
	credentialDomain "github.com/allisson/tokenvault/internal/credential/domain"
)

// TokenStatus describes how one token slot is stored, without revealing it.
type TokenStatus struct {
	Kind              credentialDomain.TokenKind
	KeyVersion        uint
	NeedsReEncryption bool
}

// ConfigStatus describes both token slots of a configuration blob.
type ConfigStatus struct {
	AccessToken  TokenStatus
	RefreshToken TokenStatus
}

// NeedsMigration reports whether any slot is plaintext-only or sealed under an old key.
func (s ConfigStatus) NeedsMigration() bool {
	for _, t := range []TokenStatus{s.AccessToken, s.RefreshToken} {
		if t.Kind == credentialDomain.TokenPlaintext || t.NeedsReEncryption {
			return true
		}
	}
	return false
}

// TokenAccess resolves tokens from api_config. It never modifies the blob.
type TokenAccess struct {
	envelopeService   cryptoService.EnvelopeService
	plaintextFallback bool
	logger            *slog.Logger
}

// NewTokenAccess creates a TokenAccess. With plaintextFallback disabled, a
// slot holding only legacy plaintext is treated as missing.
func NewTokenAccess(
	envelopeService cryptoService.EnvelopeService,
	plaintextFallback bool,
	logger *slog.Logger,
) *TokenAccess {
	return &TokenAccess{
		envelopeService:   envelopeService,
		plaintextFallback: plaintextFallback,
		logger:            logger,
	}
}

// HasEncryptedTokens reports whether a well-formed access token envelope is stored.
func (a *TokenAccess) HasEncryptedTokens(config credentialDomain.APIConfig) bool {
	return config.AccessTokenField().Kind == credentialDomain.TokenEncrypted
}

// ResolveAccessToken returns the access token usable for an API call.
func (a *TokenAccess) ResolveAccessToken(ctx context.Context, config credentialDomain.APIConfig) (string, error) {
	if config == nil {
		return "", credentialDomain.ErrMissingConfiguration
	}
	return a.resolve(ctx, config.AccessTokenField(), credentialDomain.KeyAccessToken,
		credentialDomain.ErrNoAccessTokenFound)
}

// ResolveRefreshToken returns the refresh token under the same rules as the access token.
func (a *TokenAccess) ResolveRefreshToken(ctx context.Context, config credentialDomain.APIConfig) (string, error) {
	if config == nil {
		return "", credentialDomain.ErrMissingConfiguration
	}
	return a.resolve(ctx, config.RefreshTokenField(), credentialDomain.KeyRefreshToken,
		credentialDomain.ErrNoRefreshTokenFound)
}

// Inspect reports how each token slot is stored.
func (a *TokenAccess) Inspect(config credentialDomain.APIConfig) ConfigStatus {
	return ConfigStatus{
		AccessToken:  a.inspect(config.AccessTokenField()),
		RefreshToken: a.inspect(config.RefreshTokenField()),
	}
}

func (a *TokenAccess) inspect(field credentialDomain.TokenField) TokenStatus {
	status := TokenStatus{Kind: field.Kind}
	if field.Kind == credentialDomain.TokenEncrypted {
		status.KeyVersion = field.Envelope.KeyVersion
		status.NeedsReEncryption = a.envelopeService.NeedsReEncryption(field.Envelope)
	}
	return status
}

func (a *TokenAccess) resolve(
	ctx context.Context,
	field credentialDomain.TokenField,
	name string,
	notFound error,
) (string, error) {
	switch field.Kind {
	case credentialDomain.TokenEncrypted:
		return a.envelopeService.Decrypt(field.Envelope)

	case credentialDomain.TokenMalformed:
		return "", field.Err

	case credentialDomain.TokenPlaintext:
		if !a.plaintextFallback {
			return "", fmt.Errorf("%w: %w", notFound, credentialDomain.ErrPlaintextFallbackDisabled)
		}
		if a.logger != nil {
			a.logger.WarnContext(ctx, "plaintext token in use",
				slog.String("field", name),
			)
		}
		return field.Plaintext, nil

	default:
		return "", notFound
	}
}
