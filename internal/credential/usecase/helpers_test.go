package usecase

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	cryptoDomain "github.com/allisson/tokenvault/internal/crypto/domain"
	cryptoService "github.com/allisson/tokenvault/internal/crypto/service"
	credentialDomain "github.com/allisson/tokenvault/internal/credential/domain"
	"github.com/allisson/tokenvault/internal/database"
	"github.com/allisson/tokenvault/internal/metrics"
)

type mockCredentialRepository struct {
	mock.Mock
}

func (m *mockCredentialRepository) Create(ctx context.Context, credential *credentialDomain.Credential) error {
	return m.Called(ctx, credential).Error(0)
}

func (m *mockCredentialRepository) Get(ctx context.Context, id uuid.UUID) (*credentialDomain.Credential, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credentialDomain.Credential), args.Error(1)
}

func (m *mockCredentialRepository) List(
	ctx context.Context,
	offset, limit int,
) ([]*credentialDomain.Credential, error) {
	args := m.Called(ctx, offset, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*credentialDomain.Credential), args.Error(1)
}

func (m *mockCredentialRepository) UpdateConfig(
	ctx context.Context,
	id uuid.UUID,
	config credentialDomain.APIConfig,
	expectedRevision uint,
) error {
	return m.Called(ctx, id, config, expectedRevision).Error(0)
}

func (m *mockCredentialRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return m.Called(ctx, id).Error(0)
}

type mockTokenRefresher struct {
	mock.Mock
}

func (m *mockTokenRefresher) Refresh(ctx context.Context, refreshToken string) (*credentialDomain.TokenSet, error) {
	args := m.Called(ctx, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credentialDomain.TokenSet), args.Error(1)
}

// staticRefreshers maps provider names to refreshers.
type staticRefreshers map[string]TokenRefresher

func (s staticRefreshers) Get(provider string) (TokenRefresher, error) {
	refresher, ok := s[provider]
	if !ok {
		return nil, credentialDomain.ErrUnknownProvider
	}
	return refresher, nil
}

// passthroughTxManager runs fn without a transaction.
type passthroughTxManager struct{}

func (passthroughTxManager) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

var _ database.TxManager = passthroughTxManager{}

type mockBusinessMetrics struct {
	mock.Mock
}

func (m *mockBusinessMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	m.Called(ctx, domain, operation, status)
}

func (m *mockBusinessMetrics) RecordDuration(
	ctx context.Context,
	domain, operation string,
	duration time.Duration,
	status string,
) {
	m.Called(ctx, domain, operation, duration, status)
}

var _ metrics.BusinessMetrics = (*mockBusinessMetrics)(nil)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func testKey(version uint) cryptoDomain.KeyMaterial {
	return cryptoDomain.KeyMaterial{
		Version: version,
		Key:     bytes.Repeat([]byte{byte('a' + version)}, cryptoDomain.KeySize),
	}
}

func newEnvelopeService(t *testing.T, current uint, retained ...uint) cryptoService.EnvelopeService {
	t.Helper()
	var others []cryptoDomain.KeyMaterial
	for _, v := range retained {
		others = append(others, testKey(v))
	}
	registry, err := cryptoDomain.NewKeyRegistry(testKey(current), others...)
	require.NoError(t, err)
	t.Cleanup(registry.Close)

	return cryptoService.NewEnvelopeService(
		registry,
		cryptoService.NewEnvelopeCipher(cryptoService.NewAEADManager()),
		cryptoDomain.AESGCM,
	)
}

func sealedToken(t *testing.T, svc cryptoService.EnvelopeService, plaintext string) map[string]any {
	t.Helper()
	env, err := svc.Encrypt(plaintext)
	require.NoError(t, err)
	return env.ToMap()
}

// openToken decrypts the envelope stored at key.
func openToken(t *testing.T, svc cryptoService.EnvelopeService, config credentialDomain.APIConfig, key string) string {
	t.Helper()
	env, err := cryptoDomain.ParseEnvelope(config[key])
	require.NoError(t, err)
	plaintext, err := svc.Decrypt(env)
	require.NoError(t, err)
	return plaintext
}
