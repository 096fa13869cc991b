package commands

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	credentialDomain "github.com/allisson/tokenvault/internal/credential/domain"
	credentialUseCase "github.com/allisson/tokenvault/internal/credential/usecase"
)

type MockRotationUseCase struct {
	mock.Mock
}

func (m *MockRotationUseCase) Sweep(ctx context.Context) (*credentialDomain.SweepReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credentialDomain.SweepReport), args.Error(1)
}

func (m *MockRotationUseCase) Rotate(
	ctx context.Context,
	id uuid.UUID,
	force bool,
) (*credentialDomain.RotationResult, error) {
	args := m.Called(ctx, id, force)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credentialDomain.RotationResult), args.Error(1)
}

// MockCredentialUseCase embeds the interface so tests only stub what they call.
type MockCredentialUseCase struct {
	credentialUseCase.CredentialUseCase
	mock.Mock
}

func (m *MockCredentialUseCase) ReEncryptBatch(
	ctx context.Context,
	batchSize int,
	dropPlaintext bool,
) (*credentialDomain.ReEncryptReport, error) {
	args := m.Called(ctx, batchSize, dropPlaintext)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credentialDomain.ReEncryptReport), args.Error(1)
}

type MockAdminKeyService struct {
	mock.Mock
}

func (m *MockAdminKeyService) GenerateKey() (string, string, error) {
	args := m.Called()
	return args.String(0), args.String(1), args.Error(2)
}

func (m *MockAdminKeyService) HashKey(plainKey string) (string, error) {
	args := m.Called(plainKey)
	return args.String(0), args.Error(1)
}

func (m *MockAdminKeyService) CompareKey(plainKey, keyHash string) bool {
	return m.Called(plainKey, keyHash).Bool(0)
}
