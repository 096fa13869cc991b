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
	"go.uber.org/goleak"

	credentialDomain "github.com/allisson/tokenvault/internal/credential/domain"
)

type mockRotationUseCase struct {
	mock.Mock
}

func (m *mockRotationUseCase) Sweep(ctx context.Context) (*credentialDomain.SweepReport, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*credentialDomain.SweepReport), args.Error(1)
}

func (m *mockRotationUseCase) Rotate(
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

func TestRotationWorker_Start(t *testing.T) {
	defer goleak.VerifyNone(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	clock := clockwork.NewFakeClock()
	rotation := &mockRotationUseCase{}
	sweeps := make(chan struct{}, 4)

	rotation.On("Sweep", mock.Anything).
		Run(func(mock.Arguments) { sweeps <- struct{}{} }).
		Return(&credentialDomain.SweepReport{}, nil).
		Once()
	rotation.On("Sweep", mock.Anything).
		Run(func(mock.Arguments) { sweeps <- struct{}{} }).
		Return(nil, errors.New("database down"))

	worker := NewRotationWorker(rotation, time.Hour, clock, discardLogger())

	done := make(chan error, 1)
	go func() {
		done <- worker.Start(ctx)
	}()

	waitForSweep(t, sweeps)

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(time.Hour)
	waitForSweep(t, sweeps)

	clock.Advance(time.Hour)
	waitForSweep(t, sweeps)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("worker did not stop")
	}
}

func TestNewRotationWorker_DefaultInterval(t *testing.T) {
	worker := NewRotationWorker(&mockRotationUseCase{}, 0, clockwork.NewFakeClock(), discardLogger())

	assert.Equal(t, time.Hour, worker.interval)
}

func waitForSweep(t *testing.T, sweeps <-chan struct{}) {
	t.Helper()
	select {
	case <-sweeps:
	case <-time.After(time.Second):
		t.Fatal("sweep did not run")
	}
}
