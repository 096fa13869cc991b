package commands

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	credentialDomain "github.com/allisson/tokenvault/internal/credential/domain"
)

func TestRunRotateTokens(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	id := uuid.MustParse("0190a4c2-7d7e-7a51-9b3c-2f4e6a8b0c1d")
	expiresAt := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

	t.Run("sweep-text", func(t *testing.T) {
		mockUseCase := &MockRotationUseCase{}
		mockUseCase.On("Sweep", ctx).Return(&credentialDomain.SweepReport{
			Evaluated: 5,
			Fresh:     3,
			Refreshed: 1,
			Failed:    1,
		}, nil)

		var out bytes.Buffer
		err := RunRotateTokens(ctx, mockUseCase, logger, &out, "", false, "text")

		require.NoError(t, err)
		assert.Equal(t, "Evaluated 5 credential(s): 3 fresh, 1 refreshed, 1 failed\n", out.String())
		mockUseCase.AssertExpectations(t)
	})

	t.Run("sweep-json", func(t *testing.T) {
		mockUseCase := &MockRotationUseCase{}
		mockUseCase.On("Sweep", ctx).Return(&credentialDomain.SweepReport{
			Evaluated: 2,
			Fresh:     2,
			Duration:  1500 * time.Millisecond,
		}, nil)

		var out bytes.Buffer
		err := RunRotateTokens(ctx, mockUseCase, logger, &out, "", false, "json")

		require.NoError(t, err)
		assert.JSONEq(t, `{"evaluated":2,"fresh":2,"refreshed":0,"failed":0,"duration_ms":1500}`, out.String())
	})

	t.Run("sweep-error", func(t *testing.T) {
		mockUseCase := &MockRotationUseCase{}
		mockUseCase.On("Sweep", ctx).Return(nil, errors.New("connection refused"))

		err := RunRotateTokens(ctx, mockUseCase, logger, &bytes.Buffer{}, "", false, "text")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to sweep credentials")
	})

	t.Run("single-refreshed", func(t *testing.T) {
		mockUseCase := &MockRotationUseCase{}
		mockUseCase.On("Rotate", ctx, id, true).Return(&credentialDomain.RotationResult{
			CredentialID: id,
			Provider:     "google",
			State:        credentialDomain.StateRefreshed,
			ExpiresAt:    expiresAt,
		}, nil)

		var out bytes.Buffer
		err := RunRotateTokens(ctx, mockUseCase, logger, &out, id.String(), true, "text")

		require.NoError(t, err)
		assert.Contains(t, out.String(), "Credential "+id.String()+" (google): refreshed")
		assert.Contains(t, out.String(), "Expires at: 2026-10-19T12:00:00Z")
		assert.NotContains(t, out.String(), "Error kind")
		mockUseCase.AssertExpectations(t)
	})

	t.Run("single-failed-json", func(t *testing.T) {
		mockUseCase := &MockRotationUseCase{}
		mockUseCase.On("Rotate", ctx, id, false).Return(&credentialDomain.RotationResult{
			CredentialID: id,
			Provider:     "google",
			State:        credentialDomain.StateRefreshFailed,
			ErrorKind:    credentialDomain.ErrorKindTokenRevoked,
		}, nil)

		var out bytes.Buffer
		err := RunRotateTokens(ctx, mockUseCase, logger, &out, id.String(), false, "json")

		require.NoError(t, err)
		assert.JSONEq(t, `{
			"credential_id": "`+id.String()+`",
			"provider": "google",
			"state": "refresh-failed",
			"error_kind": "token_revoked"
		}`, out.String())
	})

	t.Run("invalid-id", func(t *testing.T) {
		err := RunRotateTokens(ctx, &MockRotationUseCase{}, logger, &bytes.Buffer{}, "nope", false, "text")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid credential id")
	})

	t.Run("force-without-id", func(t *testing.T) {
		err := RunRotateTokens(ctx, &MockRotationUseCase{}, logger, &bytes.Buffer{}, "", true, "text")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "--force requires --id")
	})

	t.Run("invalid-format", func(t *testing.T) {
		err := RunRotateTokens(ctx, &MockRotationUseCase{}, logger, &bytes.Buffer{}, "", false, "yaml")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid format")
	})
}
