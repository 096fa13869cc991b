package domain

import (
	"context"
	"time"

	"github.com/google/uuid"

	cryptoDomain "github.com/allisson/tokenvault/internal/crypto/domain"
	"github.com/allisson/tokenvault/internal/errors"
)

// RotationState is the position of a credential in the rotation lifecycle.
type RotationState string

const (
	StateFresh         RotationState = "fresh"
	StateNearingExpiry RotationState = "nearing-expiry"
	StateRefreshing    RotationState = "refreshing"
	StateRefreshed     RotationState = "refreshed"
	StateRefreshFailed RotationState = "refresh-failed"
)

// ErrorKind is the operator-facing category of a failed rotation.
type ErrorKind string

const (
	ErrorKindNone               ErrorKind = ""
	ErrorKindRefreshUnsupported ErrorKind = "refresh_unsupported"
	ErrorKindRefreshFailed      ErrorKind = "refresh_failed"
	ErrorKindTokenRevoked       ErrorKind = "token_revoked"
	ErrorKindTimeout            ErrorKind = "timeout"
	ErrorKindCipher             ErrorKind = "cipher_error"
	ErrorKindMissingToken       ErrorKind = "missing_token"
	ErrorKindConflict           ErrorKind = "conflict"
	ErrorKindInternal           ErrorKind = "internal"
)

// RotationResult is the outcome of evaluating one credential.
type RotationResult struct {
	CredentialID uuid.UUID
	Provider     string
	State        RotationState
	ErrorKind    ErrorKind
	Err          error
	// ExpiresAt is the expiry known after evaluation (zero when unknown).
	ExpiresAt time.Time
}

// SweepReport summarizes a rotation sweep.
type SweepReport struct {
	Evaluated int
	Fresh     int
	Refreshed int
	Failed    int
	StartedAt time.Time
	Duration  time.Duration
}

// Add counts a result into the report.
func (r *SweepReport) Add(result *RotationResult) {
	r.Evaluated++
	switch result.State {
	case StateRefreshed:
		r.Refreshed++
	case StateRefreshFailed:
		r.Failed++
	default:
		r.Fresh++
	}
}

// ClassifyRotationError maps a rotation failure to its ErrorKind.
func ClassifyRotationError(err error) ErrorKind {
	if err == nil {
		return ErrorKindNone
	}

	var refreshErr *RefreshError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorKindTimeout
	case errors.Is(err, ErrRefreshUnsupported), errors.Is(err, ErrUnknownProvider):
		return ErrorKindRefreshUnsupported
	case errors.As(err, &refreshErr) && refreshErr.Revoked:
		return ErrorKindTokenRevoked
	case errors.Is(err, ErrRefreshFailed):
		return ErrorKindRefreshFailed
	case errors.Is(err, ErrConcurrentModification):
		return ErrorKindConflict
	case errors.Is(err, ErrMissingConfiguration),
		errors.Is(err, ErrNoAccessTokenFound),
		errors.Is(err, ErrNoRefreshTokenFound):
		return ErrorKindMissingToken
	case errors.Is(err, cryptoDomain.ErrDecryptionFailed),
		errors.Is(err, cryptoDomain.ErrKeyVersionNotFound),
		errors.Is(err, cryptoDomain.ErrEmptyCiphertext),
		errors.Is(err, cryptoDomain.ErrMalformedEnvelope),
		errors.Is(err, cryptoDomain.ErrEmptyInput),
		errors.Is(err, cryptoDomain.ErrMissingEncryptionKey),
		errors.Is(err, cryptoDomain.ErrUnsupportedAlgorithm):
		return ErrorKindCipher
	default:
		return ErrorKindInternal
	}
}
