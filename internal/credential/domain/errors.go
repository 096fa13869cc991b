package domain

import (
	"fmt"

	"github.com/allisson/tokenvault/internal/errors"
)

// Credential and token lifecycle errors.
var (
	// ErrCredentialNotFound indicates no credential exists with the given ID.
	ErrCredentialNotFound = errors.Wrap(errors.ErrNotFound, "credential not found")

	// ErrMissingConfiguration indicates a credential without an api_config blob.
	ErrMissingConfiguration = errors.Wrap(errors.ErrInvalidInput, "missing configuration")

	// ErrNoAccessTokenFound indicates neither an encrypted nor a plaintext access token.
	ErrNoAccessTokenFound = errors.Wrap(errors.ErrNotFound, "no access token found")

	// ErrNoRefreshTokenFound indicates neither an encrypted nor a plaintext refresh token.
	ErrNoRefreshTokenFound = errors.Wrap(errors.ErrNotFound, "no refresh token found")

	// ErrPlaintextFallbackDisabled is joined with the not-found error of the slot
	// when only a plaintext token exists and plaintext reads are switched off.
	ErrPlaintextFallbackDisabled = errors.Wrap(errors.ErrNotFound, "plaintext fallback disabled")

	// ErrConcurrentModification indicates the credential changed since it was read.
	ErrConcurrentModification = errors.Wrap(errors.ErrConflict, "credential was modified concurrently")

	// ErrUnknownProvider indicates a provider name with no configured refresher.
	ErrUnknownProvider = errors.Wrap(errors.ErrInvalidInput, "unknown provider")

	// ErrRefreshUnsupported indicates the provider cannot refresh tokens.
	ErrRefreshUnsupported = errors.Wrap(errors.ErrInvalidInput, "refresh unsupported")

	// ErrRefreshFailed indicates the provider refused or failed the refresh.
	ErrRefreshFailed = errors.Wrap(errors.ErrUnavailable, "refresh failed")
)

// RefreshError describes a failed provider refresh. Revoked is set when the
// provider rejected the refresh token itself, so retrying cannot help.
type RefreshError struct {
	Provider string
	Revoked  bool
	Err      error
}

func (e *RefreshError) Error() string {
	if e.Revoked {
		return fmt.Sprintf("%s: token revoked: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("%s: token refresh failed: %v", e.Provider, e.Err)
}

// Unwrap exposes both ErrRefreshFailed and the underlying cause.
func (e *RefreshError) Unwrap() []error {
	return []error{ErrRefreshFailed, e.Err}
}
