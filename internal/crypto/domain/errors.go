package domain

import (
	"fmt"

	"github.com/allisson/tokenvault/internal/errors"
)

// Key registry and envelope cipher errors.
//
// Everything except ErrKeyVersionNotFound is an invalid-input condition. None of
// these errors ever carries key bytes or plaintext.
var (
	// ErrMissingEncryptionKey is returned when neither ENCRYPTION_KEY nor
	// ENCRYPTION_KEY_V1 is configured.
	ErrMissingEncryptionKey = errors.Wrap(errors.ErrInvalidInput, "missing encryption key")

	// ErrInvalidKeyLength is returned when a decoded key is not exactly 32 bytes.
	ErrInvalidKeyLength = errors.Wrap(errors.ErrInvalidInput, "invalid key length")

	// ErrInvalidKeyEncoding is returned when a configured key is not valid base64.
	ErrInvalidKeyEncoding = errors.Wrap(errors.ErrInvalidInput, "invalid key encoding")

	// ErrInvalidKeyVersion is returned for a key version lower than 1.
	ErrInvalidKeyVersion = errors.Wrap(errors.ErrInvalidInput, "invalid key version")

	// ErrUnsupportedAlgorithm indicates the requested algorithm is not supported.
	ErrUnsupportedAlgorithm = errors.Wrap(errors.ErrInvalidInput, "unsupported algorithm")

	// ErrEmptyInput is returned when sealing an empty plaintext.
	ErrEmptyInput = errors.Wrap(errors.ErrInvalidInput, "empty input")

	// ErrEmptyCiphertext is returned when opening an absent envelope or one with
	// no ciphertext.
	ErrEmptyCiphertext = errors.Wrap(errors.ErrInvalidInput, "empty ciphertext")

	// ErrDecryptionFailed covers every authentication or format failure while
	// opening an envelope. The cause is deliberately not distinguished.
	ErrDecryptionFailed = errors.Wrap(errors.ErrInvalidInput, "decryption failed")

	// ErrMalformedEnvelope is returned when a stored value cannot be parsed as an envelope.
	ErrMalformedEnvelope = errors.Wrap(errors.ErrInvalidInput, "malformed envelope")

	// ErrKeyVersionNotFound is matched by KeyVersionNotFoundError.
	ErrKeyVersionNotFound = errors.Wrap(errors.ErrNotFound, "key version not found")
)

// KeyVersionNotFoundError reports an envelope stamped with a version the
// registry does not hold.
type KeyVersionNotFoundError struct {
	Version uint
}

func (e *KeyVersionNotFoundError) Error() string {
	return fmt.Sprintf("key version %d not found", e.Version)
}

// Unwrap allows errors.Is(err, ErrKeyVersionNotFound).
func (e *KeyVersionNotFoundError) Unwrap() error {
	return ErrKeyVersionNotFound
}
