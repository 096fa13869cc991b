// Package service provides the cryptographic building blocks for credential
// protection: detached-tag AEAD ciphers, the envelope cipher, the credential
// envelope service and KMS-backed key unwrapping.
package service

import (
	"context"

	cryptoDomain "github.com/allisson/tokenvault/internal/crypto/domain"
)

// AEAD is an authenticated cipher that keeps the nonce, ciphertext and tag as
// separate values, matching the envelope layout.
type AEAD interface {
	// Seal encrypts plaintext under a freshly generated random nonce.
	Seal(plaintext, aad []byte) (nonce, ciphertext, tag []byte, err error)

	// Open authenticates and decrypts. Every failure, including a nonce or tag
	// of the wrong length, returns ErrDecryptionFailed.
	Open(nonce, ciphertext, tag, aad []byte) ([]byte, error)
}

// AEADManager creates AEAD instances for a key and algorithm.
type AEADManager interface {
	CreateCipher(key []byte, alg cryptoDomain.Algorithm) (AEAD, error)
}

// EnvelopeService encrypts and decrypts credential tokens with the key registry.
type EnvelopeService interface {
	// Encrypt seals plaintext under the current key.
	Encrypt(plaintext string) (*cryptoDomain.Envelope, error)

	// Decrypt opens an envelope with the key named by its version.
	Decrypt(envelope *cryptoDomain.Envelope) (string, error)

	// CurrentKeyVersion returns the version new envelopes are stamped with.
	CurrentKeyVersion() uint

	// NeedsReEncryption reports whether the envelope was sealed under anything
	// other than the current key and algorithm.
	NeedsReEncryption(envelope *cryptoDomain.Envelope) bool

	// ReEncrypt decrypts with the envelope's key and seals again under the current key.
	ReEncrypt(envelope *cryptoDomain.Envelope) (*cryptoDomain.Envelope, error)
}

// KMSKeeper encrypts and decrypts small payloads with a remote key. It is
// satisfied by *secrets.Keeper.
type KMSKeeper interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// KMSService opens keepers for a KMS key URI.
type KMSService interface {
	OpenKeeper(ctx context.Context, keyURI string) (KMSKeeper, error)
}
