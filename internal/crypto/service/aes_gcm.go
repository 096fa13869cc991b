package service

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"

	cryptoDomain "github.com/allisson/tokenvault/internal/crypto/domain"
)

// AESGCMCipher implements AEAD with AES-256-GCM.
//
// The key must be exactly 32 bytes. Each Seal draws a new 12-byte nonce from
// crypto/rand and yields a 16-byte tag. A nonce must never be reused with the
// same key, which random nonces make negligible for the volumes stored here.
type AESGCMCipher struct {
	aead cipher.AEAD
}

// NewAESGCM creates an AES-256-GCM cipher.
func NewAESGCM(key []byte) (*AESGCMCipher, error) {
	if len(key) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &AESGCMCipher{aead: aead}, nil
}

// Seal encrypts plaintext and returns the nonce, ciphertext and tag separately.
func (a *AESGCMCipher) Seal(plaintext, aad []byte) (nonce, ciphertext, tag []byte, err error) {
	return sealDetached(a.aead, plaintext, aad)
}

// Open verifies the tag and decrypts.
func (a *AESGCMCipher) Open(nonce, ciphertext, tag, aad []byte) ([]byte, error) {
	return openDetached(a.aead, nonce, ciphertext, tag, aad)
}
