package service

import (
	"crypto/cipher"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	cryptoDomain "github.com/allisson/tokenvault/internal/crypto/domain"
)

// ChaCha20Poly1305Cipher implements AEAD with ChaCha20-Poly1305 (RFC 8439).
type ChaCha20Poly1305Cipher struct {
	aead cipher.AEAD
}

// NewChaCha20Poly1305 creates a ChaCha20-Poly1305 cipher from a 32-byte key.
func NewChaCha20Poly1305(key []byte) (*ChaCha20Poly1305Cipher, error) {
	if len(key) != cryptoDomain.KeySize {
		return nil, cryptoDomain.ErrInvalidKeyLength
	}

	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create ChaCha20-Poly1305 cipher: %w", err)
	}

	return &ChaCha20Poly1305Cipher{aead: aead}, nil
}

func (c *ChaCha20Poly1305Cipher) Seal(plaintext, aad []byte) (nonce, ciphertext, tag []byte, err error) {
	return sealDetached(c.aead, plaintext, aad)
}

func (c *ChaCha20Poly1305Cipher) Open(nonce, ciphertext, tag, aad []byte) ([]byte, error) {
	return openDetached(c.aead, nonce, ciphertext, tag, aad)
}
