package service

import (
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	cryptoDomain "github.com/allisson/tokenvault/internal/crypto/domain"
)

// sealDetached encrypts with a random nonce and splits the tag off the AEAD output.
func sealDetached(aead cipher.AEAD, plaintext, aad []byte) (nonce, ciphertext, tag []byte, err error) {
	nonce = make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := aead.Seal(nil, nonce, plaintext, aad)
	split := len(sealed) - aead.Overhead()

	return nonce, sealed[:split:split], sealed[split:], nil
}

// openDetached rejoins ciphertext and tag and authenticates them. The length
// checks guard cipher.AEAD.Open, which panics on a bad nonce size.
func openDetached(aead cipher.AEAD, nonce, ciphertext, tag, aad []byte) ([]byte, error) {
	if len(nonce) != aead.NonceSize() || len(tag) != aead.Overhead() {
		return nil, cryptoDomain.ErrDecryptionFailed
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, nonce, sealed, aad)
	if err != nil {
		return nil, cryptoDomain.ErrDecryptionFailed
	}
	return plaintext, nil
}
