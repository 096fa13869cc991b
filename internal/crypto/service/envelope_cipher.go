package service

import (
	cryptoDomain "github.com/allisson/tokenvault/internal/crypto/domain"
)

// EnvelopeCipher turns plaintext strings into envelopes and back for a given key.
// It is stateless and safe for concurrent use.
type EnvelopeCipher struct {
	aeadManager AEADManager
}

// NewEnvelopeCipher creates an EnvelopeCipher.
func NewEnvelopeCipher(aeadManager AEADManager) *EnvelopeCipher {
	return &EnvelopeCipher{aeadManager: aeadManager}
}

// Seal encrypts plaintext under key with a fresh nonce and stamps the result
// with the key version.
func (c *EnvelopeCipher) Seal(
	plaintext string,
	key cryptoDomain.KeyMaterial,
	alg cryptoDomain.Algorithm,
	aad []byte,
) (*cryptoDomain.Envelope, error) {
	if plaintext == "" {
		return nil, cryptoDomain.ErrEmptyInput
	}

	aead, err := c.aeadManager.CreateCipher(key.Key, alg)
	if err != nil {
		return nil, err
	}

	data := []byte(plaintext)
	defer cryptoDomain.Zero(data)

	nonce, ciphertext, tag, err := aead.Seal(data, aad)
	if err != nil {
		return nil, err
	}

	env := &cryptoDomain.Envelope{
		Ciphertext: ciphertext,
		Nonce:      nonce,
		AuthTag:    tag,
		KeyVersion: key.Version,
	}
	if alg != cryptoDomain.AESGCM {
		env.Algorithm = alg
	}
	return env, nil
}

// Open authenticates and decrypts env with key. Any authentication failure is
// reported as ErrDecryptionFailed and no partial plaintext is returned.
func (c *EnvelopeCipher) Open(
	env *cryptoDomain.Envelope,
	key cryptoDomain.KeyMaterial,
	aad []byte,
) (string, error) {
	if env == nil || len(env.Ciphertext) == 0 {
		return "", cryptoDomain.ErrEmptyCiphertext
	}

	aead, err := c.aeadManager.CreateCipher(key.Key, env.EffectiveAlgorithm())
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(env.Nonce, env.Ciphertext, env.AuthTag, aad)
	if err != nil {
		return "", cryptoDomain.ErrDecryptionFailed
	}
	defer cryptoDomain.Zero(plaintext)

	return string(plaintext), nil
}
