package service

import (
	cryptoDomain "github.com/allisson/tokenvault/internal/crypto/domain"
)

type envelopeService struct {
	registry  *cryptoDomain.KeyRegistry
	cipher    *EnvelopeCipher
	algorithm cryptoDomain.Algorithm
}

// NewEnvelopeService binds the envelope cipher to a key registry. New envelopes
// are sealed with alg under the registry's current key.
func NewEnvelopeService(
	registry *cryptoDomain.KeyRegistry,
	cipher *EnvelopeCipher,
	alg cryptoDomain.Algorithm,
) EnvelopeService {
	if alg == "" {
		alg = cryptoDomain.AESGCM
	}
	return &envelopeService{
		registry:  registry,
		cipher:    cipher,
		algorithm: alg,
	}
}

func (s *envelopeService) Encrypt(plaintext string) (*cryptoDomain.Envelope, error) {
	key, err := s.registry.CurrentKey()
	if err != nil {
		return nil, err
	}
	return s.cipher.Seal(plaintext, key, s.algorithm, nil)
}

func (s *envelopeService) Decrypt(envelope *cryptoDomain.Envelope) (string, error) {
	if envelope == nil || len(envelope.Ciphertext) == 0 {
		return "", cryptoDomain.ErrEmptyCiphertext
	}

	key, err := s.registry.KeyForVersion(envelope.KeyVersion)
	if err != nil {
		return "", err
	}
	return s.cipher.Open(envelope, key, nil)
}

func (s *envelopeService) CurrentKeyVersion() uint {
	return s.registry.CurrentVersion()
}

func (s *envelopeService) NeedsReEncryption(envelope *cryptoDomain.Envelope) bool {
	if envelope == nil {
		return false
	}
	return envelope.KeyVersion != s.registry.CurrentVersion() ||
		envelope.EffectiveAlgorithm() != s.algorithm
}

func (s *envelopeService) ReEncrypt(envelope *cryptoDomain.Envelope) (*cryptoDomain.Envelope, error) {
	plaintext, err := s.Decrypt(envelope)
	if err != nil {
		return nil, err
	}
	return s.Encrypt(plaintext)
}
