// Package service generates and verifies admin API keys. Keys are random
// 32-byte values; only their Argon2id hash is ever configured on the server.
package service

import (
	"crypto/rand"
	"encoding/base64"

	"github.com/allisson/go-pwdhash"

	apperrors "github.com/allisson/tokenvault/internal/errors"
)

// AdminKeyService issues and verifies admin API keys.
type AdminKeyService interface {
	// GenerateKey returns a new key and its Argon2id hash.
	GenerateKey() (plainKey string, keyHash string, err error)
	HashKey(plainKey string) (string, error)
	// CompareKey reports whether plainKey matches keyHash in constant time.
	CompareKey(plainKey, keyHash string) bool
}

type adminKeyService struct {
	hasher *pwdhash.PasswordHasher
}

// NewAdminKeyService creates an AdminKeyService using the Moderate Argon2id policy.
func NewAdminKeyService() AdminKeyService {
	hasher, err := pwdhash.New(
		pwdhash.WithPolicy(pwdhash.PolicyModerate),
	)
	if err != nil {
		// This should never happen with valid policy
		panic(err)
	}

	return &adminKeyService{
		hasher: hasher,
	}
}

func (s *adminKeyService) GenerateKey() (string, string, error) {
	randomBytes := make([]byte, 32)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", "", apperrors.Wrap(err, "failed to generate admin key")
	}

	plainKey := base64.URLEncoding.EncodeToString(randomBytes)
	keyHash, err := s.HashKey(plainKey)
	if err != nil {
		return "", "", err
	}
	return plainKey, keyHash, nil
}

func (s *adminKeyService) HashKey(plainKey string) (string, error) {
	keyHash, err := s.hasher.Hash([]byte(plainKey))
	if err != nil {
		return "", apperrors.Wrap(err, "failed to hash admin key")
	}
	return keyHash, nil
}

func (s *adminKeyService) CompareKey(plainKey, keyHash string) bool {
	ok, err := s.hasher.Verify([]byte(plainKey), keyHash)
	if err != nil {
		return false
	}
	return ok
}
