// Package domain defines the credential record, the token fields stored inside
// its api_config blob and the rotation vocabulary.
package domain

import (
	"maps"
	"time"

	"github.com/google/uuid"
)

// Well-known api_config keys. Every other key is provider metadata and is
// passed through untouched.
const (
	KeyAccessTokenEncrypted  = "access_token_encrypted"
	KeyRefreshTokenEncrypted = "refresh_token_encrypted"
	KeyAccessToken           = "access_token"
	KeyRefreshToken          = "refresh_token"
	KeyRetrievedAt           = "retrieved_at"
	KeyExpiresIn             = "expires_in"
	KeyExpiresAt             = "expires_at"
)

var reservedKeys = []string{
	KeyAccessTokenEncrypted,
	KeyRefreshTokenEncrypted,
	KeyAccessToken,
	KeyRefreshToken,
	KeyRetrievedAt,
	KeyExpiresIn,
	KeyExpiresAt,
}

// Credential is a linked third-party account.
type Credential struct {
	// ID is the unique identifier (UUIDv7).
	ID uuid.UUID
	// Provider names the OAuth provider the tokens belong to.
	Provider string
	// AccountName is a human readable label for the linked account.
	AccountName string
	// APIConfig is the untyped configuration blob holding the tokens.
	APIConfig APIConfig
	// Revision increases on every write and guards concurrent updates.
	Revision uint
	// CreatedAt is the UTC creation time.
	CreatedAt time.Time
	// UpdatedAt is the UTC time of the last write.
	UpdatedAt time.Time
}

// APIConfig is the credential configuration blob as decoded from JSON.
type APIConfig map[string]any

// Clone returns a shallow copy. Nested values are replaced, never edited, so
// a shallow copy is enough to keep the original intact.
func (c APIConfig) Clone() APIConfig {
	if c == nil {
		return APIConfig{}
	}
	return maps.Clone(c)
}

// MetadataConfig builds a blob from caller supplied provider metadata. Token
// and expiry keys are dropped so metadata can never stand in for a sealed
// token or its bookkeeping.
func MetadataConfig(metadata map[string]any) APIConfig {
	config := APIConfig(metadata).Clone()
	for _, key := range reservedKeys {
		delete(config, key)
	}
	return config
}

// String returns the string stored at key, or "" when absent or not a string.
func (c APIConfig) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// Has reports whether key is present with a non-nil value.
func (c APIConfig) Has(key string) bool {
	v, ok := c[key]
	return ok && v != nil
}
