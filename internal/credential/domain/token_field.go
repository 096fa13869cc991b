package domain

import (
	"time"

	cryptoDomain "github.com/allisson/tokenvault/internal/crypto/domain"
)

// TokenKind tells which form a token takes inside api_config.
type TokenKind int

const (
	// TokenAbsent means neither an envelope nor a plaintext value is stored.
	TokenAbsent TokenKind = iota
	// TokenEncrypted means a well-formed envelope is stored.
	TokenEncrypted
	// TokenPlaintext means only a legacy plaintext value is stored.
	TokenPlaintext
	// TokenMalformed means the envelope field is present but cannot be parsed,
	// including sealed fields whose base64 text was damaged.
	TokenMalformed
)

func (k TokenKind) String() string {
	switch k {
	case TokenEncrypted:
		return "encrypted"
	case TokenPlaintext:
		return "plaintext"
	case TokenMalformed:
		return "malformed"
	default:
		return "absent"
	}
}

// TokenField is one token slot of api_config parsed into exactly one variant.
type TokenField struct {
	Kind      TokenKind
	Envelope  *cryptoDomain.Envelope
	Plaintext string
	// Err is the parse failure for TokenMalformed.
	Err error
}

// ParseTokenField reads a token slot. The encrypted field wins over the
// plaintext one whenever it is present, even if it turns out to be malformed,
// so a damaged envelope is reported instead of silently masked by plaintext.
func ParseTokenField(config APIConfig, encryptedKey, plaintextKey string) TokenField {
	if config.Has(encryptedKey) {
		env, err := cryptoDomain.ParseEnvelope(config[encryptedKey])
		if err != nil {
			return TokenField{Kind: TokenMalformed, Err: err}
		}
		return TokenField{Kind: TokenEncrypted, Envelope: env}
	}

	if plaintext := config.String(plaintextKey); plaintext != "" {
		return TokenField{Kind: TokenPlaintext, Plaintext: plaintext}
	}

	return TokenField{Kind: TokenAbsent}
}

// AccessTokenField parses the access token slot.
func (c APIConfig) AccessTokenField() TokenField {
	return ParseTokenField(c, KeyAccessTokenEncrypted, KeyAccessToken)
}

// RefreshTokenField parses the refresh token slot.
func (c APIConfig) RefreshTokenField() TokenField {
	return ParseTokenField(c, KeyRefreshTokenEncrypted, KeyRefreshToken)
}

// WithTokens stages a new blob for freshly sealed tokens. The receiver is not
// modified. Provider metadata is carried over; expiry bookkeeping is replaced.
// Legacy plaintext fields are kept in lockstep with the new values when
// keepPlaintext is true and they already existed, otherwise they are removed.
func (c APIConfig) WithTokens(
	access, refresh *cryptoDomain.Envelope,
	tokens TokenSet,
	keepPlaintext bool,
) APIConfig {
	next := c.Clone()

	next[KeyAccessTokenEncrypted] = access.ToMap()
	if refresh != nil {
		next[KeyRefreshTokenEncrypted] = refresh.ToMap()
	}

	setPlaintext := func(key, value string) {
		if keepPlaintext && c.Has(key) && value != "" {
			next[key] = value
			return
		}
		delete(next, key)
	}
	setPlaintext(KeyAccessToken, tokens.AccessToken)
	setPlaintext(KeyRefreshToken, tokens.RefreshToken)

	if !tokens.RetrievedAt.IsZero() {
		next[KeyRetrievedAt] = tokens.RetrievedAt.UTC().Format(time.RFC3339)
	}
	if tokens.ExpiresIn > 0 {
		next[KeyExpiresIn] = int64(tokens.ExpiresIn / time.Second)
		next[KeyExpiresAt] = tokens.ExpiresAt().UTC().Format(time.RFC3339)
	} else {
		delete(next, KeyExpiresIn)
		delete(next, KeyExpiresAt)
	}

	return next
}

// WithoutPlaintext returns a copy with the legacy plaintext token fields removed.
func (c APIConfig) WithoutPlaintext() APIConfig {
	next := c.Clone()
	delete(next, KeyAccessToken)
	delete(next, KeyRefreshToken)
	return next
}
