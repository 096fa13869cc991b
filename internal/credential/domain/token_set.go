package domain

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// TokenSet is what a provider hands back when an account is linked or refreshed.
type TokenSet struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	RetrievedAt  time.Time
}

// ExpiresAt returns RetrievedAt + ExpiresIn, or the zero time when ExpiresIn is unknown.
func (t TokenSet) ExpiresAt() time.Time {
	if t.ExpiresIn <= 0 {
		return time.Time{}
	}
	return t.RetrievedAt.Add(t.ExpiresIn)
}

// ExpiresAt computes the access token expiry from retrieved_at + expires_in,
// falling back to expires_at. The second return value is false when the blob
// does not say.
func (c APIConfig) ExpiresAt() (time.Time, bool) {
	if retrievedAt, ok := parseTime(c[KeyRetrievedAt]); ok {
		if seconds, ok := parseNumber(c[KeyExpiresIn]); ok && seconds > 0 {
			return retrievedAt.Add(time.Duration(seconds * float64(time.Second))), true
		}
	}
	return parseTime(c[KeyExpiresAt])
}

// parseTime accepts RFC 3339 strings and unix timestamps in seconds or milliseconds.
func parseTime(v any) (time.Time, bool) {
	if s, ok := v.(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
			return t.UTC(), true
		}
	}

	n, ok := parseNumber(v)
	if !ok || n <= 0 {
		return time.Time{}, false
	}
	if n >= 1e11 {
		return time.UnixMilli(int64(n)).UTC(), true
	}
	sec, frac := math.Modf(n)
	return time.Unix(int64(sec), int64(frac*1e9)).UTC(), true
}

func parseNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
