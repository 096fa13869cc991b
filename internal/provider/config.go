package provider

import (
	"strings"
	"time"
)

// Config describes one provider.
type Config struct {
	Name         string
	ClientID     string
	ClientSecret string
	TokenURL     string
	// RefreshSupported is false for providers without a refresh grant.
	RefreshSupported bool

	RateLimitPerSec    float64
	RateLimitBurst     int
	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration
}

func (c Config) withDefaults() Config {
	c.Name = normalizeName(c.Name)
	if c.RateLimitPerSec <= 0 {
		c.RateLimitPerSec = 5
	}
	if c.RateLimitBurst <= 0 {
		c.RateLimitBurst = 10
	}
	if c.BreakerMaxFailures == 0 {
		c.BreakerMaxFailures = 5
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = time.Minute
	}
	return c
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
