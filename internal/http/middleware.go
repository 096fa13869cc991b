package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

const (
	limiterCleanupInterval = 5 * time.Minute
	limiterIdleTTL         = time.Hour
)

// CustomLoggerMiddleware logs every request once it completes, tagged with
// its request id.
func CustomLoggerMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		attrs := []any{
			slog.String("request_id", requestid.Get(c)),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)),
			slog.String("client_ip", c.ClientIP()),
		}

		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("http request", attrs...)
		case len(c.Errors) > 0:
			logger.Warn("http request", append(attrs, slog.String("errors", c.Errors.String()))...)
		default:
			logger.Info("http request", attrs...)
		}
	}
}

type limiterEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// ipLimiters keeps one token bucket per client IP.
type ipLimiters struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	rps     float64
	burst   int
}

func (s *ipLimiters) get(ip string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.entries[ip]
	if !ok {
		entry = &limiterEntry{limiter: rate.NewLimiter(rate.Limit(s.rps), s.burst)}
		s.entries[ip] = entry
	}
	entry.lastAccess = now
	return entry.limiter
}

func (s *ipLimiters) evictIdle(threshold time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for ip, entry := range s.entries {
		if entry.lastAccess.Before(threshold) {
			delete(s.entries, ip)
		}
	}
}

func (s *ipLimiters) cleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.evictIdle(time.Now().Add(-limiterIdleTTL))
		}
	}
}

// RateLimitMiddleware applies a token bucket per client IP. Rejected requests
// get 429 with a Retry-After header. Idle buckets are evicted until ctx is done.
func RateLimitMiddleware(ctx context.Context, rps float64, burst int, logger *slog.Logger) gin.HandlerFunc {
	store := &ipLimiters{
		entries: make(map[string]*limiterEntry),
		rps:     rps,
		burst:   burst,
	}
	go store.cleanup(ctx, limiterCleanupInterval)

	return func(c *gin.Context) {
		limiter := store.get(c.ClientIP(), time.Now())

		if !limiter.Allow() {
			reservation := limiter.Reserve()
			retryAfter := int(reservation.Delay().Round(time.Second).Seconds())
			reservation.Cancel()
			if retryAfter < 1 {
				retryAfter = 1
			}

			logger.Debug("rate limit exceeded",
				slog.String("client_ip", c.ClientIP()),
				slog.Int("retry_after", retryAfter))

			c.Header("Retry-After", fmt.Sprintf("%d", retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   "rate_limit_exceeded",
				"message": "Too many requests. Please retry after the specified delay.",
			})
			return
		}

		c.Next()
	}
}
