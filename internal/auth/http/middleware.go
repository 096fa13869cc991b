// Package http provides the admin API authentication middleware.
package http

import (
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	authService "github.com/allisson/tokenvault/internal/auth/service"
	apperrors "github.com/allisson/tokenvault/internal/errors"
	"github.com/allisson/tokenvault/internal/httputil"
)

// AdminAuthMiddleware requires an "Authorization: Bearer <key>" header whose
// key matches keyHash. The "bearer" scheme is matched case-insensitively.
//
// An empty keyHash rejects every request.
func AdminAuthMiddleware(
	keyService authService.AdminKeyService,
	keyHash string,
	logger *slog.Logger,
) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			logger.Debug("authentication failed: missing authorization header")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		const bearerPrefix = "bearer "
		if len(authHeader) < len(bearerPrefix) ||
			!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
			logger.Debug("authentication failed: malformed authorization header")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		plainKey := strings.TrimSpace(authHeader[len(bearerPrefix):])
		if plainKey == "" || keyHash == "" || !keyService.CompareKey(plainKey, keyHash) {
			logger.Debug("authentication failed: invalid admin key")
			httputil.HandleErrorGin(c, apperrors.ErrUnauthorized, logger)
			c.Abort()
			return
		}

		c.Next()
	}
}
