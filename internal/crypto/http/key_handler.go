// Package http exposes read-only information about the encryption keys.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	cryptoDomain "github.com/allisson/tokenvault/internal/crypto/domain"
)

// KeyInfoResponse describes the loaded key set. Key material is never included.
type KeyInfoResponse struct {
	CurrentVersion uint   `json:"current_version"`
	Versions       []uint `json:"versions"`
	Algorithm      string `json:"algorithm"`
}

// KeyHandler serves key registry metadata.
type KeyHandler struct {
	registry  *cryptoDomain.KeyRegistry
	algorithm cryptoDomain.Algorithm
}

// NewKeyHandler creates a handler for the given registry and sealing algorithm.
func NewKeyHandler(registry *cryptoDomain.KeyRegistry, algorithm cryptoDomain.Algorithm) *KeyHandler {
	return &KeyHandler{registry: registry, algorithm: algorithm}
}

// GetHandler returns the current key version and every version that can still decrypt.
// GET /v1/encryption/key - Returns 200 OK.
func (h *KeyHandler) GetHandler(c *gin.Context) {
	c.JSON(http.StatusOK, KeyInfoResponse{
		CurrentVersion: h.registry.CurrentVersion(),
		Versions:       h.registry.Versions(),
		Algorithm:      string(h.algorithm),
	})
}
