// Package http provides the admin HTTP handlers for linked credentials. No
// response ever carries a token, sealed or not.
package http

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/allisson/tokenvault/internal/credential/http/dto"
	credentialUseCase "github.com/allisson/tokenvault/internal/credential/usecase"
	"github.com/allisson/tokenvault/internal/httputil"
	customValidation "github.com/allisson/tokenvault/internal/validation"
)

// CredentialHandler handles HTTP requests for credential management.
type CredentialHandler struct {
	credentialUseCase credentialUseCase.CredentialUseCase
	rotationUseCase   credentialUseCase.RotationUseCase
	logger            *slog.Logger
}

// NewCredentialHandler creates a new credential handler with required dependencies.
func NewCredentialHandler(
	credentialUseCase credentialUseCase.CredentialUseCase,
	rotationUseCase credentialUseCase.RotationUseCase,
	logger *slog.Logger,
) *CredentialHandler {
	return &CredentialHandler{
		credentialUseCase: credentialUseCase,
		rotationUseCase:   rotationUseCase,
		logger:            logger,
	}
}

// LinkHandler stores a newly linked account.
// POST /v1/credentials - Returns 201 Created with credential metadata.
func (h *CredentialHandler) LinkHandler(c *gin.Context) {
	var req dto.LinkCredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}

	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	credential, err := h.credentialUseCase.Link(c.Request.Context(), req.ToInput())
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusCreated, dto.MapCredentialToResponse(credential))
}

// ListHandler lists credentials.
// GET /v1/credentials?offset=0&limit=50 - Returns 200 OK.
func (h *CredentialHandler) ListHandler(c *gin.Context) {
	page, err := httputil.ParsePage(c)
	if err != nil {
		httputil.HandleValidationErrorGin(c, err, h.logger)
		return
	}

	credentials, err := h.credentialUseCase.List(c.Request.Context(), page.Offset, page.Limit)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapCredentialsToListResponse(credentials))
}

// GetHandler returns credential metadata and how its tokens are stored.
// GET /v1/credentials/:id - Returns 200 OK.
func (h *CredentialHandler) GetHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	status, err := h.credentialUseCase.Status(c.Request.Context(), id)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapStatusToResponse(status))
}

// DeleteHandler removes a credential.
// DELETE /v1/credentials/:id - Returns 204 No Content.
func (h *CredentialHandler) DeleteHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	if err := h.credentialUseCase.Delete(c.Request.Context(), id); err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.Data(http.StatusNoContent, "application/json", nil)
}

// RotateHandler refreshes the tokens of one credential.
// POST /v1/credentials/:id/rotate?force=true - Returns 200 OK with the
// resulting state, including refresh-failed.
func (h *CredentialHandler) RotateHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	force, ok := h.parseBool(c, "force")
	if !ok {
		return
	}

	result, err := h.rotationUseCase.Rotate(c.Request.Context(), id, force)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapRotationToResponse(result))
}

// ReEncryptHandler moves one credential to the current key.
// POST /v1/credentials/:id/reencrypt?drop_plaintext=true - Returns 200 OK.
func (h *CredentialHandler) ReEncryptHandler(c *gin.Context) {
	id, ok := h.parseID(c)
	if !ok {
		return
	}

	dropPlaintext, ok := h.parseBool(c, "drop_plaintext")
	if !ok {
		return
	}

	result, err := h.credentialUseCase.ReEncrypt(c.Request.Context(), id, dropPlaintext)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapReEncryptToResponse(result))
}

func (h *CredentialHandler) parseID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid credential id"), h.logger)
		return uuid.Nil, false
	}
	return id, true
}

func (h *CredentialHandler) parseBool(c *gin.Context, name string) (bool, bool) {
	raw := c.Query(name)
	if raw == "" {
		return false, true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		httputil.HandleValidationErrorGin(c, fmt.Errorf("invalid %s parameter: must be a boolean", name), h.logger)
		return false, false
	}
	return v, true
}
