package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timeblock-api/internal/models"
	"github.com/noah-isme/timeblock-api/internal/service"
	"github.com/noah-isme/timeblock-api/pkg/response"
)

type authService interface {
	Me(ctx context.Context, identity models.Identity) (*service.AuthStatus, error)
	Logout(ctx context.Context, userID string) error
}

// AuthHandler exposes the identity of the caller.
type AuthHandler struct {
	service authService
}

// NewAuthHandler constructs the handler.
func NewAuthHandler(service authService) *AuthHandler {
	return &AuthHandler{service: service}
}

// Me godoc
// @Summary Current identity
// @Tags Auth
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	identity, ok := requireIdentity(c)
	if !ok {
		return
	}
	status, err := h.service.Me(c.Request.Context(), identity)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, status)
}

// Logout godoc
// @Summary Clear the session identity
// @Tags Auth
// @Success 204
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if err := h.service.Logout(c.Request.Context(), userID); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
