package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timeblock-api/internal/service"
	appErrors "github.com/noah-isme/timeblock-api/pkg/errors"
	"github.com/noah-isme/timeblock-api/pkg/response"
)

type preferenceService interface {
	Get(ctx context.Context, userID string) (*service.Preferences, error)
	Update(ctx context.Context, userID string, req service.PreferencesRequest) (*service.Preferences, error)
}

// PreferenceHandler exposes display preferences.
type PreferenceHandler struct {
	service preferenceService
}

// NewPreferenceHandler constructs the handler.
func NewPreferenceHandler(service preferenceService) *PreferenceHandler {
	return &PreferenceHandler{service: service}
}

// Get godoc
// @Summary Get display preferences
// @Tags Preferences
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /preferences [get]
func (h *PreferenceHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	prefs, err := h.service.Get(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, prefs)
}

// Update godoc
// @Summary Update display preferences
// @Tags Preferences
// @Accept json
// @Produce json
// @Param payload body service.PreferencesRequest true "Preferences"
// @Success 200 {object} response.Envelope
// @Router /preferences [put]
func (h *PreferenceHandler) Update(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req service.PreferencesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid preferences payload"))
		return
	}
	prefs, err := h.service.Update(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, prefs)
}
