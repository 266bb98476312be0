package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timeblock-api/internal/models"
	appErrors "github.com/noah-isme/timeblock-api/pkg/errors"
	"github.com/noah-isme/timeblock-api/pkg/response"
)

type filterService interface {
	Get(ctx context.Context, userID string) (models.CategoryFilter, error)
	Toggle(ctx context.Context, userID string, category models.Category) (models.CategoryFilter, error)
	Set(ctx context.Context, userID string, category models.Category, visible bool) (models.CategoryFilter, error)
	Reset(ctx context.Context, userID string) (models.CategoryFilter, error)
}

type setFilterRequest struct {
	Visible *bool `json:"visible" binding:"required"`
}

// FilterHandler exposes category visibility endpoints.
type FilterHandler struct {
	service filterService
}

// NewFilterHandler constructs the handler.
func NewFilterHandler(service filterService) *FilterHandler {
	return &FilterHandler{service: service}
}

// Get godoc
// @Summary Get category filters
// @Tags Filters
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /filters [get]
func (h *FilterHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	filters, err := h.service.Get(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, filters)
}

// Toggle godoc
// @Summary Toggle a category filter
// @Tags Filters
// @Produce json
// @Param category path string true "Category ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /filters/{category}/toggle [post]
func (h *FilterHandler) Toggle(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	filters, err := h.service.Toggle(c.Request.Context(), userID, models.Category(c.Param("category")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, filters)
}

// Set godoc
// @Summary Set a category filter
// @Tags Filters
// @Accept json
// @Produce json
// @Param category path string true "Category ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /filters/{category} [put]
func (h *FilterHandler) Set(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req setFilterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid filter payload"))
		return
	}
	filters, err := h.service.Set(c.Request.Context(), userID, models.Category(c.Param("category")), *req.Visible)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, filters)
}

// Reset godoc
// @Summary Make every category visible
// @Tags Filters
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /filters/reset [post]
func (h *FilterHandler) Reset(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	filters, err := h.service.Reset(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, filters)
}
