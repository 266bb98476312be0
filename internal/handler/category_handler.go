package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timeblock-api/internal/models"
	"github.com/noah-isme/timeblock-api/pkg/response"
)

// CategoryHandler exposes the static category registry.
type CategoryHandler struct{}

// NewCategoryHandler constructs the handler.
func NewCategoryHandler() *CategoryHandler {
	return &CategoryHandler{}
}

// List godoc
// @Summary List categories
// @Tags Categories
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	response.OK(c, models.Categories())
}
