package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timeblock-api/internal/middleware"
	"github.com/noah-isme/timeblock-api/internal/models"
	"github.com/noah-isme/timeblock-api/internal/service"
	appErrors "github.com/noah-isme/timeblock-api/pkg/errors"
	"github.com/noah-isme/timeblock-api/pkg/response"
)

type timeBlockService interface {
	List(ctx context.Context, userID string, visibleOnly bool) ([]models.TimeBlock, error)
	History(ctx context.Context, userID string, page, pageSize int) ([]models.TimeBlock, *models.Pagination, error)
	Get(ctx context.Context, userID, id string) (*models.TimeBlock, error)
	Create(ctx context.Context, userID string, req service.TimeBlockRequest) (*models.TimeBlock, error)
	Update(ctx context.Context, userID, id string, req service.TimeBlockRequest) (*models.TimeBlock, bool, error)
	Reschedule(ctx context.Context, userID, id string, req service.ScheduleRequest) (*models.TimeBlock, bool, error)
	Delete(ctx context.Context, userID, id string) (bool, error)
}

// TimeBlockHandler exposes time block CRUD endpoints.
type TimeBlockHandler struct {
	service timeBlockService
}

// NewTimeBlockHandler constructs the handler.
func NewTimeBlockHandler(service timeBlockService) *TimeBlockHandler {
	return &TimeBlockHandler{service: service}
}

// List godoc
// @Summary List time blocks
// @Tags TimeBlocks
// @Produce json
// @Param visible query bool false "Only blocks of visible categories"
// @Success 200 {object} response.Envelope
// @Router /time-blocks [get]
func (h *TimeBlockHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	visibleOnly, _ := strconv.ParseBool(c.Query("visible"))
	blocks, err := h.service.List(c.Request.Context(), userID, visibleOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, blocks)
}

// History godoc
// @Summary List time blocks, most recent first
// @Tags TimeBlocks
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /time-blocks/history [get]
func (h *TimeBlockHandler) History(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	blocks, pagination, err := h.service.History(c.Request.Context(), userID, page, pageSize)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, blocks, pagination)
}

// Get godoc
// @Summary Get a time block
// @Tags TimeBlocks
// @Produce json
// @Param id path string true "Block ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /time-blocks/{id} [get]
func (h *TimeBlockHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	block, err := h.service.Get(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, block)
}

// Create godoc
// @Summary Create a time block
// @Tags TimeBlocks
// @Accept json
// @Produce json
// @Param payload body service.TimeBlockRequest true "Time block"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /time-blocks [post]
func (h *TimeBlockHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req service.TimeBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid time block payload"))
		return
	}
	block, err := h.service.Create(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, block)
}

// Update godoc
// @Summary Replace a time block
// @Description Unknown ids are ignored and reported with meta.applied=false.
// @Tags TimeBlocks
// @Accept json
// @Produce json
// @Param id path string true "Block ID"
// @Param payload body service.TimeBlockRequest true "Time block"
// @Success 200 {object} response.Envelope
// @Router /time-blocks/{id} [put]
func (h *TimeBlockHandler) Update(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req service.TimeBlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid time block payload"))
		return
	}
	block, applied, err := h.service.Update(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "applied", applied)
	response.OK(c, block, middleware.ExtractMeta(c))
}

// Reschedule godoc
// @Summary Move or resize a time block
// @Tags TimeBlocks
// @Accept json
// @Produce json
// @Param id path string true "Block ID"
// @Param payload body service.ScheduleRequest true "New start and end"
// @Success 200 {object} response.Envelope
// @Router /time-blocks/{id}/schedule [patch]
func (h *TimeBlockHandler) Reschedule(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	var req service.ScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid schedule payload"))
		return
	}
	block, applied, err := h.service.Reschedule(c.Request.Context(), userID, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetMeta(c, "applied", applied)
	response.OK(c, block, middleware.ExtractMeta(c))
}

// Delete godoc
// @Summary Delete a time block
// @Tags TimeBlocks
// @Param id path string true "Block ID"
// @Success 204
// @Router /time-blocks/{id} [delete]
func (h *TimeBlockHandler) Delete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if _, err := h.service.Delete(c.Request.Context(), userID, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
