package handler

import (
	"context"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timeblock-api/internal/middleware"
	"github.com/noah-isme/timeblock-api/internal/models"
	"github.com/noah-isme/timeblock-api/internal/service"
	appErrors "github.com/noah-isme/timeblock-api/pkg/errors"
	"github.com/noah-isme/timeblock-api/pkg/response"
)

type analyticsService interface {
	Summary(ctx context.Context, userID string) (*models.AnalyticsSummary, bool, error)
	SystemMetrics() models.AnalyticsSystemMetrics
}

type exportService interface {
	Render(ctx context.Context, userID string, format service.ExportFormat) (*service.ExportFile, error)
	Store(ctx context.Context, userID string, format service.ExportFormat) (*service.StoredExport, error)
	Open(token string) (*service.ExportDownload, error)
}

// AnalyticsHandler exposes per-category analytics and their exports.
type AnalyticsHandler struct {
	analytics analyticsService
	exports   exportService
}

// NewAnalyticsHandler constructs the analytics handler. exports may be nil when exports
// are disabled.
func NewAnalyticsHandler(analytics analyticsService, exports exportService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics, exports: exports}
}

// Categories godoc
// @Summary Time per category
// @Description Hours, block count and share of total for the visible blocks of each category.
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/categories [get]
func (h *AnalyticsHandler) Categories(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	summary, cacheHit, err := h.analytics.Summary(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.OK(c, summary, middleware.ExtractMeta(c))
}

// System godoc
// @Summary Service instrumentation snapshot
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/system [get]
func (h *AnalyticsHandler) System(c *gin.Context) {
	response.OK(c, h.analytics.SystemMetrics(), middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Download the category summary
// @Tags Analytics
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Router /analytics/export [get]
func (h *AnalyticsHandler) Export(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrFeatureDisabled, "exports are disabled"))
		return
	}
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	file, err := h.exports.Render(c.Request.Context(), userID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

// StoreExport godoc
// @Summary Store the category summary behind a signed download link
// @Tags Analytics
// @Produce json
// @Param format query string false "csv (default) or pdf"
// @Success 201 {object} response.Envelope
// @Router /analytics/exports [post]
func (h *AnalyticsHandler) StoreExport(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrFeatureDisabled, "exports are disabled"))
		return
	}
	format, err := service.ParseExportFormat(c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	stored, err := h.exports.Store(c.Request.Context(), userID, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, stored)
}

// Download godoc
// @Summary Download a stored export
// @Tags Analytics
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /exports/{token} [get]
func (h *AnalyticsHandler) Download(c *gin.Context) {
	if h.exports == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrFeatureDisabled, "exports are disabled"))
		return
	}
	download, err := h.exports.Open(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer download.File.Close() //nolint:errcheck

	body, err := io.ReadAll(download.File)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, http.StatusInternalServerError, "failed to read export"))
		return
	}
	response.Attachment(c, download.Filename, download.ContentType, body)
}
