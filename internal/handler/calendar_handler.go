package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timeblock-api/internal/service"
	"github.com/noah-isme/timeblock-api/pkg/response"
)

type calendarService interface {
	Events(ctx context.Context, userID string, date time.Time) (*service.CalendarView, error)
	RefreshExternal(ctx context.Context, userID string, date time.Time) (*service.CalendarView, error)
}

// CalendarHandler serves the combined calendar view.
type CalendarHandler struct {
	service calendarService
	now     func() time.Time
}

// NewCalendarHandler constructs the handler.
func NewCalendarHandler(service calendarService) *CalendarHandler {
	return &CalendarHandler{service: service, now: time.Now}
}

// Events godoc
// @Summary Calendar events around a date
// @Description Visible time blocks plus read-only external events. A changed window schedules a background refresh of external events.
// @Tags Calendar
// @Produce json
// @Param date query string false "Selected date (YYYY-MM-DD or RFC3339), defaults to today"
// @Success 200 {object} response.Envelope
// @Router /calendar [get]
func (h *CalendarHandler) Events(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	date, err := parseDateParam(c, h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.service.Events(c.Request.Context(), userID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// RefreshExternal godoc
// @Summary Refresh external events now
// @Tags Calendar
// @Produce json
// @Param date query string false "Selected date (YYYY-MM-DD or RFC3339), defaults to today"
// @Success 200 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /calendar/external/refresh [post]
func (h *CalendarHandler) RefreshExternal(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}
	date, err := parseDateParam(c, h.now())
	if err != nil {
		response.Error(c, err)
		return
	}
	view, err := h.service.RefreshExternal(c.Request.Context(), userID, date)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}
