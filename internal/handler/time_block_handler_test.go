package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timeblock-api/internal/models"
	"github.com/noah-isme/timeblock-api/internal/service"
	appErrors "github.com/noah-isme/timeblock-api/pkg/errors"
)

type timeBlockServiceMock struct {
	listVisible bool
	createReq   service.TimeBlockRequest
	createErr   error
	applied     bool
	userID      string
	page        int
	pageSize    int
}

func (m *timeBlockServiceMock) List(_ context.Context, userID string, visibleOnly bool) ([]models.TimeBlock, error) {
	m.userID = userID
	m.listVisible = visibleOnly
	return []models.TimeBlock{{ID: "b1", Category: models.CategoryCLT}}, nil
}

func (m *timeBlockServiceMock) History(_ context.Context, _ string, page, pageSize int) ([]models.TimeBlock, *models.Pagination, error) {
	m.page, m.pageSize = page, pageSize
	return []models.TimeBlock{{ID: "b1"}}, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: 1}, nil
}

func (m *timeBlockServiceMock) Get(_ context.Context, _, id string) (*models.TimeBlock, error) {
	if id != "b1" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "time block not found")
	}
	return &models.TimeBlock{ID: id}, nil
}

func (m *timeBlockServiceMock) Create(_ context.Context, userID string, req service.TimeBlockRequest) (*models.TimeBlock, error) {
	m.userID = userID
	m.createReq = req
	if m.createErr != nil {
		return nil, m.createErr
	}
	return &models.TimeBlock{ID: "new", Title: req.Title, Category: req.Category}, nil
}

func (m *timeBlockServiceMock) Update(_ context.Context, _, id string, req service.TimeBlockRequest) (*models.TimeBlock, bool, error) {
	if !m.applied {
		return nil, false, nil
	}
	return &models.TimeBlock{ID: id, Title: req.Title}, true, nil
}

func (m *timeBlockServiceMock) Reschedule(_ context.Context, _, id string, _ service.ScheduleRequest) (*models.TimeBlock, bool, error) {
	return &models.TimeBlock{ID: id}, m.applied, nil
}

func (m *timeBlockServiceMock) Delete(context.Context, string, string) (bool, error) {
	return false, nil
}

func TestTimeBlockHandlerList(t *testing.T) {
	mock := &timeBlockServiceMock{}
	h := NewTimeBlockHandler(mock)
	c, w := newTestContext(http.MethodGet, "/time-blocks?visible=true", "", "user-1")

	h.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mock.listVisible)
	assert.Equal(t, "user-1", mock.userID)
	var blocks []models.TimeBlock
	require.NoError(t, json.Unmarshal(decodeEnvelope(t, w).Data, &blocks))
	assert.Len(t, blocks, 1)
}

func TestTimeBlockHandlerRequiresIdentity(t *testing.T) {
	h := NewTimeBlockHandler(&timeBlockServiceMock{})
	c, w := newTestContext(http.MethodGet, "/time-blocks", "", "")

	h.List(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, decodeEnvelope(t, w).Error.Code)
}

func TestTimeBlockHandlerHistory(t *testing.T) {
	mock := &timeBlockServiceMock{}
	h := NewTimeBlockHandler(mock)
	c, w := newTestContext(http.MethodGet, "/time-blocks/history?page=2&page_size=5", "", "user-1")

	h.History(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, mock.page)
	assert.Equal(t, 5, mock.pageSize)
	env := decodeEnvelope(t, w)
	require.NotNil(t, env.Pagination)
	assert.Equal(t, 1, env.Pagination.TotalCount)
}

func TestTimeBlockHandlerGetNotFound(t *testing.T) {
	h := NewTimeBlockHandler(&timeBlockServiceMock{})
	c, w := newTestContext(http.MethodGet, "/time-blocks/missing", "", "user-1")
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	h.Get(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimeBlockHandlerCreate(t *testing.T) {
	mock := &timeBlockServiceMock{}
	h := NewTimeBlockHandler(mock)
	body := `{"title":"Deep work","start":"2024-01-15T09:00:00Z","end":"2024-01-15T12:00:00Z","category":"clt"}`
	c, w := newTestContext(http.MethodPost, "/time-blocks", body, "user-1")

	h.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Deep work", mock.createReq.Title)
	assert.Equal(t, models.CategoryCLT, mock.createReq.Category)
}

func TestTimeBlockHandlerCreateErrors(t *testing.T) {
	mock := &timeBlockServiceMock{}
	h := NewTimeBlockHandler(mock)
	c, w := newTestContext(http.MethodPost, "/time-blocks", `{"title":`, "user-1")
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	mock.createErr = appErrors.Clone(appErrors.ErrUnknownCategory, "unknown category")
	c, w = newTestContext(http.MethodPost, "/time-blocks", `{"title":"x","category":"gaming"}`, "user-1")
	h.Create(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, appErrors.ErrUnknownCategory.Code, decodeEnvelope(t, w).Error.Code)
}

func TestTimeBlockHandlerUpdateReportsApplied(t *testing.T) {
	mock := &timeBlockServiceMock{}
	h := NewTimeBlockHandler(mock)
	body := `{"title":"Renamed","start":"2024-01-15T09:00:00Z","end":"2024-01-15T12:00:00Z","category":"clt"}`

	c, w := newTestContext(http.MethodPut, "/time-blocks/missing", body, "user-1")
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.Update(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decodeEnvelope(t, w).Meta["applied"])

	mock.applied = true
	c, w = newTestContext(http.MethodPut, "/time-blocks/b1", body, "user-1")
	c.Params = gin.Params{{Key: "id", Value: "b1"}}
	h.Update(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeEnvelope(t, w).Meta["applied"])
}

func TestTimeBlockHandlerReschedule(t *testing.T) {
	h := NewTimeBlockHandler(&timeBlockServiceMock{applied: true})
	c, w := newTestContext(http.MethodPatch, "/time-blocks/b1/schedule", `{"start":"2024-01-15T10:00:00Z","end":"2024-01-15T11:00:00Z"}`, "user-1")
	c.Params = gin.Params{{Key: "id", Value: "b1"}}

	h.Reschedule(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeEnvelope(t, w).Meta["applied"])
}

func TestTimeBlockHandlerDeleteAlwaysNoContent(t *testing.T) {
	h := NewTimeBlockHandler(&timeBlockServiceMock{})
	c, w := newTestContext(http.MethodDelete, "/time-blocks/missing", "", "user-1")
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	h.Delete(c)
	c.Writer.WriteHeaderNow()

	assert.Equal(t, http.StatusNoContent, w.Code)
}
