package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timeblock-api/internal/models"
	appErrors "github.com/noah-isme/timeblock-api/pkg/errors"
)

func newTimeBlockService() (*TimeBlockService, *stubSessions, *stubCacheRepo) {
	sessions := newStubSessions()
	cacheRepo := newStubCacheRepo()
	return NewTimeBlockService(sessions, newCache(cacheRepo), validator.New(), nil), sessions, cacheRepo
}

func validRequest() TimeBlockRequest {
	return TimeBlockRequest{
		Title:    "Deep work",
		Start:    "2024-01-15T09:00:00Z",
		End:      "2024-01-15T12:00:00Z",
		Category: models.CategoryCLT,
	}
}

func TestTimeBlockServiceCreate(t *testing.T) {
	svc, sessions, cacheRepo := newTimeBlockService()

	block, err := svc.Create(context.Background(), "u1", validRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, block.ID)
	assert.Equal(t, models.SourceNative, block.Source)
	assert.Equal(t, time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC), block.Start)

	list, err := svc.List(context.Background(), "u1", false)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, block.ID, list[0].ID)
	assert.Equal(t, 1, sessions.persisted)
	assert.Equal(t, []string{"analytics:u1:*"}, cacheRepo.invalidated)
}

func TestTimeBlockServiceCreateValidation(t *testing.T) {
	svc, _, _ := newTimeBlockService()

	req := validRequest()
	req.Category = "gaming"
	_, err := svc.Create(context.Background(), "u1", req)
	assert.True(t, errors.Is(err, appErrors.ErrUnknownCategory))

	req = validRequest()
	req.Category = models.CategoryExternal
	_, err = svc.Create(context.Background(), "u1", req)
	assert.True(t, errors.Is(err, appErrors.ErrUnknownCategory))

	req = validRequest()
	req.Title = ""
	_, err = svc.Create(context.Background(), "u1", req)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	req = validRequest()
	req.End = req.Start
	_, err = svc.Create(context.Background(), "u1", req)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	req = validRequest()
	req.Start = "yesterday"
	_, err = svc.Create(context.Background(), "u1", req)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	list, err := svc.List(context.Background(), "u1", false)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestTimeBlockServicePersistFailureDoesNotFail(t *testing.T) {
	svc, sessions, _ := newTimeBlockService()
	sessions.persistErr = errors.New("redis down")

	_, err := svc.Create(context.Background(), "u1", validRequest())
	require.NoError(t, err)
	sess, _ := sessions.Get(context.Background(), "u1")
	assert.True(t, sess.Dirty())
}

func TestTimeBlockServiceUpdate(t *testing.T) {
	svc, _, _ := newTimeBlockService()
	created, err := svc.Create(context.Background(), "u1", validRequest())
	require.NoError(t, err)

	req := validRequest()
	req.Title = "Renamed"
	req.Category = models.CategoryEstudo
	updated, applied, err := svc.Update(context.Background(), "u1", created.ID, req)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, created.ID, updated.ID)

	got, err := svc.Get(context.Background(), "u1", created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, models.CategoryEstudo, got.Category)
}

func TestTimeBlockServiceUpdateUnknownIsNoop(t *testing.T) {
	svc, sessions, _ := newTimeBlockService()
	_, err := svc.Create(context.Background(), "u1", validRequest())
	require.NoError(t, err)
	persisted := sessions.persisted

	block, applied, err := svc.Update(context.Background(), "u1", "missing", validRequest())
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Nil(t, block)
	assert.Equal(t, persisted, sessions.persisted)

	list, _ := svc.List(context.Background(), "u1", false)
	assert.Len(t, list, 1)
}

func TestTimeBlockServiceReschedule(t *testing.T) {
	svc, _, _ := newTimeBlockService()
	created, err := svc.Create(context.Background(), "u1", validRequest())
	require.NoError(t, err)

	moved, applied, err := svc.Reschedule(context.Background(), "u1", created.ID, ScheduleRequest{
		Start: "2024-01-16T14:00:00Z",
		End:   "2024-01-16T15:30:00Z",
	})
	require.NoError(t, err)
	require.True(t, applied)
	assert.Equal(t, created.Title, moved.Title)
	assert.Equal(t, 16, moved.Start.Day())

	_, applied, err = svc.Reschedule(context.Background(), "u1", "missing", ScheduleRequest{Start: "2024-01-16T14:00:00Z", End: "2024-01-16T15:00:00Z"})
	require.NoError(t, err)
	assert.False(t, applied)

	_, _, err = svc.Reschedule(context.Background(), "u1", created.ID, ScheduleRequest{Start: "2024-01-16T14:00:00Z"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestTimeBlockServiceDelete(t *testing.T) {
	svc, _, _ := newTimeBlockService()
	created, err := svc.Create(context.Background(), "u1", validRequest())
	require.NoError(t, err)

	removed, err := svc.Delete(context.Background(), "u1", created.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removed, err = svc.Delete(context.Background(), "u1", created.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	_, err = svc.Get(context.Background(), "u1", created.ID)
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestTimeBlockServiceHistoryPagination(t *testing.T) {
	svc, _, _ := newTimeBlockService()
	for day := 1; day <= 5; day++ {
		req := validRequest()
		req.Start = fmt.Sprintf("2024-01-%02dT09:00:00Z", day)
		req.End = fmt.Sprintf("2024-01-%02dT10:00:00Z", day)
		_, err := svc.Create(context.Background(), "u1", req)
		require.NoError(t, err)
	}

	page, pagination, err := svc.History(context.Background(), "u1", 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 5, page[0].Start.Day())
	assert.Equal(t, 4, page[1].Start.Day())
	assert.Equal(t, 5, pagination.TotalCount)

	page, _, err = svc.History(context.Background(), "u1", 3, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, 1, page[0].Start.Day())

	page, pagination, err = svc.History(context.Background(), "u1", 10, 500)
	require.NoError(t, err)
	assert.Empty(t, page)
	assert.Equal(t, maxHistoryPageSize, pagination.PageSize)
}

func TestTimeBlockServiceListVisibleOnly(t *testing.T) {
	svc, sessions, _ := newTimeBlockService()
	_, err := svc.Create(context.Background(), "u1", validRequest())
	require.NoError(t, err)
	req := validRequest()
	req.Category = models.CategoryPJ
	_, err = svc.Create(context.Background(), "u1", req)
	require.NoError(t, err)

	sess, _ := sessions.Get(context.Background(), "u1")
	_, err = sess.ToggleFilter(models.CategoryPJ)
	require.NoError(t, err)

	visible, err := svc.List(context.Background(), "u1", true)
	require.NoError(t, err)
	require.Len(t, visible, 1)
	assert.Equal(t, models.CategoryCLT, visible[0].Category)

	all, err := svc.List(context.Background(), "u1", false)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestTimeBlockServiceSessionError(t *testing.T) {
	svc, sessions, _ := newTimeBlockService()
	sessions.getErr = appErrors.Clone(appErrors.ErrInternal, "load failed")

	_, err := svc.List(context.Background(), "u1", false)
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}
