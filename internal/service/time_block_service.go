package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/timeblock-api/internal/models"
	"github.com/noah-isme/timeblock-api/internal/views"
	appErrors "github.com/noah-isme/timeblock-api/pkg/errors"
)

const (
	defaultHistoryPageSize = 20
	maxHistoryPageSize     = 100
)

// TimeBlockRequest is the payload for creating or replacing a time block.
type TimeBlockRequest struct {
	Title       string          `json:"title" validate:"required,max=200"`
	Start       string          `json:"start" validate:"required"`
	End         string          `json:"end" validate:"required"`
	Category    models.Category `json:"category" validate:"required,category"`
	Description string          `json:"description" validate:"max=2000"`
}

// ScheduleRequest moves or resizes a block.
type ScheduleRequest struct {
	Start string `json:"start" validate:"required"`
	End   string `json:"end" validate:"required"`
}

// TimeBlockService validates and applies time block writes on a user's session.
type TimeBlockService struct {
	sessionCommitter
	validator *validator.Validate
}

// NewTimeBlockService constructs the service and registers the category validation rule.
func NewTimeBlockService(sessions sessionManager, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *TimeBlockService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	_ = validate.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return models.IsKnownCategory(models.Category(fl.Field().String()))
	})
	return &TimeBlockService{
		sessionCommitter: sessionCommitter{sessions: sessions, cache: cache, logger: logger},
		validator:        validate,
	}
}

// List returns the user's blocks in store order, optionally limited to visible categories.
func (s *TimeBlockService) List(ctx context.Context, userID string, visibleOnly bool) ([]models.TimeBlock, error) {
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	snap := sess.Snapshot()
	if visibleOnly {
		return views.VisibleEvents(snap.Blocks, snap.Filters), nil
	}
	return snap.Blocks, nil
}

// History returns one page of blocks ordered most recent first.
func (s *TimeBlockService) History(ctx context.Context, userID string, page, pageSize int) ([]models.TimeBlock, *models.Pagination, error) {
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultHistoryPageSize
	}
	if pageSize > maxHistoryPageSize {
		pageSize = maxHistoryPageSize
	}

	history := views.HistoryView(sess.Snapshot().Blocks)
	total := len(history)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return history[start:end], &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a single block.
func (s *TimeBlockService) Get(ctx context.Context, userID, id string) (*models.TimeBlock, error) {
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	block, ok := sess.Block(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "time block not found")
	}
	return &block, nil
}

// Create validates req and appends a new block with a generated id.
func (s *TimeBlockService) Create(ctx context.Context, userID string, req TimeBlockRequest) (*models.TimeBlock, error) {
	block, err := s.buildBlock(req)
	if err != nil {
		return nil, err
	}
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	block.ID = uuid.NewString()
	sess.AddBlock(block)
	s.commit(ctx, sess)
	s.logger.Debug("time block created", zap.String("user_id", userID), zap.String("block_id", block.ID))
	return &block, nil
}

// Update replaces the block with id. applied is false when no block carries the id; the
// store is left untouched in that case.
func (s *TimeBlockService) Update(ctx context.Context, userID, id string, req TimeBlockRequest) (*models.TimeBlock, bool, error) {
	block, err := s.buildBlock(req)
	if err != nil {
		return nil, false, err
	}
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	block.ID = id
	if !sess.UpdateBlock(block) {
		return nil, false, nil
	}
	s.commit(ctx, sess)
	return &block, true, nil
}

// Reschedule changes the start and end of an existing block, keeping its other fields.
func (s *TimeBlockService) Reschedule(ctx context.Context, userID, id string, req ScheduleRequest) (*models.TimeBlock, bool, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid schedule payload")
	}
	start, end, err := parseRange(req.Start, req.End)
	if err != nil {
		return nil, false, err
	}
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	block, ok := sess.Block(id)
	if !ok {
		return nil, false, nil
	}
	block.Start, block.End = start, end
	if !sess.UpdateBlock(block) {
		// deleted concurrently
		return nil, false, nil
	}
	s.commit(ctx, sess)
	return &block, true, nil
}

// Delete removes the block with id and reports whether one was removed.
func (s *TimeBlockService) Delete(ctx context.Context, userID, id string) (bool, error) {
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return false, err
	}
	if !sess.DeleteBlock(id) {
		return false, nil
	}
	s.commit(ctx, sess)
	return true, nil
}

func (s *TimeBlockService) buildBlock(req TimeBlockRequest) (models.TimeBlock, error) {
	if err := s.validator.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				if fe.Tag() == "category" {
					return models.TimeBlock{}, appErrors.Clone(appErrors.ErrUnknownCategory, fmt.Sprintf("unknown category %q", req.Category))
				}
			}
		}
		return models.TimeBlock{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time block payload")
	}
	start, end, err := parseRange(req.Start, req.End)
	if err != nil {
		return models.TimeBlock{}, err
	}
	return models.TimeBlock{
		Title:       req.Title,
		Start:       start,
		End:         end,
		Category:    req.Category,
		Description: req.Description,
		Source:      models.SourceNative,
	}, nil
}

func parseRange(rawStart, rawEnd string) (time.Time, time.Time, error) {
	start, ok := models.ParseTimestamp(rawStart)
	if !ok {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid start timestamp")
	}
	end, ok := models.ParseTimestamp(rawEnd)
	if !ok {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid end timestamp")
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, appErrors.Clone(appErrors.ErrValidation, "end must be after start")
	}
	return start, end, nil
}
