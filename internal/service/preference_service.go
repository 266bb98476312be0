package service

import (
	"context"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/timeblock-api/internal/models"
	appErrors "github.com/noah-isme/timeblock-api/pkg/errors"
)

// PreferencesRequest updates display preferences.
type PreferencesRequest struct {
	Theme models.Theme `json:"theme" validate:"required,oneof=light dark"`
}

// Preferences is the display preference read model.
type Preferences struct {
	Theme models.Theme `json:"theme"`
}

// PreferenceService stores per-user display preferences.
type PreferenceService struct {
	sessionCommitter
	validator *validator.Validate
}

// NewPreferenceService constructs a PreferenceService.
func NewPreferenceService(sessions sessionManager, validate *validator.Validate, logger *zap.Logger) *PreferenceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PreferenceService{
		sessionCommitter: sessionCommitter{sessions: sessions, logger: logger},
		validator:        validate,
	}
}

// Get returns the stored preferences.
func (s *PreferenceService) Get(ctx context.Context, userID string) (*Preferences, error) {
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	return &Preferences{Theme: sess.Snapshot().Theme}, nil
}

// Update validates and stores preferences.
func (s *PreferenceService) Update(ctx context.Context, userID string, req PreferencesRequest) (*Preferences, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid preferences payload")
	}
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	sess.SetTheme(req.Theme)
	s.commit(ctx, sess)
	return &Preferences{Theme: req.Theme}, nil
}
