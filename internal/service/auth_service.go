package service

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/noah-isme/timeblock-api/internal/models"
	appErrors "github.com/noah-isme/timeblock-api/pkg/errors"
)

// AuthConfig defines how access tokens from the identity provider are verified.
type AuthConfig struct {
	AccessTokenSecret string
	Issuer            string
	Audience          string
}

// AuthStatus is the identity read model returned by /auth/me.
type AuthStatus struct {
	User models.Identity     `json:"user"`
	Auth models.AuthSnapshot `json:"auth"`
}

// AuthService verifies identity tokens and tracks the auth snapshot of each session.
type AuthService struct {
	sessionCommitter
	config AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(sessions sessionManager, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuthService{
		sessionCommitter: sessionCommitter{sessions: sessions, logger: logger},
		config:           config,
	}
}

// ValidateToken parses and validates an access token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.JWTClaims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.config.Issuer))
	}
	if s.config.Audience != "" {
		opts = append(opts, jwt.WithAudience(s.config.Audience))
	}
	token, err := jwt.ParseWithClaims(tokenString, &models.JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.AccessTokenSecret), nil
	}, opts...)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid token")
	}

	claims, ok := token.Claims.(*models.JWTClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token claims")
	}
	if claims.Identity().UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "token has no subject")
	}
	return claims, nil
}

// Observe records identity as the authenticated user of its session.
func (s *AuthService) Observe(ctx context.Context, identity models.Identity) error {
	sess, err := s.sessions.Get(ctx, identity.UserID)
	if err != nil {
		return err
	}
	if sess.SetUser(identity) {
		s.commit(ctx, sess)
	}
	return nil
}

// Me returns the identity and auth snapshot of the session.
func (s *AuthService) Me(ctx context.Context, identity models.Identity) (*AuthStatus, error) {
	sess, err := s.sessions.Get(ctx, identity.UserID)
	if err != nil {
		return nil, err
	}
	return &AuthStatus{User: identity, Auth: sess.Snapshot().Auth}, nil
}

// Logout clears the auth snapshot and writes the session back.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	sess, err := s.sessions.Get(ctx, userID)
	if err != nil {
		return err
	}
	sess.ClearAuth()
	if err := s.sessions.Persist(ctx, sess); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist session state")
	}
	s.logger.Info("user logged out", zap.String("user_id", userID))
	return nil
}
