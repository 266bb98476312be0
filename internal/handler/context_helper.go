package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/timeblock-api/internal/middleware"
	"github.com/noah-isme/timeblock-api/internal/models"
	appErrors "github.com/noah-isme/timeblock-api/pkg/errors"
	"github.com/noah-isme/timeblock-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// requireIdentity writes a 401 and returns false when the request carries no identity.
func requireIdentity(c *gin.Context) (models.Identity, bool) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Identity{}, false
	}
	identity := claims.Identity()
	if identity.UserID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return models.Identity{}, false
	}
	return identity, true
}

func requireUserID(c *gin.Context) (string, bool) {
	identity, ok := requireIdentity(c)
	return identity.UserID, ok
}

// parseDateParam reads the "date" query parameter, defaulting to the start of today in UTC.
func parseDateParam(c *gin.Context, now time.Time) (time.Time, error) {
	raw := c.Query("date")
	if raw == "" {
		return now.UTC().Truncate(24 * time.Hour), nil
	}
	date, ok := models.ParseTimestamp(raw)
	if !ok {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "invalid date parameter")
	}
	return date, nil
}
