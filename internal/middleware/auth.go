package middleware

import (
	"context"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/favor-exchange-api/internal/auth"
	"github.com/yukikurage/favor-exchange-api/internal/constants"
	apierrors "github.com/yukikurage/favor-exchange-api/internal/errors"
	"github.com/yukikurage/favor-exchange-api/internal/models"
)

// contextKeyTokenExpiry holds the expiry of the presented token
const contextKeyTokenExpiry = "token_expiry"

// Authenticator verifies an access token
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*auth.Claims, error)
}

// RequireAuth checks if the user is authenticated via a bearer token or the
// token cookie
func RequireAuth(authenticator Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractToken(c)
		if token == "" {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		claims, err := authenticator.Authenticate(c.Request.Context(), token)
		if err != nil {
			apierrors.Respond(c, err)
			c.Abort()
			return
		}

		// Store identity in context for easy access in handlers
		c.Set(constants.ContextKeyUserID, claims.UserID)
		c.Set(constants.ContextKeyRole, claims.Role)
		c.Set(constants.ContextKeyTokenID, claims.ID)
		if claims.ExpiresAt != nil {
			c.Set(contextKeyTokenExpiry, claims.ExpiresAt.Time)
		}
		c.Next()
	}
}

// RequireRole rejects callers whose role is not one of roles. It must run
// after RequireAuth.
func RequireRole(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		role, exists := GetRole(c)
		if !exists {
			apierrors.Unauthorized(c, "")
			c.Abort()
			return
		}

		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}

		apierrors.Forbidden(c, "")
		c.Abort()
	}
}

func extractToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); strings.HasPrefix(header, constants.AuthHeaderPrefix) {
		return strings.TrimSpace(strings.TrimPrefix(header, constants.AuthHeaderPrefix))
	}
	if cookie, err := c.Cookie(constants.TokenCookieName); err == nil {
		return cookie
	}
	return ""
}

// GetUserID retrieves the current user ID from context
func GetUserID(c *gin.Context) (uint64, bool) {
	userID, exists := c.Get(constants.ContextKeyUserID)
	if !exists {
		return 0, false
	}

	switch v := userID.(type) {
	case uint64:
		return v, true
	case uint:
		return uint64(v), true
	case int:
		if v < 0 {
			return 0, false
		}
		return uint64(v), true
	default:
		return 0, false
	}
}

// GetRole retrieves the current user role from context
func GetRole(c *gin.Context) (models.UserRole, bool) {
	role, exists := c.Get(constants.ContextKeyRole)
	if !exists {
		return "", false
	}
	r, ok := role.(models.UserRole)
	return r, ok
}

// GetToken returns the id and expiry of the presented token
func GetToken(c *gin.Context) (string, time.Time, bool) {
	id := c.GetString(constants.ContextKeyTokenID)
	if id == "" {
		return "", time.Time{}, false
	}
	return id, c.GetTime(contextKeyTokenExpiry), true
}
