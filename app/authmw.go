package app

import (
	"context"
	"net/http"
	"strings"

	"toolsharer/borrow"
	"toolsharer/models"
	"toolsharer/session"

	"github.com/gin-gonic/gin"
)

const (
	AppSessionCookie = "app_session"

	userIDKey    = "userID"
	userEmailKey = "userEmail"
)

// SessionReader resolves a session id to its session.
type SessionReader interface {
	Get(ctx context.Context, id string) (*session.AppSession, error)
	Delete(ctx context.Context, id string) error
}

type UserFinder interface {
	FindUserByID(ctx context.Context, id string) (*models.User, error)
}

// SessionID takes the session id from the cookie, falling back to a Bearer token.
func SessionID(c *gin.Context) string {
	if ck, err := c.Request.Cookie(AppSessionCookie); err == nil && ck.Value != "" {
		return ck.Value
	}
	h := c.GetHeader("Authorization")
	if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
		return strings.TrimSpace(h[7:])
	}
	return ""
}

func AuthRequired(sessions SessionReader, users UserFinder) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid := SessionID(c)
		if sid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		as, err := sessions.Get(c.Request.Context(), sid)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "invalid session"})
			return
		}

		// 确认用户仍存在
		u, err := users.FindUserByID(c.Request.Context(), as.UserID)
		if err != nil {
			_ = sessions.Delete(c.Request.Context(), sid)
			c.AbortWithStatusJSON(http.StatusUnauthorized, H{"error": "unauthorized"})
			return
		}
		SetCurrentUser(c, u.ID, u.Email)
		c.Next()
	}
}

// SetCurrentUser marks the request as made by the user. The engine reads the
// actor from the request context for the audit trail.
func SetCurrentUser(c *gin.Context, id, email string) {
	c.Set(userIDKey, id)
	c.Set(userEmailKey, email)
	c.Request = c.Request.WithContext(borrow.WithActor(c.Request.Context(), id))
}

// CurrentUserID is the authenticated user's id, or "" on public routes.
func CurrentUserID(c *gin.Context) string { return c.GetString(userIDKey) }

func CurrentUserEmail(c *gin.Context) string { return c.GetString(userEmailKey) }
