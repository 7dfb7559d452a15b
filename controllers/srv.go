// controllers/srv.go
package controllers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"toolsharer/app"
	"toolsharer/borrow"
	"toolsharer/db"
	"toolsharer/jsonlog"
	"toolsharer/models"

	"github.com/gin-gonic/gin"
)

// SessionStore is the part of the redis session store the handlers use.
type SessionStore interface {
	Create(ctx context.Context, userID, email string) (string, error)
	Delete(ctx context.Context, id string) error
	RevokeAllForUser(ctx context.Context, userID string) error
	TTL() time.Duration
}

type Srv struct {
	Repo    *db.Repo
	Engine  *borrow.Engine
	AppSess SessionStore
	Logger  *jsonlog.Logger
	Cfg     app.Config
}

func GetSrv(a *app.App) *Srv {
	return &Srv{
		Repo:    a.Repo,
		Engine:  a.Engine,
		AppSess: a.AppSessions(),
		Logger:  a.Logger,
		Cfg:     a.Config,
	}
}

var errInvalidPosition = errors.New("lat and lng must be valid coordinates")

// --- helpers ---

// fail 把领域错误映射为 HTTP 状态码，响应体统一为 {"error": "..."}
func (s *Srv) fail(c *gin.Context, err error) {
	var be *borrow.Error
	switch {
	case errors.As(err, &be):
		c.JSON(statusOf(be.Kind), app.H{"error": be.Reason})
	case errors.Is(err, borrow.ErrNotFound):
		c.JSON(http.StatusNotFound, app.H{"error": "not found"})
	case errors.Is(err, db.ErrEmailTaken):
		c.JSON(http.StatusConflict, app.H{"error": err.Error()})
	case errors.Is(err, borrow.ErrConflict):
		c.JSON(http.StatusConflict, app.H{"error": "conflict"})
	default:
		_ = c.Error(err)
		s.Logger.PrintError(err, map[string]string{"path": c.Request.URL.Path})
		c.JSON(http.StatusInternalServerError, app.H{"error": "internal server error"})
	}
}

func statusOf(kind error) int {
	switch kind {
	case borrow.ErrNotFound:
		return http.StatusNotFound
	case borrow.ErrConflict:
		return http.StatusConflict
	case borrow.ErrValidation:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, app.H{"error": msg})
}

func forbidden(c *gin.Context) {
	c.JSON(http.StatusForbidden, app.H{"error": "forbidden"})
}

// 统一设置业务会话 Cookie
func (s *Srv) setAppCookie(w http.ResponseWriter, sessionID string, maxAge time.Duration) {
	http.SetCookie(w, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    sessionID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.Cfg.SecureCookies(),
		MaxAge:   int(maxAge / time.Second),
	})
}

// 登录成功：创建会话 + 触发登录快照
func (s *Srv) issueSession(c *gin.Context, u *models.User) (string, error) {
	ctx := c.Request.Context()
	if err := s.Repo.TouchUserLogin(ctx, u.ID, c.ClientIP(), c.Request.UserAgent()); err != nil {
		s.Logger.PrintError(err, map[string]string{"user_id": u.ID}) // 不阻塞
	}
	id, err := s.AppSess.Create(ctx, u.ID, u.Email)
	if err != nil {
		return "", err
	}
	s.setAppCookie(c.Writer, id, s.AppSess.TTL())
	return id, nil
}

// loadTool returns the tool if it exists; it answers 404 itself otherwise.
func (s *Srv) loadTool(c *gin.Context, id string) (*models.Tool, bool) {
	ts, err := s.Repo.FindTools(c.Request.Context(), borrow.ToolFilter{IDs: []string{id}})
	if err != nil {
		s.fail(c, err)
		return nil, false
	}
	if len(ts) == 0 {
		c.JSON(http.StatusNotFound, app.H{"error": "tool not found"})
		return nil, false
	}
	return &ts[0], true
}

// ownTool loads the tool and checks the caller owns it.
func (s *Srv) ownTool(c *gin.Context, id string) (*models.Tool, bool) {
	t, ok := s.loadTool(c, id)
	if !ok {
		return nil, false
	}
	if t.OwnerID != app.CurrentUserID(c) {
		forbidden(c)
		return nil, false
	}
	return t, true
}
