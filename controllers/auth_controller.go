package controllers

import (
	"net/http"
	"net/mail"
	"strings"

	"toolsharer/app"

	"github.com/gin-gonic/gin"
)

type AuthController struct{ *Srv }

func NewAuthController(s *Srv) *AuthController { return &AuthController{Srv: s} }

// POST /auth/dev/login  {email, fullName}
// 开发环境登录：按邮箱查找或创建用户，直接签发会话
func (ac *AuthController) DevLogin(c *gin.Context) {
	if !ac.Cfg.DevLoginEnabled {
		c.JSON(http.StatusNotFound, app.H{"error": "dev login disabled"})
		return
	}
	var in struct {
		Email    string `json:"email" binding:"required"`
		FullName string `json:"fullName"`
	}
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		badRequest(c, "invalid email")
		return
	}

	u, created, err := ac.Repo.FindOrCreateUserByEmail(c.Request.Context(), in.Email, in.FullName)
	if err != nil {
		ac.fail(c, err)
		return
	}
	token, err := ac.issueSession(c, u)
	if err != nil {
		ac.fail(c, err)
		return
	}
	if created {
		ac.Logger.PrintInfo("user registered", map[string]string{"user_id": u.ID, "email": u.Email})
	}
	c.JSON(http.StatusOK, app.H{"user": u, "token": token, "created": created})
}

// GET /auth/me
func (ac *AuthController) Me(c *gin.Context) {
	u, err := ac.Repo.FindUserByID(c.Request.Context(), app.CurrentUserID(c))
	if err != nil {
		ac.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": u})
}

// POST /auth/logout
func (ac *AuthController) Logout(c *gin.Context) {
	if sid := app.SessionID(c); sid != "" {
		_ = ac.AppSess.Delete(c.Request.Context(), sid)
	}
	ac.clearCookie(c)
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// POST /auth/logout-all 撤销当前用户的所有会话
func (ac *AuthController) LogoutAll(c *gin.Context) {
	if err := ac.AppSess.RevokeAllForUser(c.Request.Context(), app.CurrentUserID(c)); err != nil {
		ac.fail(c, err)
		return
	}
	ac.clearCookie(c)
	c.JSON(http.StatusOK, app.H{"ok": true})
}

func (ac *AuthController) clearCookie(c *gin.Context) {
	http.SetCookie(c.Writer, &http.Cookie{
		Name:     app.AppSessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   strings.HasPrefix(ac.Cfg.WebOrigin, "https://"),
	})
}
