package routes

import (
	"net/http"

	"toolsharer/app"
	"toolsharer/controllers"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	// 控制器与依赖
	s := controllers.GetSrv(a)
	authMW := app.AuthRequired(a.AppSessions(), a.Repo)
	seenMW := app.TouchLastSeen(a.Repo, a.RDB, a.Config.LastSeenThrottle)
	Register(r, s, authMW, seenMW)
}

// Register mounts every route on r. The auth middleware chain is passed in.
func Register(r *gin.Engine, s *controllers.Srv, protect ...gin.HandlerFunc) {
	authCtl := controllers.NewAuthController(s)
	userCtl := controllers.NewUserController(s)
	toolCtl := controllers.NewToolController(s)
	reqCtl := controllers.NewBorrowRequestController(s)

	r.GET("/healthz", func(c *app.Ctx) { c.JSON(http.StatusOK, app.H{"ok": true}) })

	// ------------------------------
	// 登录 / 会话
	// ------------------------------
	r.POST("/auth/dev/login", authCtl.DevLogin)
	auth := r.Group("/auth", protect...)
	{
		auth.GET("/me", authCtl.Me)
		auth.POST("/logout", authCtl.Logout)
		auth.POST("/logout-all", authCtl.LogoutAll)
	}

	api := r.Group("/api", protect...)

	users := api.Group("/users")
	{
		users.POST("", userCtl.CreateUser)
		users.GET("", userCtl.ListUsers) // ?q=&page=&size=
		users.GET("/:id", userCtl.GetUser)
	}

	// ------------------------------
	// 工具
	// ------------------------------
	tools := api.Group("/tools")
	{
		tools.GET("", toolCtl.ListTools) // ?ownerId=&available=&lat=&lng=&radiusKm=
		tools.POST("", toolCtl.CreateTool)
		tools.GET("/owner/:ownerId", toolCtl.ListOwnerTools)
		tools.GET("/:id", toolCtl.GetTool)
		tools.PUT("/:id", toolCtl.UpdateTool)
		tools.DELETE("/:id", toolCtl.DeleteTool)
		tools.PATCH("/:id/availability", toolCtl.ToggleAvailability)
	}

	// ------------------------------
	// 借用申请
	// ------------------------------
	reqs := api.Group("/borrow_requests")
	{
		reqs.POST("", reqCtl.Create)
		reqs.GET("", reqCtl.List) // ?toolId=&status=
		reqs.GET("/owner/:ownerId", reqCtl.ListForOwner)
		reqs.GET("/borrower/:borrowerId", reqCtl.ListForBorrower)
		reqs.GET("/:id", reqCtl.Get)
		reqs.GET("/:id/events", reqCtl.Events)
		reqs.PATCH("/:id/approve", reqCtl.Approve)
		reqs.PATCH("/:id/decline", reqCtl.Decline)
		reqs.PATCH("/:id/cancel", reqCtl.Cancel)
		reqs.PATCH("/:id/return", reqCtl.Return)
	}
}
