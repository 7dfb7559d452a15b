package controllers

import (
	"net/http"
	"net/mail"
	"strconv"

	"toolsharer/app"
	"toolsharer/geo"
	"toolsharer/models"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type UserController struct{ *Srv }

func NewUserController(s *Srv) *UserController { return &UserController{Srv: s} }

type createUserReq struct {
	Email       string   `json:"email" binding:"required"`
	FullName    string   `json:"fullName"`
	HomeAddress *string  `json:"homeAddress"`
	HomeLat     *float64 `json:"homeLat"`
	HomeLng     *float64 `json:"homeLng"`
}

// POST /api/users
func (uc *UserController) CreateUser(c *gin.Context) {
	var in createUserReq
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		badRequest(c, "invalid email")
		return
	}
	if (in.HomeLat == nil) != (in.HomeLng == nil) {
		badRequest(c, "homeLat and homeLng must be given together")
		return
	}
	if in.HomeLat != nil && !(geo.Point{Lat: *in.HomeLat, Lng: *in.HomeLng}).Valid() {
		badRequest(c, "invalid home coordinates")
		return
	}

	u := &models.User{
		Email:       in.Email,
		FullName:    in.FullName,
		HomeAddress: in.HomeAddress,
		HomeLat:     in.HomeLat,
		HomeLng:     in.HomeLng,
	}
	if err := uc.Repo.CreateUser(c.Request.Context(), u); err != nil {
		uc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, app.H{"user": u})
}

// GET /api/users?q=alice&page=1&size=20
func (uc *UserController) ListUsers(c *gin.Context) {
	q := c.Query("q")
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	size, _ := strconv.Atoi(c.DefaultQuery("size", "20"))

	res, err := uc.Repo.ListUsers(c.Request.Context(), q, page, size)
	if err != nil {
		uc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{
		"total": res.Total,
		"users": res.Users,
	})
}

// GET /api/users/:id
func (uc *UserController) GetUser(c *gin.Context) {
	id := c.Param("id")
	if _, err := uuid.Parse(id); err != nil {
		badRequest(c, "invalid uuid")
		return
	}
	user, err := uc.Repo.FindUserByID(c.Request.Context(), id)
	if err != nil {
		uc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"user": user})
}
