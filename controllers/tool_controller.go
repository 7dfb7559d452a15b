package controllers

import (
	"net/http"
	"strconv"
	"strings"

	"toolsharer/app"
	"toolsharer/borrow"
	"toolsharer/db"
	"toolsharer/geo"
	"toolsharer/models"

	"github.com/gin-gonic/gin"
)

type ToolController struct{ *Srv }

func NewToolController(s *Srv) *ToolController { return &ToolController{Srv: s} }

type toolReq struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Address     *string  `json:"address"`
	Lat         *float64 `json:"lat"`
	Lng         *float64 `json:"lng"`
	IsAvailable *bool    `json:"isAvailable"`
}

func (in toolReq) check() string {
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return "name must not be empty"
	}
	if (in.Lat == nil) != (in.Lng == nil) {
		return "lat and lng must be given together"
	}
	if in.Lat != nil && !(geo.Point{Lat: *in.Lat, Lng: *in.Lng}).Valid() {
		return "invalid coordinates"
	}
	return ""
}

// POST /api/tools 物主为当前用户
func (tc *ToolController) CreateTool(c *gin.Context) {
	var in toolReq
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	if in.Name == nil {
		badRequest(c, "name is required")
		return
	}
	if msg := in.check(); msg != "" {
		badRequest(c, msg)
		return
	}

	t := &models.Tool{
		Name:        *in.Name,
		Description: in.Description,
		Address:     in.Address,
		Lat:         in.Lat,
		Lng:         in.Lng,
		OwnerID:     app.CurrentUserID(c),
		IsAvailable: in.IsAvailable == nil || *in.IsAvailable,
	}
	if err := tc.Repo.CreateTool(c.Request.Context(), t); err != nil {
		tc.fail(c, err)
		return
	}
	view, err := tc.Engine.GetTool(c.Request.Context(), t.ID, app.CurrentUserID(c))
	if err != nil {
		tc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, view)
}

// GET /api/tools?ownerId=&available=true&lat=&lng=&radiusKm=
func (tc *ToolController) ListTools(c *gin.Context) {
	q := borrow.ToolQuery{ViewerID: app.CurrentUserID(c)}
	q.OwnerID = c.Query("ownerId")
	if v := c.Query("available"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			badRequest(c, "invalid available")
			return
		}
		q.AvailableOnly = b
	}

	lat, lng := c.Query("lat"), c.Query("lng")
	if lat != "" || lng != "" {
		p, err := parsePoint(lat, lng)
		if err != nil {
			badRequest(c, err.Error())
			return
		}
		q.Near = &p
		if v := c.Query("radiusKm"); v != "" {
			r, err := strconv.ParseFloat(v, 64)
			if err != nil || r < 0 {
				badRequest(c, "invalid radiusKm")
				return
			}
			q.RadiusKm = r
		}
	}

	views, err := tc.Engine.ListTools(c.Request.Context(), q)
	if err != nil {
		tc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": views})
}

// GET /api/tools/owner/:ownerId
func (tc *ToolController) ListOwnerTools(c *gin.Context) {
	views, err := tc.Engine.ListTools(c.Request.Context(), borrow.ToolQuery{
		ToolFilter: borrow.ToolFilter{OwnerID: c.Param("ownerId")},
		ViewerID:   app.CurrentUserID(c),
	})
	if err != nil {
		tc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": views})
}

// GET /api/tools/:id
func (tc *ToolController) GetTool(c *gin.Context) {
	view, err := tc.Engine.GetTool(c.Request.Context(), c.Param("id"), app.CurrentUserID(c))
	if err != nil {
		tc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// PUT /api/tools/:id 仅物主；可用状态走 /availability
func (tc *ToolController) UpdateTool(c *gin.Context) {
	var in toolReq
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	if in.IsAvailable != nil {
		badRequest(c, "use the availability endpoint to change isAvailable")
		return
	}
	if msg := in.check(); msg != "" {
		badRequest(c, msg)
		return
	}
	t, ok := tc.ownTool(c, c.Param("id"))
	if !ok {
		return
	}

	if _, err := tc.Repo.UpdateTool(c.Request.Context(), t.ID, db.ToolPatch{
		Name:        in.Name,
		Description: in.Description,
		Address:     in.Address,
		Lat:         in.Lat,
		Lng:         in.Lng,
	}); err != nil {
		tc.fail(c, err)
		return
	}
	view, err := tc.Engine.GetTool(c.Request.Context(), t.ID, app.CurrentUserID(c))
	if err != nil {
		tc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DELETE /api/tools/:id
func (tc *ToolController) DeleteTool(c *gin.Context) {
	t, ok := tc.ownTool(c, c.Param("id"))
	if !ok {
		return
	}
	if err := tc.Engine.DeleteTool(c.Request.Context(), t.ID); err != nil {
		tc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"ok": true})
}

// PATCH /api/tools/:id/availability 物主手动切换可借状态
func (tc *ToolController) ToggleAvailability(c *gin.Context) {
	t, ok := tc.ownTool(c, c.Param("id"))
	if !ok {
		return
	}
	if _, err := tc.Engine.ToggleAvailability(c.Request.Context(), t.ID); err != nil {
		tc.fail(c, err)
		return
	}
	view, err := tc.Engine.GetTool(c.Request.Context(), t.ID, app.CurrentUserID(c))
	if err != nil {
		tc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func parsePoint(lat, lng string) (geo.Point, error) {
	var p geo.Point
	var err error
	if p.Lat, err = strconv.ParseFloat(lat, 64); err != nil {
		return p, errInvalidPosition
	}
	if p.Lng, err = strconv.ParseFloat(lng, 64); err != nil {
		return p, errInvalidPosition
	}
	if !p.Valid() {
		return p, errInvalidPosition
	}
	return p, nil
}
