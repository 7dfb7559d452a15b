package controllers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"toolsharer/app"
	"toolsharer/borrow"
	"toolsharer/models"

	"github.com/gin-gonic/gin"
)

const dateLayout = "2006-01-02"

type BorrowRequestController struct{ *Srv }

func NewBorrowRequestController(s *Srv) *BorrowRequestController {
	return &BorrowRequestController{Srv: s}
}

type createBorrowReq struct {
	ToolID    string  `json:"toolId" binding:"required"`
	Message   *string `json:"message"`
	StartDate *string `json:"startDate"`
	DueDate   *string `json:"dueDate"`
}

func parseDate(s *string) (*time.Time, bool) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, true
	}
	d, err := time.Parse(dateLayout, strings.TrimSpace(*s))
	if err != nil {
		return nil, false
	}
	return &d, true
}

// POST /api/borrow_requests 借用人为当前用户
func (bc *BorrowRequestController) Create(c *gin.Context) {
	var in createBorrowReq
	if err := c.ShouldBindJSON(&in); err != nil {
		badRequest(c, err.Error())
		return
	}
	start, ok := parseDate(in.StartDate)
	if !ok {
		badRequest(c, "startDate must be YYYY-MM-DD")
		return
	}
	due, ok := parseDate(in.DueDate)
	if !ok {
		badRequest(c, "dueDate must be YYYY-MM-DD")
		return
	}

	r, err := bc.Engine.CreateRequest(c.Request.Context(), borrow.CreateInput{
		ToolID:     in.ToolID,
		BorrowerID: app.CurrentUserID(c),
		Message:    in.Message,
		StartDate:  start,
		DueDate:    due,
	})
	if err != nil {
		bc.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

// GET /api/borrow_requests?toolId=&status=
// 只返回当前用户作为借用人或物主能看到的申请
func (bc *BorrowRequestController) List(c *gin.Context) {
	var f borrow.RequestFilter
	if id := c.Query("toolId"); id != "" {
		f.ToolIDs = []string{id}
	}
	if !statusFilter(c, &f) {
		return
	}
	rs, err := bc.Engine.ListRequests(c.Request.Context(), f)
	if err != nil {
		bc.fail(c, err)
		return
	}
	uid := app.CurrentUserID(c)
	visible := make([]borrow.RequestView, 0, len(rs))
	for _, r := range rs {
		if canSee(r, uid) {
			visible = append(visible, r)
		}
	}
	c.JSON(http.StatusOK, app.H{"items": visible})
}

// GET /api/borrow_requests/owner/:ownerId 物主收到的申请
func (bc *BorrowRequestController) ListForOwner(c *gin.Context) {
	ownerID := c.Param("ownerId")
	if ownerID != app.CurrentUserID(c) {
		forbidden(c)
		return
	}
	f := borrow.RequestFilter{OwnerID: ownerID}
	if !statusFilter(c, &f) {
		return
	}
	bc.list(c, f)
}

// GET /api/borrow_requests/borrower/:borrowerId 借用人发出的申请
func (bc *BorrowRequestController) ListForBorrower(c *gin.Context) {
	borrowerID := c.Param("borrowerId")
	if borrowerID != app.CurrentUserID(c) {
		forbidden(c)
		return
	}
	f := borrow.RequestFilter{BorrowerID: borrowerID}
	if !statusFilter(c, &f) {
		return
	}
	bc.list(c, f)
}

func (bc *BorrowRequestController) list(c *gin.Context, f borrow.RequestFilter) {
	rs, err := bc.Engine.ListRequests(c.Request.Context(), f)
	if err != nil {
		bc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": rs})
}

// GET /api/borrow_requests/:id
func (bc *BorrowRequestController) Get(c *gin.Context) {
	r, ok := bc.visible(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, r)
}

// GET /api/borrow_requests/:id/events 状态变更审计记录
func (bc *BorrowRequestController) Events(c *gin.Context) {
	r, ok := bc.visible(c)
	if !ok {
		return
	}
	evs, err := bc.Engine.History(c.Request.Context(), r.ID)
	if err != nil {
		bc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, app.H{"items": evs})
}

type transitionFunc func(ctx context.Context, id string) (*borrow.RequestView, error)

// PATCH /api/borrow_requests/:id/approve
func (bc *BorrowRequestController) Approve(c *gin.Context) {
	bc.transition(c, isOwner, bc.Engine.Approve)
}

// PATCH /api/borrow_requests/:id/decline
func (bc *BorrowRequestController) Decline(c *gin.Context) {
	bc.transition(c, isOwner, bc.Engine.Decline)
}

// PATCH /api/borrow_requests/:id/return 物主确认归还
func (bc *BorrowRequestController) Return(c *gin.Context) {
	bc.transition(c, isOwner, bc.Engine.Return)
}

// PATCH /api/borrow_requests/:id/cancel 仅借用人
func (bc *BorrowRequestController) Cancel(c *gin.Context) {
	bc.transition(c, isBorrower, bc.Engine.Cancel)
}

func (bc *BorrowRequestController) transition(c *gin.Context, allowed func(borrow.RequestView, string) bool, run transitionFunc) {
	r, err := bc.Engine.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		bc.fail(c, err)
		return
	}
	if !allowed(*r, app.CurrentUserID(c)) {
		forbidden(c)
		return
	}
	out, err := run(c.Request.Context(), r.ID)
	if err != nil {
		bc.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (bc *BorrowRequestController) visible(c *gin.Context) (*borrow.RequestView, bool) {
	r, err := bc.Engine.GetRequest(c.Request.Context(), c.Param("id"))
	if err != nil {
		bc.fail(c, err)
		return nil, false
	}
	if !canSee(*r, app.CurrentUserID(c)) {
		forbidden(c)
		return nil, false
	}
	return r, true
}

func statusFilter(c *gin.Context, f *borrow.RequestFilter) bool {
	v := c.Query("status")
	if v == "" {
		return true
	}
	for _, s := range strings.Split(v, ",") {
		st := models.RequestStatus(strings.ToUpper(strings.TrimSpace(s)))
		if !st.Valid() {
			badRequest(c, "invalid status "+s)
			return false
		}
		f.Statuses = append(f.Statuses, st)
	}
	return true
}

func isOwner(r borrow.RequestView, uid string) bool {
	return r.Tool != nil && r.Tool.OwnerID == uid
}

func isBorrower(r borrow.RequestView, uid string) bool { return r.BorrowerID == uid }

func canSee(r borrow.RequestView, uid string) bool { return isOwner(r, uid) || isBorrower(r, uid) }
