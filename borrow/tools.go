package borrow

import (
	"time"

	"toolsharer/models"
)

// ToolView is a tool as seen by one viewer, with the state of its active requests.
type ToolView struct {
	models.Tool

	PendingRequestCount     int     `json:"pendingRequestCount"`
	HasPendingRequest       bool    `json:"hasPendingRequest"`
	MyPendingRequestMessage *string `json:"myPendingRequestMessage,omitempty"`

	IsBorrowing      bool       `json:"isBorrowing"`
	IsBorrowed       bool       `json:"isBorrowed"`
	BorrowedByUserID *string    `json:"borrowedByUserId,omitempty"`
	BorrowedByEmail  *string    `json:"borrowedByEmail,omitempty"`
	BorrowedDueDate  *time.Time `json:"borrowedDueDate,omitempty"`

	BorrowedIsOverdue    bool `json:"borrowedIsOverdue"`
	BorrowedDaysOverdue  int  `json:"borrowedDaysOverdue"`
	BorrowedDaysUntilDue int  `json:"borrowedDaysUntilDue"`

	DistanceKm *float64 `json:"distanceKm,omitempty"`
}

// AnnotateTool projects t for viewerID (may be empty) from the tool's
// PENDING and APPROVED requests. Requests for other tools are ignored.
func AnnotateTool(t models.Tool, active []models.BorrowRequest, viewerID string, today time.Time) ToolView {
	v := ToolView{Tool: t}
	for _, r := range active {
		if r.ToolID != t.ID {
			continue
		}
		mine := viewerID != "" && r.BorrowerID == viewerID
		switch r.Status {
		case models.StatusPending:
			v.PendingRequestCount++
			if mine {
				v.HasPendingRequest = true
				v.MyPendingRequestMessage = r.Message
			}
		case models.StatusApproved:
			borrower := r.BorrowerID
			v.IsBorrowed = true
			v.IsBorrowing = mine
			v.BorrowedByUserID = &borrower
			if r.Borrower != nil {
				email := r.Borrower.Email
				v.BorrowedByEmail = &email
			}
			v.BorrowedDueDate = r.DueDate

			d := Annotate(r, today)
			v.BorrowedIsOverdue = d.IsOverdue
			v.BorrowedDaysOverdue = d.DaysOverdue
			v.BorrowedDaysUntilDue = d.DaysUntilDue
		}
	}
	return v
}
