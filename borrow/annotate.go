package borrow

import (
	"time"

	"toolsharer/models"
)

// Derived holds the due-date fields computed on every read. They are never stored.
type Derived struct {
	IsOverdue    bool `json:"isOverdue"`
	DaysOverdue  int  `json:"daysOverdue"`
	DaysUntilDue int  `json:"daysUntilDue"`
}

// Annotate projects the due-date view of r as of today.
// Only APPROVED requests can be overdue; days until due is clamped at zero.
func Annotate(r models.BorrowRequest, today time.Time) Derived {
	var d Derived
	if r.DueDate == nil {
		return d
	}
	due := storedDate(*r.DueDate)
	left := DaysBetween(DateOf(today), due)

	if r.Status == models.StatusApproved && left < 0 {
		d.IsOverdue = true
		d.DaysOverdue = -left
		return d
	}
	if left > 0 {
		d.DaysUntilDue = left
	}
	return d
}

// RequestView is a persisted request plus its derived fields, flattened in JSON.
type RequestView struct {
	models.BorrowRequest
	Derived
}

func NewRequestView(r models.BorrowRequest, today time.Time) RequestView {
	return RequestView{BorrowRequest: r, Derived: Annotate(r, today)}
}
