// models/borrow_request.go
package models

import "time"

const BorrowRequestTable = "ts_borrow_requests"

type RequestStatus string

const (
	StatusPending   RequestStatus = "PENDING"
	StatusApproved  RequestStatus = "APPROVED"
	StatusDeclined  RequestStatus = "DECLINED"
	StatusCancelled RequestStatus = "CANCELLED"
	StatusReturned  RequestStatus = "RETURNED"
)

// Valid reports whether s is one of the known statuses.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusDeclined, StatusCancelled, StatusReturned:
		return true
	}
	return false
}

// Terminal statuses never change again.
func (s RequestStatus) Terminal() bool {
	return s == StatusDeclined || s == StatusCancelled || s == StatusReturned
}

type BorrowRequest struct {
	ID     string `gorm:"type:uuid;primaryKey" json:"id"`
	ToolID string `gorm:"type:uuid;index;not null" json:"toolId"`
	Tool   *Tool  `gorm:"foreignKey:ToolID" json:"tool,omitempty"`

	BorrowerID string `gorm:"type:uuid;index;not null" json:"borrowerId"`
	Borrower   *User  `gorm:"foreignKey:BorrowerID" json:"borrower,omitempty"`

	Message *string `gorm:"type:text" json:"message,omitempty"`

	// 日历日期，按 UTC 零点存储
	StartDate *time.Time `gorm:"type:date" json:"startDate,omitempty"`
	DueDate   *time.Time `gorm:"type:date" json:"dueDate,omitempty"`

	Status RequestStatus `gorm:"size:20;index;not null" json:"status"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (BorrowRequest) TableName() string { return BorrowRequestTable }
