package models

import "time"

const RequestEventTable = "ts_borrow_request_events"

// RequestEvent 记录借用申请的每一次状态变更（审计）
// Cascade declines are written with Action "supersede" and no actor.
type RequestEvent struct {
	ID         string        `gorm:"type:uuid;primaryKey" json:"id"`
	RequestID  string        `gorm:"type:uuid;index;not null" json:"requestId"`
	ToolID     string        `gorm:"type:uuid;index;not null" json:"toolId"`
	ActorID    *string       `gorm:"type:uuid" json:"actorId,omitempty"`
	Action     string        `gorm:"size:20;not null" json:"action"`
	FromStatus RequestStatus `gorm:"size:20" json:"fromStatus,omitempty"`
	ToStatus   RequestStatus `gorm:"size:20;not null" json:"toStatus"`
	CreatedAt  time.Time     `json:"createdAt"`
}

func (RequestEvent) TableName() string { return RequestEventTable }
