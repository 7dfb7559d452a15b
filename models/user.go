package models

import (
	"time"
)

const UserTable = "ts_users"

// User is a lender, a borrower or both. Email is the login identity.
type User struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Email    string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	FullName string `gorm:"size:255" json:"fullName,omitempty"`

	// 住址（可选，用于附近工具）
	HomeAddress *string  `gorm:"size:255" json:"homeAddress,omitempty"`
	HomeLat     *float64 `json:"homeLat,omitempty"`
	HomeLng     *float64 `json:"homeLng,omitempty"`

	LastLoginAt *time.Time `gorm:"index" json:"lastLoginAt,omitempty"`
	LastSeenAt  *time.Time `gorm:"index" json:"lastSeenAt,omitempty"`
	LoginCount  int64      `gorm:"not null;default:0" json:"loginCount"`
	LastLoginIP string     `gorm:"size:45" json:"-"`
	LastLoginUA string     `gorm:"size:255" json:"-"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (User) TableName() string {
	return UserTable
}
