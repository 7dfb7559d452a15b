// models/tool.go
package models

import "time"

const ToolTable = "ts_tools"

type Tool struct {
	ID          string  `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string  `gorm:"size:200;not null" json:"name"`
	Description *string `gorm:"type:text" json:"description,omitempty"`

	// 地址由物主输入，坐标可选
	Address *string  `gorm:"size:255" json:"address,omitempty"`
	Lat     *float64 `json:"lat,omitempty"`
	Lng     *float64 `json:"lng,omitempty"`

	OwnerID string `gorm:"type:uuid;index;not null" json:"ownerId"`
	Owner   *User  `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`

	// No gorm default here: a default would turn an explicit false into true on insert.
	IsAvailable bool `gorm:"not null" json:"isAvailable"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Tool) TableName() string { return ToolTable }

// HasLocation reports whether the tool carries both coordinates.
func (t Tool) HasLocation() bool { return t.Lat != nil && t.Lng != nil }
