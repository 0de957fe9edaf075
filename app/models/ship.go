package models

import "time"

// Ship belongs to a cruise line; upserted idempotently from feed documents.
type Ship struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	TraveltekID  int        `gorm:"uniqueIndex;not null" json:"traveltek_id"`
	CruiseLineID uint       `gorm:"index;not null" json:"cruise_line_id"`
	CruiseLine   CruiseLine `gorm:"foreignKey:CruiseLineID" json:"cruise_line,omitempty"`
	Name         string     `gorm:"type:varchar(191);not null" json:"name"`
	Code         string     `gorm:"type:varchar(50)" json:"code"`
	Tonnage      int        `gorm:"default:0" json:"tonnage"`
	MaxPax       int        `gorm:"default:0" json:"max_pax"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}
