package models

import "time"

// CruiseLine is a feed reference entity, keyed by the remote Traveltek line id.
type CruiseLine struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	TraveltekID int       `gorm:"uniqueIndex;not null" json:"traveltek_id"`
	Name        string    `gorm:"type:varchar(191);not null" json:"name"`
	Code        string    `gorm:"type:varchar(50)" json:"code"`
	LogoURL     string    `gorm:"type:varchar(255)" json:"logo_url"`
	IsActive    bool      `gorm:"default:true;index" json:"is_active"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
