package models

import "time"

const (
	CabinTypeInside  = "inside"
	CabinTypeOutside = "outside"
	CabinTypeBalcony = "balcony"
	CabinTypeSuite   = "suite"
)

// CabinRate is one cell of a sailing's price matrix: one row per
// (rate code, cabin code, occupancy code). The whole matrix is replaced
// per sync cycle, so rows carry no history of their own (see PriceHistoryEntry).
type CabinRate struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SailingID     uint      `gorm:"not null;index:ux_cabin_rates_cell,unique,priority:1" json:"sailing_id"`
	RateCode      string    `gorm:"type:varchar(50);not null;index:ux_cabin_rates_cell,unique,priority:2" json:"rate_code"`
	CabinCode     string    `gorm:"type:varchar(50);not null;index:ux_cabin_rates_cell,unique,priority:3" json:"cabin_code"`
	OccupancyCode string    `gorm:"type:varchar(20);not null;index:ux_cabin_rates_cell,unique,priority:4" json:"occupancy_code"`
	CabinName     string    `gorm:"type:varchar(191)" json:"cabin_name"`
	CabinType     string    `gorm:"type:varchar(20);index" json:"cabin_type"`
	PriceCents    int64     `gorm:"type:bigint;not null" json:"price_cents"`
	TaxesCents    int64     `gorm:"type:bigint;default:0" json:"taxes_cents"`
	NCFCents      int64     `gorm:"type:bigint;default:0" json:"ncf_cents"`
	TotalCents    int64     `gorm:"type:bigint;not null" json:"total_cents"`
	Currency      string    `gorm:"type:varchar(3);default:'USD'" json:"currency"`
	IsAvailable   bool      `gorm:"default:true" json:"is_available"`
	CreatedAt     time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// RateKey identifies a price matrix cell within a sailing.
type RateKey struct {
	RateCode      string
	CabinCode     string
	OccupancyCode string
}

func (c *CabinRate) Key() RateKey {
	return RateKey{RateCode: c.RateCode, CabinCode: c.CabinCode, OccupancyCode: c.OccupancyCode}
}
