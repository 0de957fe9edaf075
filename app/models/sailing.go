package models

import (
	"time"

	"gorm.io/gorm"
)

// Sailing is the core reconciled fact entity: one scheduled departure of a
// ship on a given date. TraveltekID is the remote surrogate id
// (codetocruiseid) and changes when the feed reissues a sailing, so the
// composite natural key (cruise line, ship, sail date, voyage code) is the
// deduplication invariant, not the surrogate.
type Sailing struct {
	ID           uint       `gorm:"primaryKey" json:"id"`
	TraveltekID  string     `gorm:"type:varchar(50);uniqueIndex;not null" json:"traveltek_id"`
	CruiseLineID uint       `gorm:"not null;index:ux_sailings_natural,unique,priority:1" json:"cruise_line_id"`
	CruiseLine   CruiseLine `gorm:"foreignKey:CruiseLineID" json:"cruise_line,omitempty"`
	ShipID       uint       `gorm:"not null;index:ux_sailings_natural,unique,priority:2" json:"ship_id"`
	Ship         Ship       `gorm:"foreignKey:ShipID" json:"ship,omitempty"`
	SailDate     time.Time  `gorm:"type:date;not null;index:ux_sailings_natural,unique,priority:3" json:"sail_date"`
	VoyageCode   string     `gorm:"type:varchar(50);not null;index:ux_sailings_natural,unique,priority:4" json:"voyage_code"`
	Name         string     `gorm:"type:varchar(255)" json:"name"`
	Nights       int        `gorm:"default:0" json:"nights"`
	EmbarkPortID *uint      `gorm:"index" json:"embark_port_id"`
	Currency     string     `gorm:"type:varchar(3);default:'USD'" json:"currency"`

	// Cheapest-per-category summary, maintained from the cabin rate matrix.
	CheapestCents        *int64 `gorm:"type:bigint" json:"cheapest_cents"`
	CheapestInsideCents  *int64 `gorm:"type:bigint" json:"cheapest_inside_cents"`
	CheapestOutsideCents *int64 `gorm:"type:bigint" json:"cheapest_outside_cents"`
	CheapestBalconyCents *int64 `gorm:"type:bigint" json:"cheapest_balcony_cents"`
	CheapestSuiteCents   *int64 `gorm:"type:bigint" json:"cheapest_suite_cents"`

	// Sailings are soft-deactivated when the feed marks them inactive.
	IsActive     bool       `gorm:"default:true;index" json:"is_active"`
	LastSyncedAt *time.Time `gorm:"type:timestamp" json:"last_synced_at"`
	SyncBatchID  *uint      `gorm:"index" json:"sync_batch_id"`

	Ports   []Port   `gorm:"many2many:sailing_ports;" json:"ports,omitempty"`
	Regions []Region `gorm:"many2many:sailing_regions;" json:"regions,omitempty"`

	CreatedAt time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

// NaturalKey identifies a sailing independent of the remote surrogate id.
type NaturalKey struct {
	CruiseLineID uint
	ShipID       uint
	SailDate     time.Time
	VoyageCode   string
}

func (s *Sailing) NaturalKey() NaturalKey {
	return NaturalKey{
		CruiseLineID: s.CruiseLineID,
		ShipID:       s.ShipID,
		SailDate:     s.SailDate,
		VoyageCode:   s.VoyageCode,
	}
}
