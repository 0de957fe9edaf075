// Package feed parses per-sailing documents from the Traveltek feed into the
// normalized domain model. The wire shape is loose (numbers as strings, CSV
// lists, several pricing sub-structures of differing freshness), so parsing
// fails closed: an unrecognized shape is a ParseError, never a partial document.
package feed

import (
	"time"

	"github.com/tidewave/cruisesync/app/models"
)

// PortRef references a port by its remote id.
type PortRef struct {
	ID   int
	Name string
}

// RegionRef references a region by its remote id.
type RegionRef struct {
	ID   int
	Name string
}

// PriceCell is one cell of a pricing matrix, money in integer cents.
type PriceCell struct {
	PriceCents int64
	TaxesCents int64
	NCFCents   int64
	TotalCents int64
	CabinName  string
	CabinType  string
	Available  bool
}

// Matrix maps (rate, cabin, occupancy) to a price cell.
type Matrix map[models.RateKey]PriceCell

// Pricing source names, in the order the feed historically shipped them.
const (
	SourceLive     = "live"
	SourceCached   = "cached"
	SourceCombined = "combined"
)

// Document is one parsed per-sailing feed file.
type Document struct {
	TraveltekID string // remote surrogate id (codetocruiseid)
	CruiseID    string
	VoyageCode  string
	LineID      int
	ShipID      int
	ShipName    string
	Name        string
	SailDate    time.Time
	Nights      int
	Currency    string
	Active      bool

	EmbarkPortID int
	Ports        []PortRef
	Regions      []RegionRef

	// The feed carries up to three pricing sub-structures with differing
	// freshness. Which one wins is policy (see Precedence), not wire format.
	Live     Matrix
	Cached   Matrix
	Combined Matrix
}

// NaturalVoyageCode returns the voyage code used in the sailing natural key,
// falling back to the line-scoped cruise id when the feed omits the code.
func (d *Document) NaturalVoyageCode() string {
	if d.VoyageCode != "" {
		return d.VoyageCode
	}
	return d.CruiseID
}

func (d *Document) matrixBySource(source string) Matrix {
	switch source {
	case SourceLive:
		return d.Live
	case SourceCached:
		return d.Cached
	case SourceCombined:
		return d.Combined
	default:
		return nil
	}
}
