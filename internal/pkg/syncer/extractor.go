package syncer

import (
	"context"
	"errors"
	"strconv"
	"time"

	"gorm.io/gorm"

	"github.com/tidewave/cruisesync/app/models"
	"github.com/tidewave/cruisesync/internal/pkg/feed"
	"github.com/tidewave/cruisesync/internal/pkg/feederr"
)

// Extractor turns a parsed feed document into normalized rows inside one
// transaction per document. A failure aborts that document only, never the
// enclosing batch.
type Extractor struct {
	db     *gorm.DB
	policy feed.Precedence
}

// NewExtractor creates an extractor writing through the given handle.
func NewExtractor(db *gorm.DB, policy feed.Precedence) *Extractor {
	return &Extractor{db: db, policy: policy}
}

// ApplyResult reports what one document write produced.
type ApplyResult struct {
	SailingID uint
	RateCount int
	Matrix    feed.Matrix
	Source    string
	Currency  string
}

// FindExistingSailingID locates the sailing a document will land on, so the
// caller can snapshot its prices before ApplyDocument replaces them. Looks up
// the natural key first, then the remote surrogate id.
func (e *Extractor) FindExistingSailingID(ctx context.Context, doc *feed.Document) (uint, bool) {
	db := e.db.WithContext(ctx)

	var line models.CruiseLine
	var ship models.Ship
	if db.Where("traveltek_id = ?", doc.LineID).First(&line).Error == nil &&
		db.Where("traveltek_id = ?", doc.ShipID).First(&ship).Error == nil {
		var sailing models.Sailing
		err := db.Where(
			"cruise_line_id = ? AND ship_id = ? AND sail_date = ? AND voyage_code = ?",
			line.ID, ship.ID, doc.SailDate.Format("2006-01-02"), doc.NaturalVoyageCode(),
		).First(&sailing).Error
		if err == nil {
			return sailing.ID, true
		}
	}

	var sailing models.Sailing
	if db.Where("traveltek_id = ?", doc.TraveltekID).First(&sailing).Error == nil {
		return sailing.ID, true
	}
	return 0, false
}

// ApplyDocument upserts the document's reference entities, resolves the
// sailing by composite natural key (a reissue under a new surrogate id
// updates the existing row), and fully replaces its price matrix, all in a
// single transaction.
func (e *Extractor) ApplyDocument(ctx context.Context, doc *feed.Document, batchID uint) (*ApplyResult, error) {
	matrix, source, ok := doc.SelectMatrix(e.policy)
	if !ok {
		return nil, feederr.Wrap(feederr.ErrParse, "document %s priced by no configured source", doc.TraveltekID)
	}

	result := &ApplyResult{Matrix: matrix, Source: source, Currency: doc.Currency}

	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		line, err := upsertLine(tx, doc)
		if err != nil {
			return err
		}
		ship, err := upsertShip(tx, doc, line.ID)
		if err != nil {
			return err
		}
		ports, embarkPortID, err := upsertPorts(tx, doc)
		if err != nil {
			return err
		}
		regions, err := upsertRegions(tx, doc)
		if err != nil {
			return err
		}

		sailing, err := resolveSailing(tx, doc, line.ID, ship.ID)
		if err != nil {
			return err
		}

		now := time.Now()
		sailing.TraveltekID = doc.TraveltekID
		sailing.Name = doc.Name
		sailing.Nights = doc.Nights
		sailing.Currency = doc.Currency
		sailing.EmbarkPortID = embarkPortID
		sailing.IsActive = doc.Active
		sailing.LastSyncedAt = &now
		sailing.SyncBatchID = &batchID
		applyCheapest(sailing, matrix)

		if err := tx.Save(sailing).Error; err != nil {
			return wrapDBErr(err, "save sailing %s", doc.TraveltekID)
		}

		// Full matrix replacement: the feed document is the source of truth
		// for the whole price grid each cycle.
		if err := tx.Where("sailing_id = ?", sailing.ID).Delete(&models.CabinRate{}).Error; err != nil {
			return wrapDBErr(err, "clear cabin rates for sailing %d", sailing.ID)
		}
		rates := buildCabinRates(sailing.ID, doc.Currency, matrix)
		if len(rates) > 0 {
			if err := tx.CreateInBatches(rates, 200).Error; err != nil {
				return wrapDBErr(err, "insert %d cabin rates for sailing %d", len(rates), sailing.ID)
			}
		}

		if err := tx.Model(sailing).Association("Ports").Replace(ports); err != nil {
			return wrapDBErr(err, "replace ports for sailing %d", sailing.ID)
		}
		if err := tx.Model(sailing).Association("Regions").Replace(regions); err != nil {
			return wrapDBErr(err, "replace regions for sailing %d", sailing.ID)
		}

		result.SailingID = sailing.ID
		result.RateCount = len(rates)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// resolveSailing finds the row a document belongs to. Natural key wins over
// the surrogate id: when the feed reissues a sailing under a new
// codetocruiseid, we move the surrogate on the existing row instead of
// inserting a duplicate.
func resolveSailing(tx *gorm.DB, doc *feed.Document, lineID, shipID uint) (*models.Sailing, error) {
	var sailing models.Sailing
	err := tx.Where(
		"cruise_line_id = ? AND ship_id = ? AND sail_date = ? AND voyage_code = ?",
		lineID, shipID, doc.SailDate.Format("2006-01-02"), doc.NaturalVoyageCode(),
	).First(&sailing).Error
	if err == nil {
		return &sailing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, wrapDBErr(err, "lookup sailing by natural key")
	}

	err = tx.Where("traveltek_id = ?", doc.TraveltekID).First(&sailing).Error
	if err == nil {
		// Same surrogate, changed natural key fields (e.g. corrected voyage
		// code); update in place.
		sailing.CruiseLineID = lineID
		sailing.ShipID = shipID
		sailing.SailDate = doc.SailDate
		sailing.VoyageCode = doc.NaturalVoyageCode()
		return &sailing, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, wrapDBErr(err, "lookup sailing by surrogate id")
	}

	return &models.Sailing{
		TraveltekID:  doc.TraveltekID,
		CruiseLineID: lineID,
		ShipID:       shipID,
		SailDate:     doc.SailDate,
		VoyageCode:   doc.NaturalVoyageCode(),
	}, nil
}

func upsertLine(tx *gorm.DB, doc *feed.Document) (*models.CruiseLine, error) {
	var line models.CruiseLine
	err := tx.Where("traveltek_id = ?", doc.LineID).First(&line).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		line = models.CruiseLine{TraveltekID: doc.LineID, Name: lineNameFallback(doc), IsActive: true}
		if err := tx.Create(&line).Error; err != nil {
			return nil, wrapDBErr(err, "create cruise line %d", doc.LineID)
		}
		return &line, nil
	}
	if err != nil {
		return nil, wrapDBErr(err, "lookup cruise line %d", doc.LineID)
	}
	return &line, nil
}

func lineNameFallback(doc *feed.Document) string {
	// Per-sailing documents do not carry the line display name; seed with a
	// stable placeholder the admin data overwrites later.
	return "Line " + strconv.Itoa(doc.LineID)
}

func upsertShip(tx *gorm.DB, doc *feed.Document, lineID uint) (*models.Ship, error) {
	var ship models.Ship
	err := tx.Where("traveltek_id = ?", doc.ShipID).First(&ship).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		ship = models.Ship{TraveltekID: doc.ShipID, CruiseLineID: lineID, Name: doc.ShipName}
		if err := tx.Create(&ship).Error; err != nil {
			return nil, wrapDBErr(err, "create ship %d", doc.ShipID)
		}
		return &ship, nil
	}
	if err != nil {
		return nil, wrapDBErr(err, "lookup ship %d", doc.ShipID)
	}
	// Update-if-changed keeps repeat syncs idempotent.
	if (doc.ShipName != "" && ship.Name != doc.ShipName) || ship.CruiseLineID != lineID {
		ship.Name = doc.ShipName
		ship.CruiseLineID = lineID
		if err := tx.Save(&ship).Error; err != nil {
			return nil, wrapDBErr(err, "update ship %d", doc.ShipID)
		}
	}
	return &ship, nil
}

func upsertPorts(tx *gorm.DB, doc *feed.Document) ([]models.Port, *uint, error) {
	var ports []models.Port
	var embarkPortID *uint
	for _, ref := range doc.Ports {
		port, err := upsertPort(tx, ref)
		if err != nil {
			return nil, nil, err
		}
		ports = append(ports, *port)
		if ref.ID == doc.EmbarkPortID {
			id := port.ID
			embarkPortID = &id
		}
	}
	if embarkPortID == nil && doc.EmbarkPortID > 0 {
		port, err := upsertPort(tx, feed.PortRef{ID: doc.EmbarkPortID})
		if err != nil {
			return nil, nil, err
		}
		id := port.ID
		embarkPortID = &id
	}
	return ports, embarkPortID, nil
}

func upsertPort(tx *gorm.DB, ref feed.PortRef) (*models.Port, error) {
	var port models.Port
	err := tx.Where("traveltek_id = ?", ref.ID).First(&port).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		port = models.Port{TraveltekID: ref.ID, Name: ref.Name}
		if err := tx.Create(&port).Error; err != nil {
			return nil, wrapDBErr(err, "create port %d", ref.ID)
		}
		return &port, nil
	}
	if err != nil {
		return nil, wrapDBErr(err, "lookup port %d", ref.ID)
	}
	if ref.Name != "" && port.Name != ref.Name {
		port.Name = ref.Name
		if err := tx.Save(&port).Error; err != nil {
			return nil, wrapDBErr(err, "update port %d", ref.ID)
		}
	}
	return &port, nil
}

func upsertRegions(tx *gorm.DB, doc *feed.Document) ([]models.Region, error) {
	var regions []models.Region
	for _, ref := range doc.Regions {
		var region models.Region
		err := tx.Where("traveltek_id = ?", ref.ID).First(&region).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			region = models.Region{TraveltekID: ref.ID, Name: ref.Name}
			if err := tx.Create(&region).Error; err != nil {
				return nil, wrapDBErr(err, "create region %d", ref.ID)
			}
		} else if err != nil {
			return nil, wrapDBErr(err, "lookup region %d", ref.ID)
		} else if ref.Name != "" && region.Name != ref.Name {
			region.Name = ref.Name
			if err := tx.Save(&region).Error; err != nil {
				return nil, wrapDBErr(err, "update region %d", ref.ID)
			}
		}
		regions = append(regions, region)
	}
	return regions, nil
}

func buildCabinRates(sailingID uint, currency string, matrix feed.Matrix) []models.CabinRate {
	rates := make([]models.CabinRate, 0, len(matrix))
	for key, cell := range matrix {
		rates = append(rates, models.CabinRate{
			SailingID:     sailingID,
			RateCode:      key.RateCode,
			CabinCode:     key.CabinCode,
			OccupancyCode: key.OccupancyCode,
			CabinName:     cell.CabinName,
			CabinType:     cell.CabinType,
			PriceCents:    cell.PriceCents,
			TaxesCents:    cell.TaxesCents,
			NCFCents:      cell.NCFCents,
			TotalCents:    cell.TotalCents,
			Currency:      currency,
			IsAvailable:   cell.Available,
		})
	}
	return rates
}

// applyCheapest maintains the cheapest-per-category summary on the sailing.
func applyCheapest(sailing *models.Sailing, matrix feed.Matrix) {
	sailing.CheapestCents = nil
	sailing.CheapestInsideCents = nil
	sailing.CheapestOutsideCents = nil
	sailing.CheapestBalconyCents = nil
	sailing.CheapestSuiteCents = nil

	min := func(current *int64, v int64) *int64 {
		if current == nil || v < *current {
			return &v
		}
		return current
	}
	for _, cell := range matrix {
		if !cell.Available || cell.PriceCents <= 0 {
			continue
		}
		sailing.CheapestCents = min(sailing.CheapestCents, cell.PriceCents)
		switch cell.CabinType {
		case models.CabinTypeInside:
			sailing.CheapestInsideCents = min(sailing.CheapestInsideCents, cell.PriceCents)
		case models.CabinTypeOutside:
			sailing.CheapestOutsideCents = min(sailing.CheapestOutsideCents, cell.PriceCents)
		case models.CabinTypeBalcony:
			sailing.CheapestBalconyCents = min(sailing.CheapestBalconyCents, cell.PriceCents)
		case models.CabinTypeSuite:
			sailing.CheapestSuiteCents = min(sailing.CheapestSuiteCents, cell.PriceCents)
		}
	}
}

// wrapDBErr classifies a database failure into the taxonomy. Any write
// failure aborts this document without implicating the connection to the
// feed host, so it lands in the constraint bucket.
func wrapDBErr(err error, format string, args ...interface{}) error {
	return feederr.Wrap(feederr.ErrConstraint, format+": %v", append(args, err)...)
}
