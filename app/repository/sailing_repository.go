package repository

import (
	"time"

	"gorm.io/gorm"

	"github.com/tidewave/cruisesync/app/models"
)

// sailingRepository implements the SailingRepository interface
type sailingRepository struct {
	db *gorm.DB
}

// NewSailingRepository creates a new sailing repository instance
func NewSailingRepository(db *gorm.DB) SailingRepository {
	return &sailingRepository{db: db}
}

func (r *sailingRepository) GetByID(id uint) (*models.Sailing, error) {
	var sailing models.Sailing
	err := r.db.Preload("CruiseLine").Preload("Ship").First(&sailing, id).Error
	if err != nil {
		return nil, err
	}
	return &sailing, nil
}

func (r *sailingRepository) GetByTraveltekID(traveltekID string) (*models.Sailing, error) {
	var sailing models.Sailing
	err := r.db.Where("traveltek_id = ?", traveltekID).First(&sailing).Error
	if err != nil {
		return nil, err
	}
	return &sailing, nil
}

func (r *sailingRepository) GetByNaturalKey(key models.NaturalKey) (*models.Sailing, error) {
	var sailing models.Sailing
	err := r.db.Where(
		"cruise_line_id = ? AND ship_id = ? AND sail_date = ? AND voyage_code = ?",
		key.CruiseLineID, key.ShipID, key.SailDate.Format("2006-01-02"), key.VoyageCode,
	).First(&sailing).Error
	if err != nil {
		return nil, err
	}
	return &sailing, nil
}

// ActiveFutureRefsByLine returns feed references for every active sailing of
// a line departing on or after the given date. This is the default work list
// for a line-level webhook that does not name explicit files.
func (r *sailingRepository) ActiveFutureRefsByLine(lineID int, from time.Time) ([]SailingFeedRef, error) {
	var refs []SailingFeedRef
	err := r.db.Model(&models.Sailing{}).
		Select(`sailings.id AS sailing_id,
			sailings.traveltek_id,
			sailings.voyage_code,
			cruise_lines.traveltek_id AS line_id,
			ships.traveltek_id AS ship_traveltek_id,
			ships.name AS ship_name,
			sailings.sail_date`).
		Joins("JOIN cruise_lines ON cruise_lines.id = sailings.cruise_line_id").
		Joins("JOIN ships ON ships.id = sailings.ship_id").
		Where("cruise_lines.traveltek_id = ? AND sailings.is_active = ? AND sailings.sail_date >= ?",
			lineID, true, from.Format("2006-01-02")).
		Order("sailings.sail_date ASC").
		Scan(&refs).Error
	return refs, err
}

func (r *sailingRepository) GetCabinRates(sailingID uint) ([]models.CabinRate, error) {
	var rates []models.CabinRate
	err := r.db.Where("sailing_id = ?", sailingID).Find(&rates).Error
	return rates, err
}

func (r *sailingRepository) CountByLine(lineID int) (int64, error) {
	var count int64
	err := r.db.Model(&models.Sailing{}).
		Joins("JOIN cruise_lines ON cruise_lines.id = sailings.cruise_line_id").
		Where("cruise_lines.traveltek_id = ?", lineID).
		Count(&count).Error
	return count, err
}
