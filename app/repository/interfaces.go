package repository

import (
	"time"

	"github.com/tidewave/cruisesync/app/models"
)

// SailingFeedRef is the projection of a sailing the batch scheduler needs to
// locate its document on the feed host.
type SailingFeedRef struct {
	SailingID       uint      `json:"sailing_id"`
	TraveltekID     string    `json:"traveltek_id"`
	VoyageCode      string    `json:"voyage_code"`
	LineID          int       `json:"line_id"`
	ShipTraveltekID int       `json:"ship_traveltek_id"`
	ShipName        string    `json:"ship_name"`
	SailDate        time.Time `json:"sail_date"`
}

// SailingRepository defines sailing-related database operations outside the
// per-document upsert transaction.
type SailingRepository interface {
	GetByID(id uint) (*models.Sailing, error)
	GetByTraveltekID(traveltekID string) (*models.Sailing, error)
	GetByNaturalKey(key models.NaturalKey) (*models.Sailing, error)
	ActiveFutureRefsByLine(lineID int, from time.Time) ([]SailingFeedRef, error)
	GetCabinRates(sailingID uint) ([]models.CabinRate, error)
	CountByLine(lineID int) (int64, error)
}

// WebhookEventRepository persists the inbound notification audit trail.
type WebhookEventRepository interface {
	Create(event *models.WebhookEvent) error
	GetByID(id uint) (*models.WebhookEvent, error)
	MarkProcessing(id uint, batchID uint) error
	MarkCompleted(id uint) error
	MarkFailed(id uint, reason string) error
	ListByLine(lineID int, limit int) ([]models.WebhookEvent, error)
}

// BatchRepository manages sync batch lifecycle rows.
type BatchRepository interface {
	Create(batch *models.SyncBatch) error
	Update(batch *models.SyncBatch) error
	GetByUUID(uuid string) (*models.SyncBatch, error)
	ListRecent(limit int) ([]models.SyncBatch, error)
}

// PriceHistoryRepository appends and reads price change records.
type PriceHistoryRepository interface {
	BulkInsert(entries []models.PriceHistoryEntry) error
	ListBySailing(sailingID uint, limit int) ([]models.PriceHistoryEntry, error)
	ListByBatch(batchID uint) ([]models.PriceHistoryEntry, error)
}

// SyncLockRepository mirrors Redis lock state for observability.
type SyncLockRepository interface {
	RecordAcquired(lineID int, token string, acquiredAt, expiresAt time.Time) error
	RecordReleased(lineID int, token string) error
	Get(lineID int) (*models.SyncLock, error)
}
