package syncer

import (
	"math"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/tidewave/cruisesync/app/models"
	"github.com/tidewave/cruisesync/app/repository"
	"github.com/tidewave/cruisesync/internal/pkg/feed"
)

// Snapshot captures a sailing's per-cell prices immediately before the price
// matrix is replaced. It exists so ComputeChanges can diff after the commit;
// losing a snapshot loses one history interval, never pricing data.
type Snapshot struct {
	SailingID uint
	TakenAt   time.Time
	Currency  string                   // currency of the pre-write cells, used for delete entries
	Cells     map[models.RateKey]int64 // price cents per cell pre-write
}

// EmptySnapshot is the baseline for a sailing seen for the first time: every
// cell in the new matrix becomes an insert.
func EmptySnapshot() *Snapshot {
	return &Snapshot{TakenAt: time.Now(), Cells: map[models.RateKey]int64{}}
}

// Detector captures pre-write snapshots and persists computed price changes.
type Detector struct {
	sailings repository.SailingRepository
	history  repository.PriceHistoryRepository
}

// NewDetector creates a price change detector.
func NewDetector(sailings repository.SailingRepository, history repository.PriceHistoryRepository) *Detector {
	return &Detector{sailings: sailings, history: history}
}

// CaptureSnapshot reads the sailing's current cabin rate matrix.
func (d *Detector) CaptureSnapshot(sailingID uint) (*Snapshot, error) {
	rates, err := d.sailings.GetCabinRates(sailingID)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{
		SailingID: sailingID,
		TakenAt:   time.Now(),
		Cells:     make(map[models.RateKey]int64, len(rates)),
	}
	for _, r := range rates {
		snap.Cells[r.Key()] = r.PriceCents
		if snap.Currency == "" {
			snap.Currency = r.Currency
		}
	}
	return snap, nil
}

// ComputeChanges diffs the new price matrix against the snapshot and returns
// one history entry per changed cell. Unchanged cells produce nothing.
func ComputeChanges(snap *Snapshot, matrix feed.Matrix, sailingID, batchID uint, currency string) []models.PriceHistoryEntry {
	var entries []models.PriceHistoryEntry

	appendEntry := func(key models.RateKey, changeType string, oldCents, newCents *int64) {
		var change int64
		var pct float64
		cur := currency
		switch {
		case oldCents == nil:
			change = *newCents
		case newCents == nil:
			change = -*oldCents
			pct = -100
			// A deleted cell has no price in the new document; its currency is
			// the one it was snapshotted in.
			if snap.Currency != "" {
				cur = snap.Currency
			}
		default:
			change = *newCents - *oldCents
			if *oldCents != 0 {
				pct = roundPercent(float64(change) / float64(*oldCents) * 100)
			}
		}
		entries = append(entries, models.PriceHistoryEntry{
			SailingID:          sailingID,
			SyncBatchID:        batchID,
			RateCode:           key.RateCode,
			CabinCode:          key.CabinCode,
			OccupancyCode:      key.OccupancyCode,
			ChangeType:         changeType,
			OldPriceCents:      oldCents,
			NewPriceCents:      newCents,
			PriceChangeCents:   change,
			PriceChangePercent: pct,
			Currency:           cur,
			SnapshotDate:       snap.TakenAt,
		})
	}

	for key, cell := range matrix {
		newCents := cell.PriceCents
		oldCents, existed := snap.Cells[key]
		if !existed {
			appendEntry(key, models.PriceChangeInsert, nil, &newCents)
			continue
		}
		if oldCents != newCents {
			old := oldCents
			appendEntry(key, models.PriceChangeUpdate, &old, &newCents)
		}
	}
	for key, oldCents := range snap.Cells {
		if _, still := matrix[key]; !still {
			old := oldCents
			appendEntry(key, models.PriceChangeDelete, &old, nil)
		}
	}
	return entries
}

// RecordChanges persists history entries. Failures are logged and swallowed:
// historical tracking is best-effort relative to the primary price write.
func (d *Detector) RecordChanges(entries []models.PriceHistoryEntry) int {
	if len(entries) == 0 {
		return 0
	}
	if err := d.history.BulkInsert(entries); err != nil {
		log.Errorf("[PriceHistory] Failed to persist %d change entries: %v", len(entries), err)
		return 0
	}
	return len(entries)
}

func roundPercent(v float64) float64 {
	return math.Round(v*10000) / 10000
}
