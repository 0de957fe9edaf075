package syncer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewave/cruisesync/app/models"
	"github.com/tidewave/cruisesync/internal/pkg/feed"
)

func rk(cabin string) models.RateKey {
	return models.RateKey{RateCode: "R1", CabinCode: cabin, OccupancyCode: "2"}
}

func snapWith(cells map[models.RateKey]int64) *Snapshot {
	return &Snapshot{SailingID: 1, TakenAt: time.Now(), Currency: "USD", Cells: cells}
}

func findEntry(t *testing.T, entries []models.PriceHistoryEntry, key models.RateKey) models.PriceHistoryEntry {
	t.Helper()
	for _, e := range entries {
		if e.CabinCode == key.CabinCode && e.RateCode == key.RateCode && e.OccupancyCode == key.OccupancyCode {
			return e
		}
	}
	t.Fatalf("no entry for %+v", key)
	return models.PriceHistoryEntry{}
}

func TestComputeChanges_UnchangedCellsProduceNothing(t *testing.T) {
	snap := snapWith(map[models.RateKey]int64{rk("IB"): 89999})
	matrix := feed.Matrix{rk("IB"): {PriceCents: 89999}}

	entries := ComputeChanges(snap, matrix, 1, 10, "USD")
	assert.Empty(t, entries)
}

func TestComputeChanges_Update(t *testing.T) {
	snap := snapWith(map[models.RateKey]int64{rk("IB"): 100000})
	matrix := feed.Matrix{rk("IB"): {PriceCents: 89999}}

	entries := ComputeChanges(snap, matrix, 1, 10, "USD")
	require.Len(t, entries, 1)

	e := entries[0]
	assert.Equal(t, models.PriceChangeUpdate, e.ChangeType)
	assert.Equal(t, int64(100000), *e.OldPriceCents)
	assert.Equal(t, int64(89999), *e.NewPriceCents)
	assert.Equal(t, int64(-10001), e.PriceChangeCents)
	assert.InDelta(t, -10.0001, e.PriceChangePercent, 0.00005)
	assert.Equal(t, uint(1), e.SailingID)
	assert.Equal(t, uint(10), e.SyncBatchID)
}

func TestComputeChanges_InsertAndDelete(t *testing.T) {
	snap := snapWith(map[models.RateKey]int64{rk("IB"): 100000})
	matrix := feed.Matrix{rk("BA"): {PriceCents: 150000}}

	entries := ComputeChanges(snap, matrix, 1, 10, "USD")
	require.Len(t, entries, 2)

	ins := findEntry(t, entries, rk("BA"))
	assert.Equal(t, models.PriceChangeInsert, ins.ChangeType)
	assert.Nil(t, ins.OldPriceCents)
	assert.Equal(t, int64(150000), *ins.NewPriceCents)
	assert.Equal(t, int64(150000), ins.PriceChangeCents)
	assert.Equal(t, float64(0), ins.PriceChangePercent)

	del := findEntry(t, entries, rk("IB"))
	assert.Equal(t, models.PriceChangeDelete, del.ChangeType)
	assert.Equal(t, int64(100000), *del.OldPriceCents)
	assert.Nil(t, del.NewPriceCents)
	assert.Equal(t, int64(-100000), del.PriceChangeCents)
	assert.Equal(t, float64(-100), del.PriceChangePercent)
}

func TestComputeChanges_DeleteEntryKeepsSnapshotCurrency(t *testing.T) {
	snap := snapWith(map[models.RateKey]int64{rk("IB"): 100000, rk("BA"): 150000})
	snap.Currency = "EUR"
	matrix := feed.Matrix{rk("IB"): {PriceCents: 89999}}

	// The document switched to USD; the deleted cell only ever existed in EUR.
	entries := ComputeChanges(snap, matrix, 1, 10, "USD")
	require.Len(t, entries, 2)

	upd := findEntry(t, entries, rk("IB"))
	assert.Equal(t, models.PriceChangeUpdate, upd.ChangeType)
	assert.Equal(t, "USD", upd.Currency)

	del := findEntry(t, entries, rk("BA"))
	assert.Equal(t, models.PriceChangeDelete, del.ChangeType)
	assert.Equal(t, "EUR", del.Currency)
}

func TestComputeChanges_FirstSightingAgainstEmptySnapshot(t *testing.T) {
	matrix := feed.Matrix{
		rk("IB"): {PriceCents: 89999},
		rk("BA"): {PriceCents: 150000},
	}

	entries := ComputeChanges(EmptySnapshot(), matrix, 1, 10, "USD")
	require.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, models.PriceChangeInsert, e.ChangeType)
	}
}

func TestComputeChanges_ZeroOldPriceSkipsPercent(t *testing.T) {
	snap := snapWith(map[models.RateKey]int64{rk("IB"): 0})
	matrix := feed.Matrix{rk("IB"): {PriceCents: 5000}}

	entries := ComputeChanges(snap, matrix, 1, 10, "USD")
	require.Len(t, entries, 1)
	assert.Equal(t, float64(0), entries[0].PriceChangePercent)
}

func TestComputeChanges_PercentRoundedToFourDecimals(t *testing.T) {
	snap := snapWith(map[models.RateKey]int64{rk("IB"): 30000})
	matrix := feed.Matrix{rk("IB"): {PriceCents: 30001}}

	entries := ComputeChanges(snap, matrix, 1, 10, "USD")
	require.Len(t, entries, 1)
	assert.Equal(t, 0.0033, entries[0].PriceChangePercent)
}
