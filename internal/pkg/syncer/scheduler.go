// Package syncer drives the per-line pricing synchronization batch: resolve
// remote paths, download, parse, upsert, and record price changes, under
// bounded concurrency and a batch deadline.
package syncer

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/tidewave/cruisesync/app/models"
	"github.com/tidewave/cruisesync/app/repository"
	"github.com/tidewave/cruisesync/internal/pkg/env"
	"github.com/tidewave/cruisesync/internal/pkg/feed"
	"github.com/tidewave/cruisesync/internal/pkg/feedarchive"
	"github.com/tidewave/cruisesync/internal/pkg/feederr"
	"github.com/tidewave/cruisesync/internal/pkg/notify"
	"github.com/tidewave/cruisesync/internal/pkg/traveltek"
)

// Config bounds one batch run. The chunk pause exists to be polite to the
// feed host between bursts; the size limit protects the host from a
// misbehaving caller requesting an unbounded fan-out.
type Config struct {
	ChunkSize      int
	Workers        int
	MaxSailings    int
	RetryAttempts  int
	RetryBaseDelay time.Duration
	RetryMaxDelay  time.Duration
	ChunkPause     time.Duration
	BatchDeadline  time.Duration
}

// LoadConfig reads scheduler settings from the environment with defaults.
func LoadConfig() *Config {
	return &Config{
		ChunkSize:      getEnvInt("SYNC_CHUNK_SIZE", 50),
		Workers:        getEnvInt("SYNC_WORKERS", 6),
		MaxSailings:    getEnvInt("SYNC_MAX_SAILINGS", 500),
		RetryAttempts:  getEnvInt("SYNC_RETRY_ATTEMPTS", 3),
		RetryBaseDelay: getEnvDuration("SYNC_RETRY_BASE_DELAY", time.Second),
		RetryMaxDelay:  getEnvDuration("SYNC_RETRY_MAX_DELAY", 8*time.Second),
		ChunkPause:     getEnvDuration("SYNC_CHUNK_PAUSE", 3*time.Second),
		BatchDeadline:  getEnvDuration("SYNC_BATCH_DEADLINE", 25*time.Minute),
	}
}

// Downloader fetches the first existing file among candidate remote paths.
type Downloader interface {
	Download(ctx context.Context, paths []string) (data []byte, foundPath string, err error)
}

// DocumentApplier writes a parsed document into the database.
type DocumentApplier interface {
	FindExistingSailingID(ctx context.Context, doc *feed.Document) (uint, bool)
	ApplyDocument(ctx context.Context, doc *feed.Document, batchID uint) (*ApplyResult, error)
}

// ChangeDetector snapshots pre-write prices and persists computed changes.
type ChangeDetector interface {
	CaptureSnapshot(sailingID uint) (*Snapshot, error)
	RecordChanges(entries []models.PriceHistoryEntry) int
}

// Scheduler runs sync batches.
type Scheduler struct {
	cfg      *Config
	pool     Downloader
	applier  DocumentApplier
	detector ChangeDetector
	batches  repository.BatchRepository
	reporter notify.Reporter
	archiver feedarchive.Archiver
}

// NewScheduler wires a batch scheduler.
func NewScheduler(cfg *Config, pool Downloader, applier DocumentApplier, detector ChangeDetector,
	batches repository.BatchRepository, reporter notify.Reporter, archiver feedarchive.Archiver) *Scheduler {
	if reporter == nil {
		reporter = notify.NoopReporter{}
	}
	if archiver == nil {
		archiver = feedarchive.NoopArchiver{}
	}
	return &Scheduler{
		cfg:      cfg,
		pool:     pool,
		applier:  applier,
		detector: detector,
		batches:  batches,
		reporter: reporter,
		archiver: archiver,
	}
}

// Run processes every ref as one batch and returns the finished batch row.
// The size limit is enforced before any batch row or download happens, so a
// rejected request leaves no trace beyond the returned error.
func (s *Scheduler) Run(ctx context.Context, lineID int, refs []repository.SailingFeedRef) (*models.SyncBatch, error) {
	if len(refs) > s.cfg.MaxSailings {
		return nil, feederr.Wrap(feederr.ErrSizeLimit,
			"line %d requested %d sailings, limit is %d", lineID, len(refs), s.cfg.MaxSailings)
	}

	batch := &models.SyncBatch{
		LineID:    lineID,
		Status:    models.BatchStatusRunning,
		StartedAt: time.Now(),
	}
	if err := s.batches.Create(batch); err != nil {
		return nil, fmt.Errorf("create sync batch: %w", err)
	}
	log.Infof("[Scheduler] Batch %s started: line %d, %d sailings", batch.UUID, lineID, len(refs))

	// The deadline gates scheduling only: once it passes no new chunk or item
	// is dispatched, but workers already in flight finish on the caller's
	// context instead of being cancelled and miscounted as transport failures.
	deadline, cancel := context.WithTimeout(ctx, s.cfg.BatchDeadline)
	defer cancel()

	var mu sync.Mutex
	finalized := false
	finalize := func(status, errMsg string) {
		mu.Lock()
		defer mu.Unlock()
		if finalized {
			return
		}
		finalized = true
		now := time.Now()
		batch.FinishedAt = &now
		batch.DurationMS = now.Sub(batch.StartedAt).Milliseconds()
		batch.Status = status
		batch.ErrorMsg = errMsg
		if err := s.batches.Update(batch); err != nil {
			log.Errorf("[Scheduler] Failed to finalize batch %s: %v", batch.UUID, err)
		}
	}
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("[Scheduler] Batch %s panicked: %v", batch.UUID, r)
			finalize(models.BatchStatusFailed, fmt.Sprintf("panic: %v", r))
			s.reporter.ReportBatch(context.Background(), batch)
		}
	}()

	for start := 0; start < len(refs); start += s.cfg.ChunkSize {
		if deadline.Err() != nil {
			break
		}
		end := start + s.cfg.ChunkSize
		if end > len(refs) {
			end = len(refs)
		}
		s.runChunk(deadline, ctx, batch, &mu, refs[start:end])

		if end < len(refs) && s.cfg.ChunkPause > 0 {
			select {
			case <-deadline.Done():
			case <-time.After(s.cfg.ChunkPause):
			}
		}
	}

	if deadline.Err() != nil && batch.Attempted < len(refs) {
		finalize(models.BatchStatusFailed,
			fmt.Sprintf("deadline exceeded after %d of %d sailings", batch.Attempted, len(refs)))
	} else if batch.Failed() > 0 {
		finalize(models.BatchStatusCompletedWithIssues, "")
	} else {
		finalize(models.BatchStatusCompleted, "")
	}

	log.Infof("[Scheduler] Batch %s %s: %d attempted, %d succeeded, %d failed, %d price changes (%dms)",
		batch.UUID, batch.Status, batch.Attempted, batch.Succeeded, batch.Failed(), batch.PriceChanges, batch.DurationMS)
	s.reporter.ReportBatch(context.Background(), batch)
	return batch, nil
}

// runChunk fans one chunk out over the worker pool and waits for it to drain.
// The deadline context stops new dispatches; workers run on the work context.
func (s *Scheduler) runChunk(deadline, work context.Context, batch *models.SyncBatch, mu *sync.Mutex, refs []repository.SailingFeedRef) {
	sem := make(chan struct{}, s.cfg.Workers)
	var wg sync.WaitGroup

	for _, ref := range refs {
		if deadline.Err() != nil {
			break
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(ref repository.SailingFeedRef) {
			defer wg.Done()
			defer func() { <-sem }()
			changes, err := s.processItem(work, batch.ID, ref)
			s.count(batch, mu, changes, err)
		}(ref)
	}
	wg.Wait()
}

// count records one sailing's outcome into the batch counters.
func (s *Scheduler) count(batch *models.SyncBatch, mu *sync.Mutex, changes int, err error) {
	mu.Lock()
	defer mu.Unlock()
	batch.Attempted++
	if err == nil {
		batch.Succeeded++
		batch.PriceChanges += changes
		return
	}
	switch feederr.Classify(err) {
	case feederr.CategoryFileNotFound:
		batch.FileNotFound++
	case feederr.CategoryConnection, feederr.CategoryCircuitOpen:
		// Circuit-open rejections are a transport symptom, so they share the
		// connection bucket.
		batch.ConnectionErrors++
	case feederr.CategoryParse:
		batch.ParseErrors++
	default:
		batch.ConstraintErrors++
	}
}

// processItem syncs one sailing end to end and returns the number of price
// changes recorded.
func (s *Scheduler) processItem(ctx context.Context, batchID uint, ref repository.SailingFeedRef) (int, error) {
	paths := traveltek.Paths(traveltek.Resolve(traveltek.ResolveRequest{
		LineID:     ref.LineID,
		ShipID:     ref.ShipTraveltekID,
		ShipName:   ref.ShipName,
		SailDate:   ref.SailDate,
		FileID:     ref.TraveltekID,
		VoyageCode: ref.VoyageCode,
	}))

	data, foundPath, err := s.download(ctx, paths)
	if err != nil {
		if feederr.Classify(err) != feederr.CategoryFileNotFound {
			log.Warnf("[Scheduler] Download failed for sailing %s: %v", ref.TraveltekID, err)
		}
		return 0, err
	}
	s.archiver.Archive(ctx, ref.LineID, ref.SailDate, ref.TraveltekID+".json", data)

	doc, err := feed.Parse(data)
	if err != nil {
		log.Warnf("[Scheduler] Parse failed for %s: %v", foundPath, err)
		return 0, err
	}

	// Snapshot before the write so ComputeChanges can diff after it. A first
	// sighting diffs against the empty snapshot: every cell is an insert.
	snap := EmptySnapshot()
	if sailingID, ok := s.applier.FindExistingSailingID(ctx, doc); ok {
		if captured, err := s.detector.CaptureSnapshot(sailingID); err == nil {
			snap = captured
		} else {
			log.Warnf("[Scheduler] Snapshot failed for sailing %d, history interval lost: %v", sailingID, err)
		}
	}

	result, err := s.applier.ApplyDocument(ctx, doc, batchID)
	if err != nil {
		log.Warnf("[Scheduler] Apply failed for sailing %s: %v", ref.TraveltekID, err)
		return 0, err
	}

	entries := ComputeChanges(snap, result.Matrix, result.SailingID, batchID, result.Currency)
	recorded := s.detector.RecordChanges(entries)

	log.Debugf("[Scheduler] Synced sailing %s from %s: %d rates (%s), %d changes",
		ref.TraveltekID, foundPath, result.RateCount, result.Source, recorded)
	return recorded, nil
}

// download retries transient transport failures with exponential backoff.
// Missing files and open-circuit rejections are terminal for this sailing.
func (s *Scheduler) download(ctx context.Context, paths []string) ([]byte, string, error) {
	var lastErr error
	for attempt := 0; attempt < s.cfg.RetryAttempts; attempt++ {
		if attempt > 0 {
			delay := s.cfg.RetryBaseDelay << (attempt - 1)
			if delay > s.cfg.RetryMaxDelay {
				delay = s.cfg.RetryMaxDelay
			}
			select {
			case <-ctx.Done():
				return nil, "", feederr.Wrap(feederr.ErrConnection, "retry cancelled: %v", ctx.Err())
			case <-time.After(delay):
			}
		}

		data, foundPath, err := s.pool.Download(ctx, paths)
		if err == nil {
			return data, foundPath, nil
		}
		lastErr = err
		if !feederr.Retryable(err) {
			return nil, "", err
		}
	}
	return nil, "", lastErr
}

func getEnvInt(key string, def int) int {
	raw := env.GetEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Warnf("[Scheduler] Invalid integer for %s: %q, using %d", key, raw, def)
		return def
	}
	return v
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	raw := env.GetEnv(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		log.Warnf("[Scheduler] Invalid duration for %s: %q, using %s", key, raw, def)
		return def
	}
	return d
}
