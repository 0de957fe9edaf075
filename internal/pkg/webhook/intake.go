// Package webhook implements intake of feed update notifications: validate,
// persist the audit row, dedupe bursts through a suppression window, guard
// the line with the distributed lock, and hand off to the batch scheduler
// asynchronously. Intake never blocks on the sync itself.
package webhook

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2/log"

	"github.com/tidewave/cruisesync/app/models"
	"github.com/tidewave/cruisesync/app/repository"
	"github.com/tidewave/cruisesync/internal/pkg/cache"
	"github.com/tidewave/cruisesync/internal/pkg/env"
	"github.com/tidewave/cruisesync/internal/pkg/synclock"
)

const suppressKeyPrefix = "webhook:suppress:"

// Intake outcomes reported back to the webhook sender.
const (
	ReasonAccepted   = "accepted"
	ReasonInvalid    = "invalid_payload"
	ReasonSuppressed = "suppressed"
	ReasonLocked     = "sync_in_progress"
	ReasonNoSailings = "no_matching_sailings"
	ReasonSizeLimit  = "size_limit_exceeded"
)

// Payload is the inbound notification body. Paths is optional: when the
// sender names specific changed files, only those are synced; otherwise the
// whole line's active future sailings are.
type Payload struct {
	Event     string   `json:"event"`
	LineID    int      `json:"lineid" validate:"required,gt=0"`
	Timestamp int64    `json:"timestamp"`
	Paths     []string `json:"paths"`
}

// Config bounds intake behavior. MaxSailings shares the scheduler's env key
// so intake and scheduler always agree on the limit.
type Config struct {
	SuppressionWindow time.Duration
	LockTTL           time.Duration
	MaxSailings       int
}

// LoadConfig reads intake settings from the environment with defaults.
func LoadConfig() *Config {
	return &Config{
		SuppressionWindow: getEnvDuration("WEBHOOK_SUPPRESSION_WINDOW", 5*time.Minute),
		LockTTL:           getEnvDuration("SYNC_LOCK_TTL", 10*time.Minute),
		MaxSailings:       getEnvInt("SYNC_MAX_SAILINGS", 500),
	}
}

// BatchRunner starts one sync batch; satisfied by syncer.Scheduler.
type BatchRunner interface {
	Run(ctx context.Context, lineID int, refs []repository.SailingFeedRef) (*models.SyncBatch, error)
}

// Intake handles inbound webhook notifications.
type Intake struct {
	cfg       *Config
	validate  *validator.Validate
	events    repository.WebhookEventRepository
	sailings  repository.SailingRepository
	locks     *synclock.Locker
	lockAudit repository.SyncLockRepository
	runner    BatchRunner
}

// NewIntake wires the intake pipeline.
func NewIntake(cfg *Config, events repository.WebhookEventRepository, sailings repository.SailingRepository,
	locks *synclock.Locker, lockAudit repository.SyncLockRepository, runner BatchRunner) *Intake {
	return &Intake{
		cfg:       cfg,
		validate:  validator.New(),
		events:    events,
		sailings:  sailings,
		locks:     locks,
		lockAudit: lockAudit,
		runner:    runner,
	}
}

// Result tells the sender what happened to its notification. Accepted false
// with a reason is still a 2xx outcome: the notification was received and
// recorded, just not acted on.
type Result struct {
	Accepted bool   `json:"accepted"`
	Reason   string `json:"reason"`
	EventID  uint   `json:"event_id,omitempty"`
}

// Receive processes one notification. The audit row is written before any
// acceptance decision, so rejected notifications still leave a trace.
func (i *Intake) Receive(ctx context.Context, payload *Payload, rawBody []byte) (*Result, error) {
	event := &models.WebhookEvent{
		LineID:      payload.LineID,
		EventType:   eventType(payload.Event),
		PayloadJSON: string(rawBody),
		Status:      models.WebhookStatusPending,
		ReceivedAt:  time.Now(),
	}
	if err := i.events.Create(event); err != nil {
		return nil, fmt.Errorf("persist webhook event: %w", err)
	}

	if err := i.validate.Struct(payload); err != nil {
		i.reject(event, ReasonInvalid, err.Error())
		return &Result{Accepted: false, Reason: ReasonInvalid, EventID: event.ID}, nil
	}

	// Suppression window: the feed fires bursts of notifications for the same
	// line; the first one in the window wins, the rest are dropped here
	// before any lock or database traffic.
	fresh, err := cache.SetNX(suppressKey(payload.LineID), event.ID, i.cfg.SuppressionWindow)
	if err != nil {
		return nil, fmt.Errorf("suppression check for line %d: %w", payload.LineID, err)
	}
	if !fresh {
		log.Infof("[Webhook] Suppressed duplicate notification for line %d (event %d)", payload.LineID, event.ID)
		i.reject(event, ReasonSuppressed, "")
		return &Result{Accepted: false, Reason: ReasonSuppressed, EventID: event.ID}, nil
	}

	lease, err := i.locks.Acquire(ctx, payload.LineID, i.cfg.LockTTL)
	if err != nil {
		log.Infof("[Webhook] Line %d already syncing, dropping event %d", payload.LineID, event.ID)
		i.reject(event, ReasonLocked, "")
		return &Result{Accepted: false, Reason: ReasonLocked, EventID: event.ID}, nil
	}
	if err := i.lockAudit.RecordAcquired(lease.LineID, lease.Token, lease.AcquiredAt, lease.ExpiresAt); err != nil {
		log.Warnf("[Webhook] Failed to mirror lock acquisition for line %d: %v", lease.LineID, err)
	}

	refs, err := i.resolveRefs(payload)
	if err != nil || len(refs) == 0 {
		i.releaseLock(lease)
		if err != nil {
			i.reject(event, ReasonNoSailings, err.Error())
			return nil, err
		}
		log.Infof("[Webhook] No sailings to sync for line %d (event %d)", payload.LineID, event.ID)
		i.reject(event, ReasonNoSailings, "")
		return &Result{Accepted: false, Reason: ReasonNoSailings, EventID: event.ID}, nil
	}

	// Oversized jobs are rejected here, synchronously, so the sender learns
	// about the limit in the acknowledgment instead of from a batch that
	// silently never ran.
	if len(refs) > i.cfg.MaxSailings {
		i.releaseLock(lease)
		log.Warnf("[Webhook] Rejecting oversized job for line %d: %d sailings, limit %d",
			payload.LineID, len(refs), i.cfg.MaxSailings)
		i.reject(event, ReasonSizeLimit, fmt.Sprintf("%d sailings, limit %d", len(refs), i.cfg.MaxSailings))
		return &Result{Accepted: false, Reason: ReasonSizeLimit, EventID: event.ID}, nil
	}

	go i.runBatch(event, lease, payload.LineID, refs)

	log.Infof("[Webhook] Accepted notification for line %d: %d sailings (event %d)", payload.LineID, len(refs), event.ID)
	return &Result{Accepted: true, Reason: ReasonAccepted, EventID: event.ID}, nil
}

// runBatch owns the lease for the duration of the batch: it heartbeats the
// TTL, runs the scheduler, records the outcome on the event row, and always
// releases the lock.
func (i *Intake) runBatch(event *models.WebhookEvent, lease *synclock.Lease, lineID int, refs []repository.SailingFeedRef) {
	ctx := context.Background()
	defer i.releaseLock(lease)

	// Heartbeat at a third of the TTL so one missed beat never loses the lock.
	stopBeat := make(chan struct{})
	defer close(stopBeat)
	go i.heartbeat(ctx, lease, stopBeat)

	batch, err := i.runner.Run(ctx, lineID, refs)
	if err != nil {
		log.Errorf("[Webhook] Batch for line %d failed: %v", lineID, err)
		if merr := i.events.MarkFailed(event.ID, err.Error()); merr != nil {
			log.Errorf("[Webhook] Failed to mark event %d failed: %v", event.ID, merr)
		}
		return
	}

	if err := i.events.MarkProcessing(event.ID, batch.ID); err != nil {
		log.Warnf("[Webhook] Failed to link event %d to batch %d: %v", event.ID, batch.ID, err)
	}
	if batch.Status == models.BatchStatusFailed {
		if err := i.events.MarkFailed(event.ID, batch.ErrorMsg); err != nil {
			log.Errorf("[Webhook] Failed to mark event %d failed: %v", event.ID, err)
		}
		return
	}
	if err := i.events.MarkCompleted(event.ID); err != nil {
		log.Errorf("[Webhook] Failed to mark event %d completed: %v", event.ID, err)
	}
}

func (i *Intake) heartbeat(ctx context.Context, lease *synclock.Lease, stop <-chan struct{}) {
	interval := i.cfg.LockTTL / 3
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ok, err := i.locks.Extend(ctx, lease, i.cfg.LockTTL)
			if err != nil {
				log.Warnf("[Webhook] Lock heartbeat error for line %d: %v", lease.LineID, err)
				continue
			}
			if !ok {
				// Lost the lease (TTL expired under us). The batch keeps
				// running; worst case another instance starts a second batch
				// and the per-document transactions keep the data consistent.
				log.Warnf("[Webhook] Lost lock lease for line %d mid-batch", lease.LineID)
				return
			}
		}
	}
}

func (i *Intake) releaseLock(lease *synclock.Lease) {
	if _, err := i.locks.Release(context.Background(), lease); err != nil {
		log.Warnf("[Webhook] Failed to release lock for line %d: %v", lease.LineID, err)
	}
	if err := i.lockAudit.RecordReleased(lease.LineID, lease.Token); err != nil {
		log.Warnf("[Webhook] Failed to mirror lock release for line %d: %v", lease.LineID, err)
	}
}

// resolveRefs builds the work list: explicit paths from the payload when
// present, otherwise every active future sailing of the line.
func (i *Intake) resolveRefs(payload *Payload) ([]repository.SailingFeedRef, error) {
	if len(payload.Paths) > 0 {
		var refs []repository.SailingFeedRef
		for _, p := range payload.Paths {
			ref, ok := refFromPath(p, payload.LineID)
			if !ok {
				log.Warnf("[Webhook] Ignoring unparseable path %q for line %d", p, payload.LineID)
				continue
			}
			refs = append(refs, ref)
		}
		return refs, nil
	}
	refs, err := i.sailings.ActiveFutureRefsByLine(payload.LineID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("list sailings for line %d: %w", payload.LineID, err)
	}
	return refs, nil
}

// refFromPath parses a feed path of the form
// /<year>/<month>/<lineid>/<shipkey>/<file>.json into a feed ref. The ship
// key may be the numeric ship id or the normalized ship name; only the
// numeric form is recoverable here, the resolver regenerates the rest.
func refFromPath(p string, wantLineID int) (repository.SailingFeedRef, bool) {
	parts := strings.Split(strings.Trim(p, "/"), "/")
	if len(parts) != 5 {
		return repository.SailingFeedRef{}, false
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil || year < 2000 {
		return repository.SailingFeedRef{}, false
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil || month < 1 || month > 12 {
		return repository.SailingFeedRef{}, false
	}
	lineID, err := strconv.Atoi(parts[2])
	if err != nil || lineID != wantLineID {
		return repository.SailingFeedRef{}, false
	}
	file := parts[4]
	if !strings.HasSuffix(file, ".json") {
		return repository.SailingFeedRef{}, false
	}

	ref := repository.SailingFeedRef{
		TraveltekID: strings.TrimSuffix(path.Base(file), ".json"),
		LineID:      lineID,
		SailDate:    time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC),
	}
	if shipID, err := strconv.Atoi(parts[3]); err == nil {
		ref.ShipTraveltekID = shipID
	} else {
		ref.ShipName = parts[3]
	}
	return ref, true
}

func (i *Intake) reject(event *models.WebhookEvent, reason, detail string) {
	msg := reason
	if detail != "" {
		msg = reason + ": " + detail
	}
	if err := i.events.MarkFailed(event.ID, msg); err != nil {
		log.Errorf("[Webhook] Failed to record rejection of event %d: %v", event.ID, err)
	}
}

func eventType(event string) string {
	if event == "" {
		return "cruiseline_pricing_updated"
	}
	return event
}

func suppressKey(lineID int) string {
	return suppressKeyPrefix + strconv.Itoa(lineID)
}

func getEnvInt(key string, def int) int {
	raw := env.GetEnv(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Warnf("[Webhook] Invalid integer for %s: %q, using %d", key, raw, def)
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
		log.Warnf("[Webhook] Invalid duration for %s: %q, using %s", key, raw, def)
		return def
	}
	return d
}
