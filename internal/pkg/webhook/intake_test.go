package webhook

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewave/cruisesync/app/models"
	"github.com/tidewave/cruisesync/app/repository"
	"github.com/tidewave/cruisesync/internal/pkg/cache"
	"github.com/tidewave/cruisesync/internal/pkg/synclock"
)

func TestRefFromPath(t *testing.T) {
	ref, ok := refFromPath("/2026/11/7/231/2143554.json", 7)
	require.True(t, ok)
	assert.Equal(t, "2143554", ref.TraveltekID)
	assert.Equal(t, 7, ref.LineID)
	assert.Equal(t, 231, ref.ShipTraveltekID)
	assert.Equal(t, time.Date(2026, 11, 1, 0, 0, 0, 0, time.UTC), ref.SailDate)
}

func TestRefFromPath_NameBasedShipDirectory(t *testing.T) {
	ref, ok := refFromPath("/2026/5/7/wonderoftheseas/998877.json", 7)
	require.True(t, ok)
	assert.Equal(t, 0, ref.ShipTraveltekID)
	assert.Equal(t, "wonderoftheseas", ref.ShipName)
	assert.Equal(t, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC), ref.SailDate)
}

func TestRefFromPath_Rejections(t *testing.T) {
	cases := []struct {
		path string
		line int
	}{
		{"/2026/11/7/231", 7},                // too short
		{"/2026/11/7/231/2143554.json", 9},   // line mismatch
		{"/2026/13/7/231/2143554.json", 7},   // bad month
		{"/26/11/7/231/2143554.json", 7},     // bad year
		{"/2026/11/7/231/2143554.xml", 7},    // not a feed document
		{"/a/2026/11/7/231/2143554.json", 7}, // extra segment
	}
	for _, c := range cases {
		_, ok := refFromPath(c.path, c.line)
		assert.False(t, ok, c.path)
	}
}

// ---- integration tests (need a local Redis) ----

type fakeEventsRepo struct {
	mu     sync.Mutex
	nextID uint
	status map[uint]string
	reason map[uint]string
}

func newFakeEventsRepo() *fakeEventsRepo {
	return &fakeEventsRepo{status: map[uint]string{}, reason: map[uint]string{}}
}

func (f *fakeEventsRepo) Create(event *models.WebhookEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	event.ID = f.nextID
	f.status[event.ID] = event.Status
	return nil
}

func (f *fakeEventsRepo) GetByID(id uint) (*models.WebhookEvent, error) { return nil, nil }

func (f *fakeEventsRepo) MarkProcessing(id uint, batchID uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[id] = models.WebhookStatusProcessing
	return nil
}

func (f *fakeEventsRepo) MarkCompleted(id uint) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[id] = models.WebhookStatusCompleted
	return nil
}

func (f *fakeEventsRepo) MarkFailed(id uint, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status[id] = models.WebhookStatusFailed
	f.reason[id] = reason
	return nil
}

func (f *fakeEventsRepo) ListByLine(lineID int, limit int) ([]models.WebhookEvent, error) {
	return nil, nil
}

func (f *fakeEventsRepo) statusOf(id uint) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status[id]
}

type fakeLockAudit struct{}

func (fakeLockAudit) RecordAcquired(int, string, time.Time, time.Time) error { return nil }
func (fakeLockAudit) RecordReleased(int, string) error                       { return nil }
func (fakeLockAudit) Get(int) (*models.SyncLock, error)                      { return nil, nil }

type fakeRunner struct {
	mu    sync.Mutex
	calls []int
	done  chan struct{}
}

func (f *fakeRunner) Run(ctx context.Context, lineID int, refs []repository.SailingFeedRef) (*models.SyncBatch, error) {
	f.mu.Lock()
	f.calls = append(f.calls, lineID)
	f.mu.Unlock()
	defer close(f.done)
	return &models.SyncBatch{ID: 1, UUID: "b", LineID: lineID, Status: models.BatchStatusCompleted}, nil
}

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Skipping integration test, Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(context.Background()).Err())
	cache.SetClient(client)
	return client
}

func newTestIntake(events *fakeEventsRepo, runner BatchRunner, client *redis.Client) *Intake {
	cfg := &Config{SuppressionWindow: time.Minute, LockTTL: time.Minute, MaxSailings: 100}
	return NewIntake(cfg, events, nil, synclock.NewLocker(client), fakeLockAudit{}, runner)
}

func TestIntake_AcceptsAndRunsBatch(t *testing.T) {
	client := setupRedis(t)
	events := newFakeEventsRepo()
	runner := &fakeRunner{done: make(chan struct{})}
	intake := newTestIntake(events, runner, client)

	payload := &Payload{
		Event:  "cruiseline_pricing_updated",
		LineID: 7,
		Paths:  []string{"/2026/11/7/231/2143554.json"},
	}
	result, err := intake.Receive(context.Background(), payload, []byte(`{}`))
	require.NoError(t, err)
	assert.True(t, result.Accepted)
	assert.Equal(t, ReasonAccepted, result.Reason)

	select {
	case <-runner.done:
	case <-time.After(5 * time.Second):
		t.Fatal("batch never ran")
	}
	assert.Equal(t, []int{7}, runner.calls)

	require.Eventually(t, func() bool {
		return events.statusOf(result.EventID) == models.WebhookStatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	// Lock released after the batch.
	held, err := synclock.NewLocker(client).Held(context.Background(), 7)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestIntake_SuppressesBurst(t *testing.T) {
	client := setupRedis(t)
	events := newFakeEventsRepo()
	runner := &fakeRunner{done: make(chan struct{})}
	intake := newTestIntake(events, runner, client)

	payload := &Payload{LineID: 8, Paths: []string{"/2026/11/8/231/1.json"}}
	first, err := intake.Receive(context.Background(), payload, []byte(`{}`))
	require.NoError(t, err)
	require.True(t, first.Accepted)

	second, err := intake.Receive(context.Background(), payload, []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, second.Accepted)
	assert.Equal(t, ReasonSuppressed, second.Reason)
	// The duplicate still left an audit row.
	assert.NotZero(t, second.EventID)
	assert.NotEqual(t, first.EventID, second.EventID)

	<-runner.done
}

func TestIntake_DropsWhenLineLocked(t *testing.T) {
	client := setupRedis(t)
	events := newFakeEventsRepo()
	runner := &fakeRunner{done: make(chan struct{})}
	intake := newTestIntake(events, runner, client)

	// Another instance holds the line lock.
	_, err := synclock.NewLocker(client).Acquire(context.Background(), 9, time.Minute)
	require.NoError(t, err)

	payload := &Payload{LineID: 9, Paths: []string{"/2026/11/9/231/1.json"}}
	result, err := intake.Receive(context.Background(), payload, []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, ReasonLocked, result.Reason)
	assert.Empty(t, runner.calls)
}

func TestIntake_OversizedJobRejectedAtIntake(t *testing.T) {
	client := setupRedis(t)
	events := newFakeEventsRepo()
	runner := &fakeRunner{done: make(chan struct{})}
	cfg := &Config{SuppressionWindow: time.Minute, LockTTL: time.Minute, MaxSailings: 2}
	intake := NewIntake(cfg, events, nil, synclock.NewLocker(client), fakeLockAudit{}, runner)

	payload := &Payload{
		LineID: 11,
		Paths: []string{
			"/2026/11/11/231/1.json",
			"/2026/11/11/231/2.json",
			"/2026/11/11/231/3.json",
		},
	}
	result, err := intake.Receive(context.Background(), payload, []byte(`{}`))
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, ReasonSizeLimit, result.Reason)
	assert.NotZero(t, result.EventID)

	// The rejection happens synchronously: no batch started, lock freed.
	assert.Empty(t, runner.calls)
	held, err := synclock.NewLocker(client).Held(context.Background(), 11)
	require.NoError(t, err)
	assert.False(t, held)
	assert.Equal(t, models.WebhookStatusFailed, events.statusOf(result.EventID))
}

func TestIntake_InvalidPayloadRecorded(t *testing.T) {
	client := setupRedis(t)
	events := newFakeEventsRepo()
	runner := &fakeRunner{done: make(chan struct{})}
	intake := newTestIntake(events, runner, client)

	result, err := intake.Receive(context.Background(), &Payload{LineID: 0}, []byte(`{"lineid":0}`))
	require.NoError(t, err)
	assert.False(t, result.Accepted)
	assert.Equal(t, ReasonInvalid, result.Reason)
	assert.NotZero(t, result.EventID, "invalid notifications still get an audit row")
}
