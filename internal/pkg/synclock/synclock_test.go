package synclock

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewave/cruisesync/internal/pkg/feederr"
)

func setupRedis(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379", DB: 15})
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skipf("Skipping integration test, Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(context.Background()).Err())
	return client
}

func TestLocker_AcquireIsExclusive(t *testing.T) {
	locker := NewLocker(setupRedis(t))
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, 7, time.Minute)
	require.NoError(t, err)
	require.NotNil(t, lease)

	_, err = locker.Acquire(ctx, 7, time.Minute)
	assert.ErrorIs(t, err, feederr.ErrLockContention)

	// A different line is unaffected.
	other, err := locker.Acquire(ctx, 8, time.Minute)
	require.NoError(t, err)
	assert.NotNil(t, other)
}

func TestLocker_ReleaseOnlyByHolder(t *testing.T) {
	locker := NewLocker(setupRedis(t))
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, 7, time.Minute)
	require.NoError(t, err)

	// A forged lease with the wrong token must not release the lock.
	forged := &Lease{LineID: 7, Token: "not-the-token"}
	released, err := locker.Release(ctx, forged)
	require.NoError(t, err)
	assert.False(t, released)

	held, err := locker.Held(ctx, 7)
	require.NoError(t, err)
	assert.True(t, held)

	released, err = locker.Release(ctx, lease)
	require.NoError(t, err)
	assert.True(t, released)

	held, err = locker.Held(ctx, 7)
	require.NoError(t, err)
	assert.False(t, held)
}

func TestLocker_ReleaseAfterReacquireDoesNotStealLock(t *testing.T) {
	locker := NewLocker(setupRedis(t))
	ctx := context.Background()

	stale, err := locker.Acquire(ctx, 7, 50*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(80 * time.Millisecond) // let the TTL expire

	fresh, err := locker.Acquire(ctx, 7, time.Minute)
	require.NoError(t, err)

	// The stale holder releasing must not free the new holder's lock.
	released, err := locker.Release(ctx, stale)
	require.NoError(t, err)
	assert.False(t, released)

	held, err := locker.Held(ctx, 7)
	require.NoError(t, err)
	assert.True(t, held)

	_, err = locker.Release(ctx, fresh)
	require.NoError(t, err)
}

func TestLocker_ExtendHeartbeat(t *testing.T) {
	locker := NewLocker(setupRedis(t))
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, 7, 200*time.Millisecond)
	require.NoError(t, err)

	ok, err := locker.Extend(ctx, lease, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	time.Sleep(250 * time.Millisecond)
	held, err := locker.Held(ctx, 7)
	require.NoError(t, err)
	assert.True(t, held, "extended lease must outlive the original TTL")
}

func TestLocker_ExtendLostLease(t *testing.T) {
	locker := NewLocker(setupRedis(t))
	ctx := context.Background()

	lease, err := locker.Acquire(ctx, 7, 50*time.Millisecond)
	require.NoError(t, err)
	time.Sleep(80 * time.Millisecond)

	ok, err := locker.Extend(ctx, lease, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "cannot heartbeat a lease that already expired")
}
