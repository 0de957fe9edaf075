// Package synclock implements the per-line distributed lock that enforces
// at-most-one in-flight sync job per cruise line across backend instances.
// Redis is the authority (SET NX PX with a holder token); the TTL guarantees
// the lock expires on its own if a worker crashes mid-job.
package synclock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/tidewave/cruisesync/internal/pkg/feederr"
)

const keyPrefix = "synclock:line:"

// releaseScript deletes the lock only if the caller still holds it.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript refreshes the TTL only if the caller still holds the lock.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Lease is proof of lock ownership for one line.
type Lease struct {
	LineID     int
	Token      string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// Locker acquires and releases per-line sync locks.
type Locker struct {
	client *redis.Client
}

// NewLocker creates a locker on the given Redis client.
func NewLocker(client *redis.Client) *Locker {
	return &Locker{client: client}
}

func lockKey(lineID int) string {
	return fmt.Sprintf("%s%d", keyPrefix, lineID)
}

// Acquire takes the line lock with the given TTL. Returns
// feederr.ErrLockContention when another job already holds it.
func (l *Locker) Acquire(ctx context.Context, lineID int, ttl time.Duration) (*Lease, error) {
	token := uuid.New().String()
	ok, err := l.client.SetNX(ctx, lockKey(lineID), token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lock for line %d: %w", lineID, err)
	}
	if !ok {
		return nil, feederr.Wrap(feederr.ErrLockContention, "line %d", lineID)
	}
	now := time.Now()
	return &Lease{
		LineID:     lineID,
		Token:      token,
		AcquiredAt: now,
		ExpiresAt:  now.Add(ttl),
	}, nil
}

// Release gives the lock back if this lease still holds it. Releasing an
// expired or stolen lease is not an error; the job just ran past its TTL.
func (l *Locker) Release(ctx context.Context, lease *Lease) (bool, error) {
	res, err := releaseScript.Run(ctx, l.client, []string{lockKey(lease.LineID)}, lease.Token).Int()
	if err != nil {
		return false, fmt.Errorf("release lock for line %d: %w", lease.LineID, err)
	}
	return res == 1, nil
}

// Extend refreshes the lease TTL (heartbeat for long batches). Returns false
// if the lease no longer holds the lock.
func (l *Locker) Extend(ctx context.Context, lease *Lease, ttl time.Duration) (bool, error) {
	res, err := extendScript.Run(ctx, l.client, []string{lockKey(lease.LineID)}, lease.Token, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("extend lock for line %d: %w", lease.LineID, err)
	}
	if res == 1 {
		lease.ExpiresAt = time.Now().Add(ttl)
		return true, nil
	}
	return false, nil
}

// Held reports whether any holder currently owns the line lock.
func (l *Locker) Held(ctx context.Context, lineID int) (bool, error) {
	_, err := l.client.Get(ctx, lockKey(lineID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
