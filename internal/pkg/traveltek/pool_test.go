package traveltek

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tidewave/cruisesync/internal/pkg/feederr"
)

// fakeConn serves canned files and records retrieval order.
type fakeConn struct {
	mu        sync.Mutex
	files     map[string][]byte
	retrieved []string
	failWith  error // returned by every Retrieve when set
	closed    bool
}

func (f *fakeConn) Retrieve(path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retrieved = append(f.retrieved, path)
	if f.failWith != nil {
		return nil, f.failWith
	}
	if data, ok := f.files[path]; ok {
		return data, nil
	}
	return nil, feederr.Wrap(feederr.ErrFileNotFound, "%s", path)
}

func (f *fakeConn) Ping() error { return nil }

func (f *fakeConn) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

type fakeDialer struct {
	mu    sync.Mutex
	conns []*fakeConn
	next  func() *fakeConn
	err   error
}

func (d *fakeDialer) dial(cfg *Config) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return nil, d.err
	}
	c := d.next()
	d.conns = append(d.conns, c)
	return c, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func testConfig() *Config {
	return &Config{
		PoolSize:          2,
		AcquireTimeout:    200 * time.Millisecond,
		DialTimeout:       time.Second,
		DownloadTimeout:   time.Second,
		IdleTimeout:       time.Minute,
		RequestsPerSecond: 1000,
		BreakerThreshold:  3,
		BreakerCooldown:   100 * time.Millisecond,
	}
}

func TestPool_DownloadFirstCandidate(t *testing.T) {
	dialer := &fakeDialer{next: func() *fakeConn {
		return &fakeConn{files: map[string][]byte{"/2026/05/7/231/123.json": []byte(`{"ok":1}`)}}
	}}
	pool := NewPool(testConfig(), dialer.dial)
	defer pool.Close()

	data, path, err := pool.Download(context.Background(), []string{"/2026/05/7/231/123.json", "/2026/5/7/231/123.json"})
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"ok":1}`), data)
	assert.Equal(t, "/2026/05/7/231/123.json", path)
	// Only the hit should have been probed.
	assert.Equal(t, []string{"/2026/05/7/231/123.json"}, dialer.conns[0].retrieved)
}

func TestPool_DownloadProbesCandidatesInOrder(t *testing.T) {
	dialer := &fakeDialer{next: func() *fakeConn {
		return &fakeConn{files: map[string][]byte{"/b.json": []byte("b")}}
	}}
	pool := NewPool(testConfig(), dialer.dial)
	defer pool.Close()

	data, path, err := pool.Download(context.Background(), []string{"/a.json", "/b.json", "/c.json"})
	require.NoError(t, err)
	assert.Equal(t, []byte("b"), data)
	assert.Equal(t, "/b.json", path)
	// All probes ran on one session.
	assert.Equal(t, 1, dialer.dialCount())
	assert.Equal(t, []string{"/a.json", "/b.json"}, dialer.conns[0].retrieved)
}

func TestPool_AllCandidatesMissing(t *testing.T) {
	dialer := &fakeDialer{next: func() *fakeConn { return &fakeConn{} }}
	pool := NewPool(testConfig(), dialer.dial)
	defer pool.Close()

	_, _, err := pool.Download(context.Background(), []string{"/a.json", "/b.json"})
	assert.ErrorIs(t, err, feederr.ErrFileNotFound)

	// A missing file is not a transport failure: the breaker stays closed and
	// the session goes back to the idle list.
	assert.Equal(t, gobreaker.StateClosed, pool.State())
	assert.Equal(t, 1, pool.IdleCount())
}

func TestPool_ReusesIdleSession(t *testing.T) {
	dialer := &fakeDialer{next: func() *fakeConn {
		return &fakeConn{files: map[string][]byte{"/a.json": []byte("a")}}
	}}
	pool := NewPool(testConfig(), dialer.dial)
	defer pool.Close()

	for i := 0; i < 3; i++ {
		_, _, err := pool.Download(context.Background(), []string{"/a.json"})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, dialer.dialCount())
}

func TestPool_ConnectionErrorDiscardsSession(t *testing.T) {
	dialer := &fakeDialer{next: func() *fakeConn {
		return &fakeConn{failWith: feederr.Wrap(feederr.ErrConnection, "reset by peer")}
	}}
	pool := NewPool(testConfig(), dialer.dial)
	defer pool.Close()

	_, _, err := pool.Download(context.Background(), []string{"/a.json"})
	assert.ErrorIs(t, err, feederr.ErrConnection)
	assert.Equal(t, 0, pool.IdleCount())
	assert.True(t, dialer.conns[0].closed)
}

func TestPool_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	cfg := testConfig()
	dialer := &fakeDialer{next: func() *fakeConn {
		return &fakeConn{failWith: feederr.Wrap(feederr.ErrConnection, "reset by peer")}
	}}
	pool := NewPool(cfg, dialer.dial)
	defer pool.Close()

	for i := 0; i < int(cfg.BreakerThreshold); i++ {
		_, _, err := pool.Download(context.Background(), []string{"/a.json"})
		assert.ErrorIs(t, err, feederr.ErrConnection)
	}
	assert.Equal(t, gobreaker.StateOpen, pool.State())

	// While open, calls fail fast without touching the dialer.
	before := dialer.dialCount()
	_, _, err := pool.Download(context.Background(), []string{"/a.json"})
	assert.ErrorIs(t, err, feederr.ErrCircuitOpen)
	assert.Equal(t, before, dialer.dialCount())
}

func TestPool_HalfOpenProbeClosesBreaker(t *testing.T) {
	cfg := testConfig()
	var healthy bool
	var mu sync.Mutex
	dialer := &fakeDialer{next: func() *fakeConn {
		mu.Lock()
		defer mu.Unlock()
		if healthy {
			return &fakeConn{files: map[string][]byte{"/a.json": []byte("a")}}
		}
		return &fakeConn{failWith: feederr.Wrap(feederr.ErrConnection, "reset by peer")}
	}}
	pool := NewPool(cfg, dialer.dial)
	defer pool.Close()

	for i := 0; i < int(cfg.BreakerThreshold); i++ {
		_, _, _ = pool.Download(context.Background(), []string{"/a.json"})
	}
	require.Equal(t, gobreaker.StateOpen, pool.State())

	mu.Lock()
	healthy = true
	mu.Unlock()
	time.Sleep(cfg.BreakerCooldown + 20*time.Millisecond)

	// First call after the cooldown is the half-open probe; success closes.
	data, _, err := pool.Download(context.Background(), []string{"/a.json"})
	require.NoError(t, err)
	assert.Equal(t, []byte("a"), data)
	assert.Equal(t, gobreaker.StateClosed, pool.State())
}

func TestPool_AcquireTimeout(t *testing.T) {
	cfg := testConfig()
	cfg.PoolSize = 1
	cfg.AcquireTimeout = 50 * time.Millisecond

	block := make(chan struct{})
	dialer := &fakeDialer{next: func() *fakeConn {
		return &fakeConn{files: map[string][]byte{"/a.json": []byte("a")}}
	}}
	pool := NewPool(cfg, dialer.dial)
	defer pool.Close()

	started := make(chan struct{})
	go func() {
		_ = pool.WithConnection(context.Background(), func(Conn) error {
			close(started)
			<-block
			return nil
		})
	}()
	<-started

	_, _, err := pool.Download(context.Background(), []string{"/a.json"})
	assert.ErrorIs(t, err, feederr.ErrConnection)
	close(block)
}

func TestPool_DialFailureCountsAsConnectionError(t *testing.T) {
	dialer := &fakeDialer{err: feederr.Wrap(feederr.ErrConnection, "host unreachable")}
	pool := NewPool(testConfig(), dialer.dial)
	defer pool.Close()

	_, _, err := pool.Download(context.Background(), []string{"/a.json"})
	assert.ErrorIs(t, err, feederr.ErrConnection)
	assert.False(t, errors.Is(err, feederr.ErrFileNotFound))
}
