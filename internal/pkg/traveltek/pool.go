package traveltek

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/sony/gobreaker"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/tidewave/cruisesync/internal/pkg/feederr"
)

// Pool manages a small set of persistent feed sessions. The semaphore bounds
// concurrent checkouts (acquire blocks cooperatively up to AcquireTimeout),
// the rate limiter caps outbound requests independent of pool size, and the
// circuit breaker short-circuits calls after consecutive transport failures.
type Pool struct {
	cfg     *Config
	dial    Dialer
	sem     *semaphore.Weighted
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker

	mu   sync.Mutex
	idle []*pooledConn

	stopCh    chan struct{}
	closeOnce sync.Once
}

// NewPool creates a connection pool and starts its idle sweeper.
func NewPool(cfg *Config, dial Dialer) *Pool {
	p := &Pool{
		cfg:     cfg,
		dial:    dial,
		sem:     semaphore.NewWeighted(int64(cfg.PoolSize)),
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		stopCh:  make(chan struct{}),
	}
	p.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "traveltek-ftp",
		MaxRequests: 1, // half-open: exactly one probe decides whether to close
		Timeout:     cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warnf("[TraveltekPool] Circuit breaker %s: %s -> %s", name, from, to)
		},
	})

	go p.sweeper()
	return p
}

// WithConnection runs fn with a checked-out session. Transport failures feed
// the breaker and discard the session; anything else (including a missing
// file) returns the session to the idle list and passes through untouched.
func (p *Pool) WithConnection(ctx context.Context, fn func(Conn) error) error {
	acquireCtx, cancel := context.WithTimeout(ctx, p.cfg.AcquireTimeout)
	defer cancel()
	if err := p.sem.Acquire(acquireCtx, 1); err != nil {
		return feederr.Wrap(feederr.ErrConnection, "pool acquire timed out after %s", p.cfg.AcquireTimeout)
	}
	defer p.sem.Release(1)

	if err := p.limiter.Wait(ctx); err != nil {
		return feederr.Wrap(feederr.ErrConnection, "rate limiter: %v", err)
	}

	var opErr error
	_, err := p.breaker.Execute(func() (interface{}, error) {
		conn, err := p.checkout()
		if err != nil {
			return nil, err
		}
		if err := fn(conn); err != nil {
			if errors.Is(err, feederr.ErrConnection) {
				_ = conn.Close()
				return nil, err
			}
			// Non-transport outcome: session is fine, error is the caller's.
			p.checkin(conn)
			opErr = err
			return nil, nil
		}
		p.checkin(conn)
		return nil, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return feederr.Wrap(feederr.ErrCircuitOpen, "cooling down for %s", p.cfg.BreakerCooldown)
		}
		return err
	}
	return opErr
}

// Download probes the candidate paths in order on one session and returns
// the first hit. All candidates missing yields ErrFileNotFound; a transport
// failure aborts probing immediately.
func (p *Pool) Download(ctx context.Context, paths []string) (data []byte, foundPath string, err error) {
	err = p.WithConnection(ctx, func(conn Conn) error {
		deadline := time.Now().Add(p.cfg.DownloadTimeout)
		for _, candidate := range paths {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return feederr.Wrap(feederr.ErrConnection, "download cancelled: %v", ctxErr)
			}
			if time.Now().After(deadline) {
				return feederr.Wrap(feederr.ErrConnection, "download timed out after %s", p.cfg.DownloadTimeout)
			}
			b, rerr := conn.Retrieve(candidate)
			if rerr == nil {
				data = b
				foundPath = candidate
				return nil
			}
			if errors.Is(rerr, feederr.ErrFileNotFound) {
				continue
			}
			return rerr
		}
		return feederr.Wrap(feederr.ErrFileNotFound, "exhausted %d candidate paths", len(paths))
	})
	return data, foundPath, err
}

// State exposes the breaker state for diagnostics.
func (p *Pool) State() gobreaker.State {
	return p.breaker.State()
}

// IdleCount returns the number of parked sessions.
func (p *Pool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// Close stops the sweeper and closes every idle session.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.stopCh)
		p.mu.Lock()
		idle := p.idle
		p.idle = nil
		p.mu.Unlock()
		for _, pc := range idle {
			_ = pc.conn.Close()
		}
		log.Info("[TraveltekPool] Closed")
	})
}

// checkout reuses the most recently parked session if it still answers,
// otherwise dials a fresh one.
func (p *Pool) checkout() (Conn, error) {
	for {
		p.mu.Lock()
		n := len(p.idle)
		if n == 0 {
			p.mu.Unlock()
			break
		}
		pc := p.idle[n-1]
		p.idle = p.idle[:n-1]
		p.mu.Unlock()

		if err := pc.conn.Ping(); err != nil {
			log.Debugf("[TraveltekPool] Dropping stale session: %v", err)
			_ = pc.conn.Close()
			continue
		}
		return pc.conn, nil
	}
	return p.dial(p.cfg)
}

func (p *Pool) checkin(conn Conn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idle = append(p.idle, &pooledConn{conn: conn, lastUsed: time.Now()})
}

// sweeper evicts sessions idle past IdleTimeout so the feed host does not
// accumulate half-dead control connections.
func (p *Pool) sweeper() {
	interval := p.cfg.IdleTimeout / 2
	if interval < 15*time.Second {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-p.cfg.IdleTimeout)
			var evicted []*pooledConn
			p.mu.Lock()
			kept := p.idle[:0]
			for _, pc := range p.idle {
				if pc.lastUsed.Before(cutoff) {
					evicted = append(evicted, pc)
				} else {
					kept = append(kept, pc)
				}
			}
			p.idle = kept
			p.mu.Unlock()

			for _, pc := range evicted {
				_ = pc.conn.Close()
			}
			if len(evicted) > 0 {
				log.Debugf("[TraveltekPool] Evicted %d idle sessions", len(evicted))
			}
		}
	}
}
