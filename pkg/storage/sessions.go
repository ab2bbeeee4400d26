package storage

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/simplelru"
	"github.com/jonboulle/clockwork"

	"github.com/vinay10949/chaum-pedersen-auth/pkg/log"
	"github.com/vinay10949/chaum-pedersen-auth/pkg/metrics"
)

const (
	// DefaultSessionTTL is how long a challenge stays answerable
	DefaultSessionTTL = 2 * time.Minute

	// DefaultMaxPending bounds the number of outstanding challenges
	DefaultMaxPending = 100000

	// DefaultSweepInterval is how often expired sessions are purged
	DefaultSweepInterval = 30 * time.Second
)

// SessionOptions configures a SessionRegistry.
type SessionOptions struct {
	TTL           time.Duration
	MaxPending    int
	SweepInterval time.Duration
	Clock         clockwork.Clock
	Logger        log.Logger
}

func (o *SessionOptions) setDefaults() {
	if o.TTL <= 0 {
		o.TTL = DefaultSessionTTL
	}
	if o.MaxPending <= 0 {
		o.MaxPending = DefaultMaxPending
	}
	if o.Clock == nil {
		o.Clock = clockwork.NewRealClock()
	}
	if o.Logger == nil {
		o.Logger = log.DefaultLogger()
	}
}

// SessionRegistry keeps pending sessions in insertion order, bounded in
// size. When full, the oldest session is evicted. Sessions older than the
// TTL are dropped on access and by a periodic sweep.
type SessionRegistry struct {
	mu  sync.Mutex
	lru *simplelru.LRU

	ttl   time.Duration
	clock clockwork.Clock
	log   log.Logger

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewSessionRegistry returns a registry and starts its sweeper when
// opts.SweepInterval is positive.
func NewSessionRegistry(opts SessionOptions) (*SessionRegistry, error) {
	opts.setDefaults()

	cache, err := simplelru.NewLRU(opts.MaxPending, nil)
	if err != nil {
		return nil, err
	}

	r := &SessionRegistry{
		lru:   cache,
		ttl:   opts.TTL,
		clock: opts.Clock,
		log:   opts.Logger.Named("sessions"),
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}

	if opts.SweepInterval > 0 {
		go r.sweepLoop(opts.SweepInterval)
	} else {
		close(r.done)
	}

	return r, nil
}

func (r *SessionRegistry) sweepLoop(interval time.Duration) {
	defer close(r.done)

	ticker := r.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.Chan():
			n, _ := r.CleanupExpiredSessions()
			if n > 0 {
				r.log.Debugw("swept expired sessions", "count", n)
			}
		case <-r.stop:
			return
		}
	}
}

// CreateSession inserts a copy of session, stamped with the current time.
func (r *SessionRegistry) CreateSession(session *PendingSession) error {
	entry := session.clone()
	entry.CreatedAt = r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.lru.Contains(entry.ID) {
		return ErrSessionExists
	}
	if evicted := r.lru.Add(entry.ID, entry); evicted {
		metrics.SessionsEvicted.Inc()
	}
	metrics.PendingSessions.Set(float64(r.lru.Len()))

	session.CreatedAt = entry.CreatedAt
	return nil
}

// TakeSession removes the session in the same critical section that finds
// it, so concurrent callers with the same ID see exactly one success.
func (r *SessionRegistry) TakeSession(id string) (*PendingSession, error) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	v, ok := r.lru.Peek(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	r.lru.Remove(id)
	metrics.PendingSessions.Set(float64(r.lru.Len()))

	session := v.(*PendingSession)
	if r.expired(session, now) {
		metrics.SessionsExpired.Inc()
		return nil, ErrSessionNotFound
	}
	return session, nil
}

// CleanupExpiredSessions drops expired sessions from the oldest end.
func (r *SessionRegistry) CleanupExpiredSessions() (int, error) {
	now := r.clock.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for {
		_, v, ok := r.lru.GetOldest()
		if !ok || !r.expired(v.(*PendingSession), now) {
			break
		}
		r.lru.RemoveOldest()
		removed++
	}

	if removed > 0 {
		metrics.SessionsExpired.Add(float64(removed))
		metrics.PendingSessions.Set(float64(r.lru.Len()))
	}
	return removed, nil
}

// PendingSessions returns the number of sessions held, expired or not.
func (r *SessionRegistry) PendingSessions() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lru.Len()
}


// Close stops the sweeper and waits for it to exit.
func (r *SessionRegistry) Close() error {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	<-r.done
	return nil
}

func (r *SessionRegistry) expired(s *PendingSession, now time.Time) bool {
	return now.Sub(s.CreatedAt) > r.ttl
}
