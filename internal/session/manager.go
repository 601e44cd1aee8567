package session

import (
	"context"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/hcbookstore/storefront/internal/domain/address"
	"github.com/hcbookstore/storefront/internal/domain/catalog"
	"github.com/hcbookstore/storefront/internal/storage"
)

// ErrInvalidID is returned for a session id that is not a UUID.
var ErrInvalidID = errors.New("invalid session id")

// Deps are the remote services sessions talk to.
type Deps struct {
	Catalog      catalog.Catalog
	Directory    address.Directory
	SuggestDelay time.Duration
	SuggestLimit int
}

// Manager keeps live sessions in memory and rehydrates them from the KV on
// first access. The cart is re-read on every access, so processes sharing a
// KV serve the same cart. Sessions idle for longer than the idle timeout are
// evicted from memory; their persisted state stays in the KV.
type Manager struct {
	kv   storage.KV
	deps Deps
	idle time.Duration
	lg   *zap.Logger
	now  func() time.Time

	mu       sync.Mutex
	sessions map[string]*Session
	loads    singleflight.Group

	active metric.Int64UpDownCounter
}

// NewManager creates a Manager. A non-positive idle timeout defaults to 30m.
func NewManager(kv storage.KV, deps Deps, idle time.Duration, lg *zap.Logger, mp metric.MeterProvider) (*Manager, error) {
	if idle <= 0 {
		idle = 30 * time.Minute
	}
	active, err := mp.Meter("storefront/session").Int64UpDownCounter("storefront.sessions.active",
		metric.WithDescription("Sessions held in memory"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "sessions counter")
	}
	return &Manager{
		kv:       kv,
		deps:     deps,
		idle:     idle,
		lg:       lg,
		now:      time.Now,
		sessions: map[string]*Session{},
		active:   active,
	}, nil
}

// NewID returns a fresh session id.
func NewID() string {
	return uuid.NewString()
}

// ValidID reports whether id can name a session.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// Get returns the session id with its cart refreshed from the KV, creating
// the session on first access. Concurrent first requests for one id share a
// single load.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	now := m.now()

	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if ok {
		s.touch(now)
		s.Cart.Rehydrate(ctx)
		return s, nil
	}

	v, _, _ := m.loads.Do(id, func() (any, error) {
		m.mu.Lock()
		if s, ok := m.sessions[id]; ok {
			m.mu.Unlock()
			return s, nil
		}
		m.mu.Unlock()

		s := newSession(id, m.kv, m.deps)
		// Load outside the manager lock: the KV may be remote.
		restored := s.Cart.Rehydrate(context.WithoutCancel(ctx))
		s.touch(now)

		m.mu.Lock()
		m.sessions[id] = s
		m.mu.Unlock()
		m.active.Add(ctx, 1)

		m.lg.Debug("Session loaded",
			zap.String("session", id),
			zap.Bool("cart_restored", restored),
		)
		return s, nil
	})
	return v.(*Session), nil
}

// Len returns the number of sessions held in memory.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle for longer than the idle timeout and returns
// how many were evicted.
func (m *Manager) Sweep(ctx context.Context) int {
	now := m.now()

	m.mu.Lock()
	var evicted int
	for id, s := range m.sessions {
		if s.idleSince(now) > m.idle {
			delete(m.sessions, id)
			evicted++
		}
	}
	m.mu.Unlock()

	if evicted > 0 {
		m.active.Add(ctx, int64(-evicted))
		m.lg.Debug("Idle sessions evicted", zap.Int("count", evicted))
	}
	return evicted
}

// Run sweeps idle sessions periodically until ctx is done.
func (m *Manager) Run(ctx context.Context) error {
	interval := m.idle / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.Sweep(ctx)
		}
	}
}
