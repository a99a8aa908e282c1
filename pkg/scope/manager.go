package scope

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/snoekiede/poolkit/pkg/errors"
	"github.com/snoekiede/poolkit/pkg/logger"
	"github.com/snoekiede/poolkit/pkg/pool"
)

// Default timing values applied by Config.withDefaults.
const (
	DefaultScopeIdleTimeout = 30 * time.Minute
	DefaultCleanupInterval  = 5 * time.Minute
)

// Config controls scope lifecycle management.
type Config struct {
	// ScopeIdleTimeout is how long a scope may go unaccessed before a
	// cleanup sweep removes it. Defaults to DefaultScopeIdleTimeout.
	ScopeIdleTimeout time.Duration

	// CleanupInterval is the background sweep period. Defaults to
	// DefaultCleanupInterval.
	CleanupInterval time.Duration

	// MaxScopes triggers an opportunistic cleanup whenever the scope count
	// reaches it. Zero means unbounded.
	MaxScopes int

	// DisposePoolsOnCleanup closes a scope's pool when the idle sweep
	// removes it. Explicit Remove always closes the pool.
	DisposePoolsOnCleanup bool

	// Background starts the recurring cleanup goroutine.
	Background bool

	// OnScopeDisposed is invoked after a scope's pool has been torn down.
	OnScopeDisposed func(Key)

	// Logger overrides the global logger for this manager.
	Logger *zap.Logger
}

func (c Config) withDefaults() Config {
	if c.ScopeIdleTimeout <= 0 {
		c.ScopeIdleTimeout = DefaultScopeIdleTimeout
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	return c
}

// Stats is a snapshot of the manager's scope accounting.
type Stats struct {
	TotalScopesCreated     int64         `json:"total_scopes_created"`
	ActiveScopes           int           `json:"active_scopes"`
	PeakScopes             int64         `json:"peak_scopes"`
	ScopesCleanedUp        int64         `json:"scopes_cleaned_up"`
	AccessCounts           map[Key]int64 `json:"-"`
	AverageObjectsPerScope float64       `json:"average_objects_per_scope"`
}

type entry[T any] struct {
	pool        *pool.Pool[T]
	lastAccess  time.Time
	accessCount int64
}

// Manager owns a map of scope key to pool, constructing pools lazily through
// the supplied factory and reclaiming scopes that sit idle. All methods are
// safe for concurrent use.
type Manager[T any] struct {
	cfg     Config
	newPool func(Key) (*pool.Pool[T], error)
	log     *zap.Logger

	mu      sync.Mutex
	entries map[Key]*entry[T]
	closed  bool

	created int64
	cleaned int64
	peak    int64

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

// NewManager constructs a scope manager whose pools are built by newPool,
// invoked at most once per key under normal contention.
func NewManager[T any](cfg Config, newPool func(Key) (*pool.Pool[T], error)) (*Manager[T], error) {
	if newPool == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "scope manager requires a pool factory")
	}
	cfg = cfg.withDefaults()
	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}
	m := &Manager[T]{
		cfg:     cfg,
		newPool: newPool,
		log:     log,
		entries: make(map[Key]*entry[T]),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	if cfg.Background {
		m.startOnce.Do(func() { go m.run() })
	}
	return m, nil
}

// GetOrCreate returns the pool for key, constructing it on first access.
// Requesting the same key again returns the same pool instance. When the
// scope count has reached MaxScopes, an idle cleanup runs opportunistically
// before the new scope is admitted.
func (m *Manager[T]) GetOrCreate(key Key) (*pool.Pool[T], error) {
	if err := key.Validate(); err != nil {
		return nil, err
	}

	var reclaimed map[Key]*entry[T]
	defer func() {
		// Runs after the lock is released.
		for k, e := range reclaimed {
			m.disposeScope(k, e, m.cfg.DisposePoolsOnCleanup)
		}
	}()

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, errors.New(errors.ErrorTypeDisposed, "scope manager is disposed")
	}

	now := time.Now()
	if e, ok := m.entries[key]; ok {
		e.lastAccess = now
		e.accessCount++
		return e.pool, nil
	}

	if m.cfg.MaxScopes > 0 && len(m.entries) >= m.cfg.MaxScopes {
		reclaimed = m.cleanupLocked(now)
	}

	p, err := m.newPool(key)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFactory, "scope pool construction failed")
	}
	m.entries[key] = &entry[T]{pool: p, lastAccess: now, accessCount: 1}
	m.created++
	if n := int64(len(m.entries)); n > m.peak {
		m.peak = n
	}
	m.log.Debug("scope created", zap.String("scope", key.String()))
	return p, nil
}

// Resolve runs the resolver against ctx and returns the pool for the
// resolved key.
func (m *Manager[T]) Resolve(ctx context.Context, r Resolver) (*pool.Pool[T], error) {
	if r == nil {
		r = Ambient()
	}
	key, err := r(ctx)
	if err != nil {
		return nil, err
	}
	return m.GetOrCreate(key)
}

// Remove explicitly tears down a scope: its pool is closed and the
// on-disposed callback fires. Removing an unknown key is a no-op.
func (m *Manager[T]) Remove(key Key) error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return errors.New(errors.ErrorTypeDisposed, "scope manager is disposed")
	}
	e, ok := m.entries[key]
	if ok {
		delete(m.entries, key)
		m.cleaned++
	}
	m.mu.Unlock()

	if !ok {
		return nil
	}
	m.disposeScope(key, e, true)
	return nil
}

// Cleanup removes every scope whose last access is older than
// ScopeIdleTimeout and returns how many were removed.
func (m *Manager[T]) Cleanup() int {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0
	}
	removed := m.cleanupLocked(time.Now())
	m.mu.Unlock()

	for key, e := range removed {
		m.disposeScope(key, e, m.cfg.DisposePoolsOnCleanup)
	}
	return len(removed)
}

// cleanupLocked unlinks idle entries and returns them for disposal outside
// the lock. Caller holds m.mu.
func (m *Manager[T]) cleanupLocked(now time.Time) map[Key]*entry[T] {
	removed := make(map[Key]*entry[T])
	for key, e := range m.entries {
		if now.Sub(e.lastAccess) >= m.cfg.ScopeIdleTimeout {
			removed[key] = e
			delete(m.entries, key)
			m.cleaned++
		}
	}
	return removed
}

func (m *Manager[T]) disposeScope(key Key, e *entry[T], closePool bool) {
	if closePool {
		if err := e.pool.Close(); err != nil {
			m.log.Warn("scope pool close failed",
				zap.String("scope", key.String()), zap.Error(err))
		}
	}
	if m.cfg.OnScopeDisposed != nil {
		m.cfg.OnScopeDisposed(key)
	}
	m.log.Debug("scope disposed", zap.String("scope", key.String()))
}

// Stats returns a snapshot of the manager's accounting, including per-scope
// access counts and the average object count across live scopes.
func (m *Manager[T]) Stats() Stats {
	m.mu.Lock()
	s := Stats{
		TotalScopesCreated: m.created,
		ActiveScopes:       len(m.entries),
		PeakScopes:         m.peak,
		ScopesCleanedUp:    m.cleaned,
		AccessCounts:       make(map[Key]int64, len(m.entries)),
	}
	pools := make([]*pool.Pool[T], 0, len(m.entries))
	for key, e := range m.entries {
		s.AccessCounts[key] = e.accessCount
		pools = append(pools, e.pool)
	}
	m.mu.Unlock()

	if len(pools) > 0 {
		total := 0
		for _, p := range pools {
			total += p.AvailableCount() + p.ActiveCount()
		}
		s.AverageObjectsPerScope = float64(total) / float64(len(pools))
	}
	return s
}

// ActiveScopes returns the number of live scopes.
func (m *Manager[T]) ActiveScopes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

// Close tears down every scope's pool and poisons the manager: all
// subsequent operations fail with a disposed error. Close is idempotent.
func (m *Manager[T]) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	remaining := m.entries
	m.entries = make(map[Key]*entry[T])
	m.mu.Unlock()

	m.stopOnce.Do(func() { close(m.stop) })
	if m.cfg.Background {
		<-m.done
	}

	for key, e := range remaining {
		m.disposeScope(key, e, true)
	}
	m.log.Info("scope manager closed", zap.Int("scopes_disposed", len(remaining)))
	return nil
}

func (m *Manager[T]) run() {
	defer close(m.done)
	ticker := time.NewTicker(m.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.stop:
			return
		case <-ticker.C:
			m.Cleanup()
		}
	}
}
