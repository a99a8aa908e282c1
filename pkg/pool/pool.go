// Package pool provides the concurrent pooling core of poolkit: a typed pool
// that lends objects to callers under bounded capacity, with a pluggable
// retrieval order, validation on return, optional time-based eviction, and a
// statistics surface for health checks and metric exporters.
//
// The central correctness property is single ownership: two concurrent
// acquires can never be handed the same underlying object. The pool composes
// active/available membership changes atomically per operation; the retrieval
// policy manages its own internal synchronization on top of that.
//
// Example usage:
//
//	p, err := pool.New(pool.Config[*Conn]{
//	    MaxPoolSize:      16,
//	    MaxActiveObjects: 8,
//	    Policy:           policy.FIFO,
//	    Factory:          dial,
//	})
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	guard, err := p.Acquire()
//	if err != nil {
//	    return err
//	}
//	defer guard.Release()
//	use(guard.Value())
package pool

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/snoekiede/poolkit/pkg/errors"
	"github.com/snoekiede/poolkit/pkg/logger"
	"github.com/snoekiede/poolkit/pkg/policy"
)

// Pool is a bounded, concurrent object pool over values of type T.
// All methods are safe for concurrent use.
type Pool[T any] struct {
	cfg  Config[T]
	log  *zap.Logger
	pol  policy.Policy[*PooledObject[T]]
	evic *evictor[T]

	mu     sync.Mutex
	active map[*PooledObject[T]]struct{}
	closed bool

	stats struct {
		created     int64
		discarded   int64
		retrieved   int64
		returned    int64
		peakActive  int64
		emptyEvents int64
	}
}

// discard reasons, used for logging and metric labels.
const (
	discardValidation = "validation"
	discardCapacity   = "capacity"
	discardExpired    = "expired"
	discardClosed     = "closed"
)

// New constructs a pool from cfg, pre-filled with the given initial objects.
// Providing more initial objects than MaxPoolSize is a configuration error,
// as is selecting the priority policy without a selector. A pool with a
// Factory grows on demand up to its capacity limits; without one it is fixed
// to the initial objects.
func New[T any](cfg Config[T], initial ...T) (*Pool[T], error) {
	cfg = cfg.withDefaults()
	if err := cfg.validate(len(initial)); err != nil {
		return nil, err
	}

	opts := policy.Options[*PooledObject[T]]{}
	if cfg.Priority != nil {
		selector := cfg.Priority
		opts.Priority = func(obj *PooledObject[T]) int { return selector(obj.Value) }
	}
	pol, err := policy.New(cfg.Policy, opts)
	if err != nil {
		return nil, err
	}

	log := cfg.Logger
	if log == nil {
		log = logger.Get()
	}
	log = log.With(zap.String("pool", cfg.Name))

	p := &Pool[T]{
		cfg:    cfg,
		log:    log,
		pol:    pol,
		active: make(map[*PooledObject[T]]struct{}),
	}

	now := time.Now()
	for _, value := range initial {
		if err := pol.Add(newPooledObject(value, now)); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to seed pool")
		}
	}
	atomic.AddInt64(&p.stats.created, int64(len(initial)))

	if cfg.Eviction.Policy != EvictionNone {
		p.evic = newEvictor(p)
		if cfg.Eviction.Background {
			p.evic.start()
		}
	}

	p.updateGauges()
	return p, nil
}

// Name returns the pool's label used in logs and metrics.
func (p *Pool[T]) Name() string { return p.cfg.Name }

// Acquire borrows an object from the pool and returns a Guard bound to it.
// It fails with an exhausted error when MaxActiveObjects are already on loan,
// and with an unavailable error when a fixed pool has nothing left to hand
// out. Dynamic pools fall back to the factory instead.
func (p *Pool[T]) Acquire() (*Guard[T], error) {
	g, err := p.acquire()
	observeAcquire(p.cfg.Name, err)
	return g, err
}

// TryAcquire is the non-raising variant of Acquire: it reports false for the
// expected exhausted and empty-pool conditions instead of returning an error.
// Unexpected failures (factory errors, disposed pool) are logged and also
// reported as false.
func (p *Pool[T]) TryAcquire() (*Guard[T], bool) {
	g, err := p.acquire()
	if err != nil {
		if !errors.IsType(err, errors.ErrorTypeExhausted) && !errors.IsType(err, errors.ErrorTypeUnavailable) {
			p.log.Debug("try-acquire failed", zap.Error(err))
		}
		return nil, false
	}
	observeAcquire(p.cfg.Name, nil)
	return g, true
}

// AcquireWait repeatedly attempts to acquire until it succeeds, the timeout
// elapses, or ctx is cancelled. A non-positive timeout falls back to the
// configured DefaultTimeout. Between attempts the goroutine suspends for a
// fixed short interval; cancellation and the deadline are re-checked on every
// iteration. Timeout and cancellation surface as distinct error kinds so
// callers can tell "ran out of time" apart from "caller gave up".
func (p *Pool[T]) AcquireWait(ctx context.Context, timeout time.Duration) (*Guard[T], error) {
	if timeout <= 0 {
		timeout = p.cfg.DefaultTimeout
	}
	start := time.Now()
	deadline := start.Add(timeout)

	for {
		g, err := p.acquire()
		if err == nil {
			acquireWaitSeconds.WithLabelValues(p.cfg.Name).Observe(time.Since(start).Seconds())
			observeAcquire(p.cfg.Name, nil)
			return g, nil
		}
		if !errors.IsRetryable(err) {
			observeAcquire(p.cfg.Name, err)
			return nil, err
		}

		select {
		case <-ctx.Done():
			err := errors.Wrap(ctx.Err(), errors.ErrorTypeCancelled, "acquire cancelled")
			observeAcquire(p.cfg.Name, err)
			return nil, err
		default:
		}
		if !time.Now().Before(deadline) {
			err := errors.Newf(errors.ErrorTypeTimeout, "no object acquired within %v", timeout)
			observeAcquire(p.cfg.Name, err)
			return nil, err
		}

		select {
		case <-ctx.Done():
			err := errors.Wrap(ctx.Err(), errors.ErrorTypeCancelled, "acquire cancelled")
			observeAcquire(p.cfg.Name, err)
			return nil, err
		case <-time.After(acquirePollInterval):
		}
	}
}

// With acquires an object, invokes fn with its value, and releases it on
// every exit path, including panics. It waits up to the configured
// DefaultTimeout for an object to become available.
func (p *Pool[T]) With(ctx context.Context, fn func(T) error) error {
	g, err := p.AcquireWait(ctx, 0)
	if err != nil {
		return err
	}
	defer g.Release()
	return fn(g.Value())
}

// AcquireMatching borrows the first available object whose value satisfies
// pred. The scan and the removal are separate steps over the policy
// structure, so under concurrent acquisition this is best-effort: when the
// matching object is taken by another caller between the two steps, one
// retry pass is made and then a no-match error is returned rather than a
// different object. The search may perturb the retrieval order of unrelated
// items.
func (p *Pool[T]) AcquireMatching(pred func(T) bool) (*Guard[T], error) {
	g, err := p.acquireMatching(pred)
	observeAcquire(p.cfg.Name, err)
	return g, err
}

// TryAcquireMatching is the non-raising variant of AcquireMatching.
func (p *Pool[T]) TryAcquireMatching(pred func(T) bool) (*Guard[T], bool) {
	g, err := p.acquireMatching(pred)
	if err != nil {
		return nil, false
	}
	observeAcquire(p.cfg.Name, nil)
	return g, true
}

func (p *Pool[T]) acquire() (*Guard[T], error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errors.New(errors.ErrorTypeDisposed, "pool is disposed")
	}
	if len(p.active) >= p.cfg.MaxActiveObjects {
		return nil, errors.Newf(errors.ErrorTypeExhausted,
			"all %d objects are active", p.cfg.MaxActiveObjects)
	}

	obj, ok := p.takeUsable()
	if !ok {
		atomic.AddInt64(&p.stats.emptyEvents, 1)
		if p.cfg.Factory == nil {
			return nil, errors.New(errors.ErrorTypeUnavailable, "no objects available")
		}
		value, err := p.cfg.Factory()
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFactory, "object factory failed")
		}
		obj = newPooledObject(value, time.Now())
		atomic.AddInt64(&p.stats.created, 1)
	}

	p.checkOut(obj)
	return &Guard[T]{pool: p, obj: obj}, nil
}

func (p *Pool[T]) acquireMatching(pred func(T) bool) (*Guard[T], error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return nil, errors.New(errors.ErrorTypeDisposed, "pool is disposed")
	}
	if len(p.active) >= p.cfg.MaxActiveObjects {
		return nil, errors.Newf(errors.ErrorTypeExhausted,
			"all %d objects are active", p.cfg.MaxActiveObjects)
	}

	// One initial pass plus one retry, per the documented best-effort
	// contract.
	for attempt := 0; attempt < 2; attempt++ {
		matched := false
		for _, obj := range p.pol.Snapshot() {
			if pred(obj.Value) {
				matched = true
				break
			}
		}
		if !matched {
			break
		}

		// Drain until the match surfaces, pushing non-matches back.
		var match *PooledObject[T]
		kept := make([]*PooledObject[T], 0, p.pol.Len())
		for limit := p.pol.Len(); limit > 0; limit-- {
			obj, ok := p.pol.TryTake()
			if !ok {
				break
			}
			if match == nil && pred(obj.Value) {
				match = obj
				continue
			}
			kept = append(kept, obj)
		}
		for _, obj := range kept {
			_ = p.pol.Add(obj)
		}

		if match == nil {
			continue
		}
		if now := time.Now(); p.expired(match, now) {
			p.discardExpiredLocked(match, now)
			continue
		}
		p.checkOut(match)
		return &Guard[T]{pool: p, obj: match}, nil
	}

	return nil, errors.New(errors.ErrorTypeNoMatch, "no available object matches the predicate")
}

// takeUsable pulls objects off the policy until it finds one that has not
// expired under the eviction rules. Expired objects are discarded on the
// spot, counted as lazy evictions, and never handed out; this closes the
// staleness window between sweeps. Caller holds p.mu.
func (p *Pool[T]) takeUsable() (*PooledObject[T], bool) {
	now := time.Now()
	for {
		obj, ok := p.pol.TryTake()
		if !ok {
			return nil, false
		}
		if !p.expired(obj, now) {
			return obj, true
		}
		p.discardExpiredLocked(obj, now)
	}
}

// discardExpiredLocked counts a stale object pulled from the policy as a
// lazy eviction and discards it. Caller holds p.mu.
func (p *Pool[T]) discardExpiredLocked(obj *PooledObject[T], now time.Time) {
	p.evic.recordLazy(p.evic.classify(obj, now))
	p.discardLocked(obj, discardExpired)
}

func (p *Pool[T]) expired(obj *PooledObject[T], now time.Time) bool {
	return p.evic != nil && p.evic.classify(obj, now) != evictNone
}

// checkOut moves obj into the active set and updates statistics. Caller
// holds p.mu.
func (p *Pool[T]) checkOut(obj *PooledObject[T]) {
	obj.touch(time.Now())
	p.active[obj] = struct{}{}
	atomic.AddInt64(&p.stats.retrieved, 1)
	if n := int64(len(p.active)); n > atomic.LoadInt64(&p.stats.peakActive) {
		atomic.StoreInt64(&p.stats.peakActive, n)
	}
	p.updateGaugesLocked()
}

// releaseObject returns obj to the available side. Called by Guard.Release
// exactly once per guard.
func (p *Pool[T]) releaseObject(obj *PooledObject[T]) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		// The pool was disposed while the object was on loan; tear the
		// object down instead of resurrecting it.
		delete(p.active, obj)
		p.discardLocked(obj, discardClosed)
		return errors.New(errors.ErrorTypeDisposed, "pool is disposed")
	}

	if _, ok := p.active[obj]; !ok {
		return errors.New(errors.ErrorTypeNotInPool, "released object is not active in this pool")
	}
	delete(p.active, obj)

	if p.cfg.ValidateOnReturn && p.cfg.Validate != nil && !p.cfg.Validate(obj.Value) {
		p.discardLocked(obj, discardValidation)
		p.updateGaugesLocked()
		return nil
	}

	if p.pol.Len() >= p.cfg.MaxPoolSize {
		p.discardLocked(obj, discardCapacity)
		p.updateGaugesLocked()
		return nil
	}

	obj.touch(time.Now())
	if err := p.pol.Add(obj); err != nil {
		p.discardLocked(obj, discardCapacity)
		p.updateGaugesLocked()
		return nil
	}
	atomic.AddInt64(&p.stats.returned, 1)
	releasesTotal.WithLabelValues(p.cfg.Name).Inc()
	p.updateGaugesLocked()
	return nil
}

// discardLocked drops obj from the pool's accounting and tears down its
// resource when configured to. Disposal failures are logged, never
// propagated. Caller holds p.mu.
func (p *Pool[T]) discardLocked(obj *PooledObject[T], reason string) {
	atomic.AddInt64(&p.stats.discarded, 1)
	discardsTotal.WithLabelValues(p.cfg.Name, reason).Inc()
	dispose := p.cfg.DisposeOnDiscard || reason == discardClosed
	if reason == discardExpired {
		dispose = p.cfg.Eviction.DisposeEvicted
	}
	if dispose {
		if err := p.disposeValue(obj.Value); err != nil {
			p.log.Warn("object disposal failed",
				zap.String("reason", reason), zap.Error(err))
		}
	}
}

func (p *Pool[T]) disposeValue(value T) error {
	if p.cfg.Dispose != nil {
		return p.cfg.Dispose(value)
	}
	if closer, ok := any(value).(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// AvailableCount returns the authoritative size of the available set.
func (p *Pool[T]) AvailableCount() int {
	return p.pol.Len()
}

// ActiveCount returns the authoritative number of objects on loan.
func (p *Pool[T]) ActiveCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.active)
}

// Closed reports whether the pool has been disposed.
func (p *Pool[T]) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// EvictNow runs one eviction sweep immediately and returns the number of
// objects evicted. It fails with a config error when eviction is disabled,
// and with a disposed error after Close.
func (p *Pool[T]) EvictNow() (int, error) {
	if p.evic == nil {
		return 0, errors.New(errors.ErrorTypeConfig, "eviction is disabled for this pool")
	}
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return 0, errors.New(errors.ErrorTypeDisposed, "pool is disposed")
	}
	return p.evic.sweep(), nil
}

// EvictionStats returns eviction counters. The second result is false when
// eviction is disabled and the statistics are not applicable.
func (p *Pool[T]) EvictionStats() (EvictionStats, bool) {
	if p.evic == nil {
		return EvictionStats{}, false
	}
	return p.evic.snapshot(), true
}

// Close disposes the pool: the background evictor is stopped, every
// available object is torn down, and all subsequent operations fail with a
// disposed error. Objects still on loan are torn down as their guards are
// released. Close is idempotent; disposal failures are logged and do not
// abort the teardown.
func (p *Pool[T]) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	if p.evic != nil {
		p.evic.stopBackground()
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for {
		obj, ok := p.pol.TryTake()
		if !ok {
			break
		}
		p.discardLocked(obj, discardClosed)
	}
	p.updateGaugesLocked()
	p.log.Info("pool closed",
		zap.Int("still_active", len(p.active)),
		zap.Int64("total_created", atomic.LoadInt64(&p.stats.created)))
	return nil
}

func (p *Pool[T]) updateGauges() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.updateGaugesLocked()
}

func (p *Pool[T]) updateGaugesLocked() {
	activeObjects.WithLabelValues(p.cfg.Name).Set(float64(len(p.active)))
	availableObjects.WithLabelValues(p.cfg.Name).Set(float64(p.pol.Len()))
}
