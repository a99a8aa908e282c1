package pool

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// EvictionStats reports the cumulative effect of eviction sweeps and lazy
// evictions on the acquire path.
type EvictionStats struct {
	TotalEvictions   int64         `json:"total_evictions"`
	TTLEvictions     int64         `json:"ttl_evictions"`
	IdleEvictions    int64         `json:"idle_evictions"`
	CustomEvictions  int64         `json:"custom_evictions"`
	EvictionRuns     int64         `json:"eviction_runs"`
	DisposalFailures int64         `json:"disposal_failures"`
	LastRun          time.Time     `json:"last_run"`
	LastRunDuration  time.Duration `json:"last_run_duration"`
}

type evictReason int

const (
	evictNone evictReason = iota
	evictTTL
	evictIdle
	evictCustom
)

func (r evictReason) String() string {
	switch r {
	case evictTTL:
		return "ttl"
	case evictIdle:
		return "idle"
	case evictCustom:
		return "custom"
	default:
		return "none"
	}
}

// evictor removes stale objects from a pool's available side. It never
// touches active objects: candidates are collected exclusively through the
// policy structure's own atomic primitives, and an object inside the policy
// is by invariant not on loan. The sweep mutex excludes the background timer
// and manual triggers from running the same pool's sweep concurrently, which
// would double-count evictions.
type evictor[T any] struct {
	pool *Pool[T]
	cfg  EvictionConfig[T]
	log  *zap.Logger

	sweepMu sync.Mutex

	total            int64
	ttl              int64
	idle             int64
	custom           int64
	runs             int64
	disposalFailures int64

	timesMu      sync.Mutex
	lastRun      time.Time
	lastDuration time.Duration

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	done      chan struct{}
}

func newEvictor[T any](p *Pool[T]) *evictor[T] {
	return &evictor[T]{
		pool: p,
		cfg:  p.cfg.Eviction,
		log:  p.log,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (e *evictor[T]) start() {
	e.startOnce.Do(func() {
		go e.run()
	})
}

func (e *evictor[T]) run() {
	defer close(e.done)
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-e.stop:
			return
		case <-ticker.C:
			e.sweep()
		}
	}
}

func (e *evictor[T]) stopBackground() {
	e.stopOnce.Do(func() {
		close(e.stop)
	})
	if e.cfg.Background {
		<-e.done
	}
}

// classify reports why obj should be evicted at the given instant, or
// evictNone when it should stay.
func (e *evictor[T]) classify(obj *PooledObject[T], now time.Time) evictReason {
	switch e.cfg.Policy {
	case EvictionTTL:
		if obj.age(now) >= e.cfg.TimeToLive {
			return evictTTL
		}
	case EvictionIdle:
		if obj.idle(now) >= e.cfg.IdleTimeout {
			return evictIdle
		}
	case EvictionCombined:
		if obj.age(now) >= e.cfg.TimeToLive {
			return evictTTL
		}
		if obj.idle(now) >= e.cfg.IdleTimeout {
			return evictIdle
		}
	case EvictionCustom:
		if e.cfg.Predicate(obj.Value, obj.Meta()) {
			return evictCustom
		}
	}
	return evictNone
}

// sweep runs one bounded eviction pass and returns the number of objects
// removed. Collection stops at MaxPerRun candidates, which bounds the pause
// the sweep imposes on the policy structure.
func (e *evictor[T]) sweep() int {
	e.sweepMu.Lock()
	defer e.sweepMu.Unlock()

	start := time.Now()
	removed := e.pool.pol.RemoveWhere(func(obj *PooledObject[T]) bool {
		return e.classify(obj, start) != evictNone
	}, e.cfg.MaxPerRun)

	for _, obj := range removed {
		reason := e.classify(obj, start)
		e.count(reason)
		atomic.AddInt64(&e.pool.stats.discarded, 1)
		if e.cfg.DisposeEvicted {
			if err := e.pool.disposeValue(obj.Value); err != nil {
				atomic.AddInt64(&e.disposalFailures, 1)
				e.log.Warn("evicted object disposal failed",
					zap.String("reason", reason.String()), zap.Error(err))
			}
		}
	}

	atomic.AddInt64(&e.runs, 1)
	elapsed := time.Since(start)
	e.timesMu.Lock()
	e.lastRun = start
	e.lastDuration = elapsed
	e.timesMu.Unlock()

	e.pool.updateGauges()
	if len(removed) > 0 {
		e.log.Debug("eviction sweep completed",
			zap.Int("evicted", len(removed)),
			zap.Duration("elapsed", elapsed))
	}
	return len(removed)
}

// recordLazy counts an expired object discarded on the acquire path as an
// eviction, so the statistics reflect every stale object removed regardless
// of which mechanism caught it.
func (e *evictor[T]) recordLazy(reason evictReason) {
	e.count(reason)
}

func (e *evictor[T]) count(reason evictReason) {
	atomic.AddInt64(&e.total, 1)
	switch reason {
	case evictTTL:
		atomic.AddInt64(&e.ttl, 1)
	case evictIdle:
		atomic.AddInt64(&e.idle, 1)
	case evictCustom:
		atomic.AddInt64(&e.custom, 1)
	}
	evictionsTotal.WithLabelValues(e.pool.cfg.Name, reason.String()).Inc()
}

func (e *evictor[T]) snapshot() EvictionStats {
	e.timesMu.Lock()
	lastRun, lastDuration := e.lastRun, e.lastDuration
	e.timesMu.Unlock()
	return EvictionStats{
		TotalEvictions:   atomic.LoadInt64(&e.total),
		TTLEvictions:     atomic.LoadInt64(&e.ttl),
		IdleEvictions:    atomic.LoadInt64(&e.idle),
		CustomEvictions:  atomic.LoadInt64(&e.custom),
		EvictionRuns:     atomic.LoadInt64(&e.runs),
		DisposalFailures: atomic.LoadInt64(&e.disposalFailures),
		LastRun:          lastRun,
		LastRunDuration:  lastDuration,
	}
}
