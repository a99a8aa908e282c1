package pool

import (
	"fmt"
	"sync/atomic"
)

// Stats is a point-in-time copy of the pool's cumulative counters. Counter
// values are maintained with atomics and are eventually consistent with each
// other; capacity enforcement never reads them, only the authoritative
// structure sizes. At any quiescent observation point the accounting
// identity holds:
//
//	CurrentAvailable + CurrentActive == TotalCreated - TotalDiscarded
type Stats struct {
	TotalCreated     int64 `json:"total_created"`
	TotalDiscarded   int64 `json:"total_discarded"`
	TotalRetrieved   int64 `json:"total_retrieved"`
	TotalReturned    int64 `json:"total_returned"`
	PeakActive       int64 `json:"peak_active"`
	PoolEmptyEvents  int64 `json:"pool_empty_events"`
	CurrentActive    int   `json:"current_active"`
	CurrentAvailable int   `json:"current_available"`
}

// Diagnostics is the read-only surface consumed by health-check
// collaborators.
type Diagnostics struct {
	TotalRetrieved   int64 `json:"total_retrieved"`
	TotalReturned    int64 `json:"total_returned"`
	PeakActive       int64 `json:"peak_active"`
	PoolEmptyEvents  int64 `json:"pool_empty_events"`
	CurrentActive    int   `json:"current_active"`
	CurrentAvailable int   `json:"current_available"`
}

// Stats returns a snapshot of the pool's counters and current sizes.
func (p *Pool[T]) Stats() Stats {
	p.mu.Lock()
	active := len(p.active)
	p.mu.Unlock()
	return Stats{
		TotalCreated:     atomic.LoadInt64(&p.stats.created),
		TotalDiscarded:   atomic.LoadInt64(&p.stats.discarded),
		TotalRetrieved:   atomic.LoadInt64(&p.stats.retrieved),
		TotalReturned:    atomic.LoadInt64(&p.stats.returned),
		PeakActive:       atomic.LoadInt64(&p.stats.peakActive),
		PoolEmptyEvents:  atomic.LoadInt64(&p.stats.emptyEvents),
		CurrentActive:    active,
		CurrentAvailable: p.pol.Len(),
	}
}

// Diagnostics returns the diagnostic counters for health reporting.
func (p *Pool[T]) Diagnostics() Diagnostics {
	s := p.Stats()
	return Diagnostics{
		TotalRetrieved:   s.TotalRetrieved,
		TotalReturned:    s.TotalReturned,
		PeakActive:       s.PeakActive,
		PoolEmptyEvents:  s.PoolEmptyEvents,
		CurrentActive:    s.CurrentActive,
		CurrentAvailable: s.CurrentAvailable,
	}
}

// Utilization returns the active-object utilization as a percentage of
// MaxActiveObjects.
func (p *Pool[T]) Utilization() float64 {
	if p.cfg.MaxActiveObjects == 0 {
		return 0
	}
	return float64(p.ActiveCount()) / float64(p.cfg.MaxActiveObjects) * 100
}

// IsHealthy reports whether the pool can currently serve acquires: it has
// not been disposed and is not fully saturated with nothing available.
func (p *Pool[T]) IsHealthy() bool {
	p.mu.Lock()
	closed := p.closed
	active := len(p.active)
	p.mu.Unlock()
	if closed {
		return false
	}
	if active >= p.cfg.MaxActiveObjects && p.pol.Len() == 0 && p.cfg.Factory == nil {
		return false
	}
	return active < p.cfg.MaxActiveObjects || p.pol.Len() > 0
}

// Warnings returns human-readable conditions worth surfacing on a health
// endpoint. An empty slice means nothing noteworthy.
func (p *Pool[T]) Warnings() []string {
	var warnings []string
	if p.Closed() {
		warnings = append(warnings, "pool is disposed")
		return warnings
	}
	if util := p.Utilization(); util >= 90 {
		warnings = append(warnings, fmt.Sprintf("utilization at %.1f%% of max active objects", util))
	}
	if empty := atomic.LoadInt64(&p.stats.emptyEvents); empty > 0 && p.cfg.Factory == nil {
		warnings = append(warnings, fmt.Sprintf("%d acquires found the pool empty", empty))
	}
	if es, ok := p.EvictionStats(); ok && es.DisposalFailures > 0 {
		warnings = append(warnings, fmt.Sprintf("%d evicted objects failed to dispose", es.DisposalFailures))
	}
	return warnings
}
