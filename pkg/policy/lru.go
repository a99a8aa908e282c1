package policy

import (
	"sync"
	"time"
)

// Lru takes the item that has been sitting in the policy the longest since
// it was last added. Each Add stamps the item with the current time; TryTake
// scans for the minimum stamp. The O(n) scan is intentional: pools are small
// to moderate and a secondary index is not worth the bookkeeping.
type Lru[I comparable] struct {
	mu      sync.Mutex
	entries []lruEntry[I]
	now     func() time.Time
}

type lruEntry[I any] struct {
	item     I
	lastUsed time.Time
}

// NewLRU creates an empty least-recently-used policy.
func NewLRU[I comparable]() *Lru[I] {
	return &Lru[I]{now: time.Now}
}

// Add inserts an item stamped with the current time.
func (l *Lru[I]) Add(item I) error {
	var zero I
	if item == zero {
		return errNilItem()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, lruEntry[I]{item: item, lastUsed: l.now()})
	return nil
}

// TryTake removes the item with the oldest stamp.
func (l *Lru[I]) TryTake() (I, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.entries) == 0 {
		var zero I
		return zero, false
	}
	oldest := 0
	for i := 1; i < len(l.entries); i++ {
		if l.entries[i].lastUsed.Before(l.entries[oldest].lastUsed) {
			oldest = i
		}
	}
	item := l.entries[oldest].item
	l.entries = append(l.entries[:oldest], l.entries[oldest+1:]...)
	return item, true
}

// Len returns the number of tracked items.
func (l *Lru[I]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear removes all items.
func (l *Lru[I]) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}

// Snapshot returns the items in insertion order.
func (l *Lru[I]) Snapshot() []I {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]I, len(l.entries))
	for i, e := range l.entries {
		out[i] = e.item
	}
	return out
}

// RemoveWhere removes up to max matching items, keeping the stamps of the
// rest untouched.
func (l *Lru[I]) RemoveWhere(pred func(I) bool, max int) []I {
	l.mu.Lock()
	defer l.mu.Unlock()
	var removed []I
	kept := l.entries[:0]
	for _, e := range l.entries {
		if (max <= 0 || len(removed) < max) && pred(e.item) {
			removed = append(removed, e.item)
			continue
		}
		kept = append(kept, e)
	}
	l.entries = kept
	return removed
}
