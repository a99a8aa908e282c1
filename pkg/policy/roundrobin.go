package policy

import "sync"

// RoundRobinPolicy hands items out in arrival order. Taken items do not
// rotate back automatically: an item only rejoins the tail through an
// explicit subsequent Add, which in pool usage happens when the caller
// releases it. A single instance therefore never self-cycles while on loan.
type RoundRobinPolicy[I comparable] struct {
	mu    sync.Mutex
	items []I
}

// NewRoundRobin creates an empty round-robin policy.
func NewRoundRobin[I comparable]() *RoundRobinPolicy[I] {
	return &RoundRobinPolicy[I]{}
}

// Add appends an item to the tail of the rotation.
func (r *RoundRobinPolicy[I]) Add(item I) error {
	var zero I
	if item == zero {
		return errNilItem()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, item)
	return nil
}

// TryTake removes the item at the head of the rotation.
func (r *RoundRobinPolicy[I]) TryTake() (I, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		var zero I
		return zero, false
	}
	item := r.items[0]
	copy(r.items, r.items[1:])
	var zero I
	r.items[len(r.items)-1] = zero
	r.items = r.items[:len(r.items)-1]
	return item, true
}

// Len returns the number of items in the rotation.
func (r *RoundRobinPolicy[I]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

// Clear removes all items.
func (r *RoundRobinPolicy[I]) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}

// Snapshot returns the items from head to tail.
func (r *RoundRobinPolicy[I]) Snapshot() []I {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]I, len(r.items))
	copy(out, r.items)
	return out
}

// RemoveWhere removes up to max matching items, preserving rotation order of
// the rest.
func (r *RoundRobinPolicy[I]) RemoveWhere(pred func(I) bool, max int) []I {
	r.mu.Lock()
	defer r.mu.Unlock()
	var removed []I
	kept := r.items[:0]
	for _, item := range r.items {
		if (max <= 0 || len(removed) < max) && pred(item) {
			removed = append(removed, item)
			continue
		}
		kept = append(kept, item)
	}
	var zero I
	for i := len(kept); i < len(r.items); i++ {
		r.items[i] = zero
	}
	r.items = kept
	return removed
}
