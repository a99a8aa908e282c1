package policy

import "sync"

// Lifo is a stack-ordered policy: TryTake returns the most recently added
// item.
type Lifo[I comparable] struct {
	mu    sync.Mutex
	items []I
}

// NewLIFO creates an empty stack-ordered policy.
func NewLIFO[I comparable]() *Lifo[I] {
	return &Lifo[I]{}
}

// Add pushes an item onto the stack.
func (l *Lifo[I]) Add(item I) error {
	var zero I
	if item == zero {
		return errNilItem()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, item)
	return nil
}

// TryTake pops the most recently added item.
func (l *Lifo[I]) TryTake() (I, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.items) == 0 {
		var zero I
		return zero, false
	}
	last := len(l.items) - 1
	item := l.items[last]
	var zero I
	l.items[last] = zero
	l.items = l.items[:last]
	return item, true
}

// Len returns the number of stacked items.
func (l *Lifo[I]) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.items)
}

// Clear removes all items.
func (l *Lifo[I]) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = nil
}

// Snapshot returns the items from bottom of the stack to top.
func (l *Lifo[I]) Snapshot() []I {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]I, len(l.items))
	copy(out, l.items)
	return out
}

// RemoveWhere removes up to max matching items, preserving stack order of the
// rest.
func (l *Lifo[I]) RemoveWhere(pred func(I) bool, max int) []I {
	l.mu.Lock()
	defer l.mu.Unlock()
	var removed []I
	kept := l.items[:0]
	for _, item := range l.items {
		if (max <= 0 || len(removed) < max) && pred(item) {
			removed = append(removed, item)
			continue
		}
		kept = append(kept, item)
	}
	// Zero the tail so removed items do not linger in the backing array.
	var zero I
	for i := len(kept); i < len(l.items); i++ {
		l.items[i] = zero
	}
	l.items = kept
	return removed
}
