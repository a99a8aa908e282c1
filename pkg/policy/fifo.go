package policy

import "sync"

// Fifo is a queue-ordered policy: TryTake returns the oldest added item.
type Fifo[I comparable] struct {
	mu    sync.Mutex
	items []I
	head  int
}

// NewFIFO creates an empty queue-ordered policy.
func NewFIFO[I comparable]() *Fifo[I] {
	return &Fifo[I]{}
}

// Add appends an item to the tail of the queue.
func (f *Fifo[I]) Add(item I) error {
	var zero I
	if item == zero {
		return errNilItem()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = append(f.items, item)
	return nil
}

// TryTake removes the item at the head of the queue.
func (f *Fifo[I]) TryTake() (I, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.head >= len(f.items) {
		var zero I
		return zero, false
	}
	item := f.items[f.head]
	var zero I
	f.items[f.head] = zero
	f.head++
	// Compact once the dead prefix dominates the backing array.
	if f.head > 32 && f.head*2 >= len(f.items) {
		f.items = append(f.items[:0], f.items[f.head:]...)
		f.head = 0
	}
	return item, true
}

// Len returns the number of queued items.
func (f *Fifo[I]) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items) - f.head
}

// Clear removes all items.
func (f *Fifo[I]) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items = nil
	f.head = 0
}

// Snapshot returns the items from head to tail.
func (f *Fifo[I]) Snapshot() []I {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]I, len(f.items)-f.head)
	copy(out, f.items[f.head:])
	return out
}

// RemoveWhere removes up to max matching items, preserving queue order of the
// rest.
func (f *Fifo[I]) RemoveWhere(pred func(I) bool, max int) []I {
	f.mu.Lock()
	defer f.mu.Unlock()
	var removed []I
	kept := make([]I, 0, len(f.items)-f.head)
	for _, item := range f.items[f.head:] {
		if (max <= 0 || len(removed) < max) && pred(item) {
			removed = append(removed, item)
			continue
		}
		kept = append(kept, item)
	}
	f.items = kept
	f.head = 0
	return removed
}
