package policy

import (
	"container/heap"
	"sync"

	"github.com/snoekiede/poolkit/pkg/errors"
)

// PriorityPolicy is a max-heap policy: TryTake returns the item with the
// highest value under the configured selector. Ties between equal priorities
// are broken arbitrarily.
type PriorityPolicy[I comparable] struct {
	mu       sync.Mutex
	selector func(I) int
	heap     itemHeap[I]
}

// NewPriority creates a priority policy using the given selector. A nil
// selector is a configuration error.
func NewPriority[I comparable](selector func(I) int) (*PriorityPolicy[I], error) {
	if selector == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "priority policy requires a priority selector")
	}
	return &PriorityPolicy[I]{selector: selector}, nil
}

// Add inserts an item into the heap.
func (p *PriorityPolicy[I]) Add(item I) error {
	var zero I
	if item == zero {
		return errNilItem()
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	heap.Push(&p.heap, heapEntry[I]{item: item, priority: p.selector(item)})
	return nil
}

// TryTake removes the highest-priority item.
func (p *PriorityPolicy[I]) TryTake() (I, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.heap.Len() == 0 {
		var zero I
		return zero, false
	}
	entry := heap.Pop(&p.heap).(heapEntry[I])
	return entry.item, true
}

// Len returns the number of heaped items.
func (p *PriorityPolicy[I]) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.heap.Len()
}

// Clear removes all items.
func (p *PriorityPolicy[I]) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.heap = nil
}

// Snapshot returns the items in heap-internal order.
func (p *PriorityPolicy[I]) Snapshot() []I {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]I, len(p.heap))
	for i, entry := range p.heap {
		out[i] = entry.item
	}
	return out
}

// RemoveWhere removes up to max matching items and re-establishes the heap
// over the remainder.
func (p *PriorityPolicy[I]) RemoveWhere(pred func(I) bool, max int) []I {
	p.mu.Lock()
	defer p.mu.Unlock()
	var removed []I
	kept := p.heap[:0]
	for _, entry := range p.heap {
		if (max <= 0 || len(removed) < max) && pred(entry.item) {
			removed = append(removed, entry.item)
			continue
		}
		kept = append(kept, entry)
	}
	p.heap = kept
	heap.Init(&p.heap)
	return removed
}

type heapEntry[I any] struct {
	item     I
	priority int
}

// itemHeap implements heap.Interface as a max-heap on priority.
type itemHeap[I any] []heapEntry[I]

func (h itemHeap[I]) Len() int            { return len(h) }
func (h itemHeap[I]) Less(i, j int) bool  { return h[i].priority > h[j].priority }
func (h itemHeap[I]) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *itemHeap[I]) Push(x interface{}) { *h = append(*h, x.(heapEntry[I])) }

func (h *itemHeap[I]) Pop() interface{} {
	old := *h
	n := len(old)
	entry := old[n-1]
	*h = old[:n-1]
	return entry
}
