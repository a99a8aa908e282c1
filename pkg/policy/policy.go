// Package policy provides interchangeable retrieval-order strategies for
// object pools. A Policy decides which available object is handed out on the
// next take; it knows nothing about capacity limits or eviction.
//
// Five strategies are provided:
//
//   - LIFO: stack order, the most recently added item is taken first. O(1).
//   - FIFO: queue order, the oldest added item is taken first. O(1).
//   - Priority: a max-heap over an externally supplied priority selector;
//     higher values are taken first. O(log n).
//   - LRU: the item that has sat in the policy the longest since it was last
//     added is taken first. O(n) per take, intentionally unindexed.
//   - RoundRobin: queue order; items only rejoin the tail through an explicit
//     subsequent Add, typically on release.
//
// Every implementation is independently safe for concurrent use; none relies
// on a lock held by its caller. The strategy is selected once at pool
// construction and never re-selected at runtime.
package policy

import (
	"strings"

	"github.com/snoekiede/poolkit/pkg/errors"
)

// Type identifies a retrieval-order strategy.
type Type string

const (
	// LIFO takes the most recently added item first.
	LIFO Type = "lifo"
	// FIFO takes the oldest added item first.
	FIFO Type = "fifo"
	// Priority takes the highest-priority item first.
	Priority Type = "priority"
	// LRU takes the item least recently added back to the policy.
	LRU Type = "lru"
	// RoundRobin cycles through items in arrival order.
	RoundRobin Type = "roundrobin"
)

// ParseType converts a string into a policy Type.
func ParseType(s string) (Type, error) {
	switch Type(strings.ToLower(strings.TrimSpace(s))) {
	case LIFO:
		return LIFO, nil
	case FIFO:
		return FIFO, nil
	case Priority:
		return Priority, nil
	case LRU:
		return LRU, nil
	case RoundRobin, "round_robin", "round-robin":
		return RoundRobin, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unknown retrieval policy %q", s)
	}
}

// Policy is the common contract implemented by every retrieval strategy.
// Items are opaque to the policy; the zero value of I is rejected by Add.
type Policy[I comparable] interface {
	// Add inserts an item into the policy structure.
	Add(item I) error

	// TryTake removes and returns the next item per the strategy's order.
	// It reports false when the structure is empty.
	TryTake() (I, bool)

	// Len returns the number of items currently held.
	Len() int

	// Clear removes all items.
	Clear()

	// Snapshot returns a copy of the current items without removing them.
	// The order of the returned slice is strategy-specific and diagnostic
	// only.
	Snapshot() []I

	// RemoveWhere removes up to max items satisfying pred, leaving the
	// relative order of the remaining items intact, and returns the removed
	// items. A max <= 0 means no limit.
	RemoveWhere(pred func(I) bool, max int) []I
}

// Options carries strategy-specific construction parameters.
type Options[I comparable] struct {
	// Priority selects an item's priority; required for the Priority type.
	Priority func(I) int
}

// New constructs the policy for the given type. The Priority type requires
// a selector in opts; everything else ignores opts.
func New[I comparable](t Type, opts Options[I]) (Policy[I], error) {
	switch t {
	case LIFO, "":
		return NewLIFO[I](), nil
	case FIFO:
		return NewFIFO[I](), nil
	case Priority:
		return NewPriority(opts.Priority)
	case LRU:
		return NewLRU[I](), nil
	case RoundRobin:
		return NewRoundRobin[I](), nil
	default:
		return nil, errors.Newf(errors.ErrorTypeConfig, "unknown retrieval policy %q", string(t))
	}
}

func errNilItem() error {
	return errors.New(errors.ErrorTypeConfig, "cannot add zero-value item to policy")
}
