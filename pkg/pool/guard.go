package pool

import "sync/atomic"

// Guard is the single-owner handle to a borrowed object. It is created by a
// successful acquire and bound to exactly one pool and one object. Release
// returns the object to the pool; only the first call has any effect, so a
// guard can never double-return its object. The idiomatic usage is
//
//	guard, err := p.Acquire()
//	if err != nil {
//	    return err
//	}
//	defer guard.Release()
//
// which guarantees the return on every exit path. A guard that is leaked
// without releasing permanently reduces effective capacity: active objects
// are immune to eviction and never time out.
type Guard[T any] struct {
	pool     *Pool[T]
	obj      *PooledObject[T]
	released int32
}

// Value returns the borrowed value. The caller has exclusive use rights
// until Release.
func (g *Guard[T]) Value() T {
	return g.obj.Value
}

// Meta returns a copy of the borrowed object's bookkeeping metadata.
func (g *Guard[T]) Meta() ObjectMeta {
	return g.obj.Meta()
}

// Released reports whether the guard has already been released.
func (g *Guard[T]) Released() bool {
	return atomic.LoadInt32(&g.released) != 0
}

// Release returns the object to the pool. Calls after the first are no-ops
// and return nil. A not-in-pool error indicates the object was no longer
// registered as active, which points at a caller bug rather than a pool
// fault; from the releasing caller's perspective a validation failure is not
// an error and release still succeeds.
func (g *Guard[T]) Release() error {
	if !atomic.CompareAndSwapInt32(&g.released, 0, 1) {
		return nil
	}
	return g.pool.releaseObject(g.obj)
}
