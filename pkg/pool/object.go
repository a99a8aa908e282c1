package pool

import "time"

// PooledObject wraps a pooled value together with its bookkeeping metadata.
// The pool owns the wrapper for the object's whole lifetime; callers only
// ever see it through a Guard while the object is on loan.
//
// Metadata is mutated only while the object is transitioning between the
// available and active structures, under the owning pool's lock, so reads
// taken through Meta or the eviction predicates never race with a writer.
type PooledObject[T any] struct {
	// Value is the wrapped resource.
	Value T

	createdAt      time.Time
	lastAccessedAt time.Time
	accessCount    int64
}

// ObjectMeta is a read-only copy of a pooled object's bookkeeping metadata,
// handed to custom eviction predicates and exposed through Guard.Meta.
type ObjectMeta struct {
	CreatedAt      time.Time
	LastAccessedAt time.Time
	AccessCount    int64
}

func newPooledObject[T any](value T, now time.Time) *PooledObject[T] {
	return &PooledObject[T]{
		Value:          value,
		createdAt:      now,
		lastAccessedAt: now,
	}
}

// CreatedAt returns when the object entered the pool.
func (o *PooledObject[T]) CreatedAt() time.Time { return o.createdAt }

// LastAccessedAt returns when the object last crossed an acquire or release
// boundary.
func (o *PooledObject[T]) LastAccessedAt() time.Time { return o.lastAccessedAt }

// AccessCount returns how many times the object has been handed out.
func (o *PooledObject[T]) AccessCount() int64 { return o.accessCount }

// Meta returns a copy of the object's metadata.
func (o *PooledObject[T]) Meta() ObjectMeta {
	return ObjectMeta{
		CreatedAt:      o.createdAt,
		LastAccessedAt: o.lastAccessedAt,
		AccessCount:    o.accessCount,
	}
}

func (o *PooledObject[T]) touch(now time.Time) {
	o.lastAccessedAt = now
	o.accessCount++
}

func (o *PooledObject[T]) age(now time.Time) time.Duration {
	return now.Sub(o.createdAt)
}

func (o *PooledObject[T]) idle(now time.Time) time.Duration {
	return now.Sub(o.lastAccessedAt)
}
