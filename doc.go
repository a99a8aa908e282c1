// Package poolkit provides a generic, concurrent resource-pooling engine for Go.
// Callers borrow and return typed objects (connections, clients, buffers) under
// bounded capacity, with pluggable retrieval ordering, time-based eviction, and
// multi-tenant scope isolation.
//
// The module is organized as a set of focused packages:
//
//   - pkg/pool: the pooling core. Pool[T] enforces capacity limits, tracks
//     active and available objects, validates objects on return, and hands out
//     single-owner Guard handles that release exactly once. Optional eviction
//     sweeps remove stale available objects without ever touching checked-out
//     ones.
//   - pkg/policy: interchangeable retrieval-order strategies (LIFO, FIFO,
//     priority, LRU, round-robin), each independently thread-safe.
//   - pkg/scope: a scope manager multiplexing many independent pools keyed by
//     tenant/user/context, with lazy creation and idle-based teardown.
//   - pkg/errors: structured error handling with a typed taxonomy.
//   - pkg/logger: zap-based structured logging.
//   - pkg/config: YAML configuration loading with environment substitution.
//
// Quick start:
//
//	p, err := pool.New(pool.Config[*Conn]{
//	    MaxPoolSize:      16,
//	    MaxActiveObjects: 8,
//	    Factory:          dial,
//	})
//	if err != nil {
//	    return err
//	}
//	defer p.Close()
//
//	guard, err := p.Acquire()
//	if err != nil {
//	    return err
//	}
//	defer guard.Release()
//
//	use(guard.Value())
package poolkit
