package pool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snoekiede/poolkit/pkg/errors"
	"github.com/snoekiede/poolkit/pkg/policy"
	"github.com/snoekiede/poolkit/pkg/testutil"
)

type conn struct {
	id     int
	broken bool

	mu     sync.Mutex
	closed bool
}

func (c *conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func newFixedPool(t *testing.T, cfg Config[*conn], ids ...int) *Pool[*conn] {
	t.Helper()
	if cfg.Logger == nil {
		cfg.Logger = testutil.TestLogger(t)
	}
	initial := make([]*conn, len(ids))
	for i, id := range ids {
		initial[i] = &conn{id: id}
	}
	p, err := New(cfg, initial...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestAcquireReleaseRoundTrip(t *testing.T) {
	p := newFixedPool(t, Config[*conn]{MaxPoolSize: 4}, 1, 2)

	before := p.Stats()
	g, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 1, p.ActiveCount())
	assert.Equal(t, 1, p.AvailableCount())

	require.NoError(t, g.Release())
	after := p.Stats()
	assert.Equal(t, before.CurrentAvailable, after.CurrentAvailable)
	assert.Equal(t, 0, after.CurrentActive)
	assert.Equal(t, before.TotalReturned+1, after.TotalReturned)
	assert.Equal(t, before.TotalRetrieved+1, after.TotalRetrieved)
}

func TestAcquireExhaustion(t *testing.T) {
	p := newFixedPool(t, Config[*conn]{MaxPoolSize: 4, MaxActiveObjects: 2}, 1, 2, 3)

	g1, err := p.Acquire()
	require.NoError(t, err)
	g2, err := p.Acquire()
	require.NoError(t, err)

	// A third object is available but the active limit is reached.
	_, err = p.Acquire()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeExhausted))
	assert.True(t, errors.IsRetryable(err))

	require.NoError(t, g1.Release())
	g3, err := p.Acquire()
	require.NoError(t, err)
	require.NoError(t, g2.Release())
	require.NoError(t, g3.Release())
}

func TestAcquireEmptyFixedPool(t *testing.T) {
	p := newFixedPool(t, Config[*conn]{MaxPoolSize: 4}, 1)

	g, err := p.Acquire()
	require.NoError(t, err)

	_, err = p.Acquire()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeUnavailable))
	assert.Equal(t, int64(1), p.Stats().PoolEmptyEvents)

	require.NoError(t, g.Release())
}

func TestFactoryGrowsOnDemand(t *testing.T) {
	var next int64
	p := newFixedPool(t, Config[*conn]{
		MaxPoolSize:      4,
		MaxActiveObjects: 3,
		Factory: func() (*conn, error) {
			return &conn{id: int(atomic.AddInt64(&next, 1))}, nil
		},
	})

	guards := make([]*Guard[*conn], 0, 3)
	for i := 0; i < 3; i++ {
		g, err := p.Acquire()
		require.NoError(t, err)
		guards = append(guards, g)
	}
	assert.Equal(t, int64(3), p.Stats().TotalCreated)

	// Active limit still applies to factory-backed pools.
	_, err := p.Acquire()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeExhausted))

	for _, g := range guards {
		require.NoError(t, g.Release())
	}
	assert.Equal(t, 3, p.AvailableCount())
}

func TestFactoryError(t *testing.T) {
	p := newFixedPool(t, Config[*conn]{
		MaxPoolSize: 4,
		Factory: func() (*conn, error) {
			return nil, fmt.Errorf("dial refused")
		},
	})

	_, err := p.Acquire()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFactory))
	assert.False(t, errors.IsRetryable(err))
}

func TestTryAcquire(t *testing.T) {
	p := newFixedPool(t, Config[*conn]{MaxPoolSize: 4}, 1)

	g, ok := p.TryAcquire()
	require.True(t, ok)

	_, ok = p.TryAcquire()
	assert.False(t, ok)

	require.NoError(t, g.Release())
	g, ok = p.TryAcquire()
	require.True(t, ok)
	require.NoError(t, g.Release())
}

func TestValidationDiscardOnReturn(t *testing.T) {
	p := newFixedPool(t, Config[*conn]{
		MaxPoolSize:      4,
		ValidateOnReturn: true,
		Validate:         func(c *conn) bool { return !c.broken },
		DisposeOnDiscard: true,
	}, 1, 2)

	g, err := p.Acquire()
	require.NoError(t, err)
	borrowed := g.Value()
	borrowed.broken = true

	// Release succeeds from the caller's perspective; the object is gone.
	require.NoError(t, g.Release())
	assert.Equal(t, 1, p.AvailableCount())
	assert.Equal(t, 0, p.ActiveCount())

	s := p.Stats()
	assert.Equal(t, int64(1), s.TotalDiscarded)
	assert.Equal(t, int64(0), s.TotalReturned)
	assert.True(t, borrowed.isClosed())
}

func TestReleaseDiscardsWhenAvailableFull(t *testing.T) {
	var next int64
	p := newFixedPool(t, Config[*conn]{
		MaxPoolSize:      1,
		MaxActiveObjects: 2,
		Factory: func() (*conn, error) {
			return &conn{id: int(atomic.AddInt64(&next, 1))}, nil
		},
	})

	g1, err := p.Acquire()
	require.NoError(t, err)
	g2, err := p.Acquire()
	require.NoError(t, err)

	require.NoError(t, g1.Release())
	assert.Equal(t, 1, p.AvailableCount())

	// The available side is at MaxPoolSize; the second return is discarded.
	require.NoError(t, g2.Release())
	assert.Equal(t, 1, p.AvailableCount())
	assert.Equal(t, int64(1), p.Stats().TotalDiscarded)
}

func TestAccountingIdentity(t *testing.T) {
	var next int64
	p := newFixedPool(t, Config[*conn]{
		MaxPoolSize:      8,
		MaxActiveObjects: 8,
		ValidateOnReturn: true,
		Validate:         func(c *conn) bool { return c.id%7 != 0 },
		Factory: func() (*conn, error) {
			return &conn{id: int(atomic.AddInt64(&next, 1))}, nil
		},
	}, 1, 2, 3)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				g, ok := p.TryAcquire()
				if !ok {
					continue
				}
				_ = g.Release()
			}
		}()
	}
	wg.Wait()

	s := p.Stats()
	assert.Equal(t, s.TotalCreated-s.TotalDiscarded,
		int64(s.CurrentAvailable+s.CurrentActive))
	assert.Equal(t, 0, s.CurrentActive)
}

func TestSingleOwnership(t *testing.T) {
	p := newFixedPool(t, Config[*conn]{MaxPoolSize: 4, MaxActiveObjects: 4}, 1, 2, 3, 4)

	inUse := make(map[*conn]*int32)
	for _, obj := range p.pol.Snapshot() {
		inUse[obj.Value] = new(int32)
	}

	var violations int64
	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				g, ok := p.TryAcquire()
				if !ok {
					continue
				}
				marker := inUse[g.Value()]
				if !atomic.CompareAndSwapInt32(marker, 0, 1) {
					atomic.AddInt64(&violations, 1)
				}
				atomic.StoreInt32(marker, 0)
				_ = g.Release()
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, atomic.LoadInt64(&violations), "same object held by two guards")
}

func TestAcquireMatching(t *testing.T) {
	p := newFixedPool(t, Config[*conn]{MaxPoolSize: 4, Policy: policy.FIFO}, 1, 2, 3)

	g, err := p.AcquireMatching(func(c *conn) bool { return c.id == 2 })
	require.NoError(t, err)
	assert.Equal(t, 2, g.Value().id)
	assert.Equal(t, 2, p.AvailableCount())

	_, err = p.AcquireMatching(func(c *conn) bool { return c.id == 99 })
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeNoMatch))

	_, ok := p.TryAcquireMatching(func(c *conn) bool { return c.id == 99 })
	assert.False(t, ok)

	g3, ok := p.TryAcquireMatching(func(c *conn) bool { return c.id == 3 })
	require.True(t, ok)
	assert.Equal(t, 3, g3.Value().id)

	require.NoError(t, g.Release())
	require.NoError(t, g3.Release())
}

func TestAcquireWaitTimeout(t *testing.T) {
	p := newFixedPool(t, Config[*conn]{MaxPoolSize: 2}, 1)

	g, err := p.Acquire()
	require.NoError(t, err)

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	start := time.Now()
	_, err = p.AcquireWait(ctx, 50*time.Millisecond)
	elapsed := time.Since(start)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeTimeout))
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)

	require.NoError(t, g.Release())
}

func TestAcquireWaitCancellation(t *testing.T) {
	p := newFixedPool(t, Config[*conn]{MaxPoolSize: 2}, 1)

	g, err := p.Acquire()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(30 * time.Millisecond)
		cancel()
	}()

	_, err = p.AcquireWait(ctx, 5*time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeCancelled))

	require.NoError(t, g.Release())
}

func TestAcquireWaitSucceedsAfterRelease(t *testing.T) {
	p := newFixedPool(t, Config[*conn]{MaxPoolSize: 2}, 1)

	g, err := p.Acquire()
	require.NoError(t, err)
	go func() {
		time.Sleep(30 * time.Millisecond)
		_ = g.Release()
	}()

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	g2, err := p.AcquireWait(ctx, 5*time.Second)
	require.NoError(t, err)
	require.NoError(t, g2.Release())
}

func TestAcquireWaitNonRetryableFailsFast(t *testing.T) {
	p := newFixedPool(t, Config[*conn]{
		MaxPoolSize: 2,
		Factory:     func() (*conn, error) { return nil, fmt.Errorf("down") },
	})

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	start := time.Now()
	_, err := p.AcquireWait(ctx, 5*time.Second)
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeFactory))
	assert.Less(t, time.Since(start), time.Second)
}

func TestWithReleasesOnAllPaths(t *testing.T) {
	p := newFixedPool(t, Config[*conn]{MaxPoolSize: 2}, 1)

	ctx, cancel := testutil.TestContext(t)
	defer cancel()

	err := p.With(ctx, func(c *conn) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, p.AvailableCount())

	err = p.With(ctx, func(c *conn) error { return fmt.Errorf("boom") })
	require.Error(t, err)
	assert.Equal(t, 1, p.AvailableCount())

	func() {
		defer func() { _ = recover() }()
		_ = p.With(ctx, func(c *conn) error { panic("kaboom") })
	}()
	assert.Equal(t, 1, p.AvailableCount())
	assert.Equal(t, 0, p.ActiveCount())
}

func TestClose(t *testing.T) {
	cfg := Config[*conn]{MaxPoolSize: 4, DisposeOnDiscard: true, Logger: testutil.TestLogger(t)}
	a, b := &conn{id: 1}, &conn{id: 2}
	p, err := New(cfg, a, b)
	require.NoError(t, err)

	g, err := p.Acquire()
	require.NoError(t, err)

	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, p.Closed())
	assert.Equal(t, 0, p.AvailableCount())
	assert.True(t, b.isClosed())

	_, err = p.Acquire()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDisposed))

	// A late release tears the loaned object down instead of resurrecting it.
	err = g.Release()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeDisposed))
	assert.True(t, a.isClosed())
	assert.Equal(t, 0, p.AvailableCount())
}

func TestConfigValidation(t *testing.T) {
	log := testutil.TestLogger(t)

	_, err := New(Config[*conn]{MaxPoolSize: 1, Logger: log}, &conn{id: 1}, &conn{id: 2})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = New(Config[*conn]{Policy: policy.Priority, Logger: log})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	_, err = New(Config[*conn]{
		Eviction: EvictionConfig[*conn]{Policy: EvictionTTL},
		Logger:   log,
	})
	require.Error(t, err)

	_, err = New(Config[*conn]{
		Eviction: EvictionConfig[*conn]{Policy: EvictionCustom},
		Logger:   log,
	})
	require.Error(t, err)
}

func TestPriorityPoolRetrievalOrder(t *testing.T) {
	p := newFixedPool(t, Config[*conn]{
		MaxPoolSize: 4,
		Policy:      policy.Priority,
		Priority:    func(c *conn) int { return c.id },
	}, 5, 10, 1)

	g, err := p.Acquire()
	require.NoError(t, err)
	assert.Equal(t, 10, g.Value().id)
	require.NoError(t, g.Release())
}

func TestUtilizationAndHealth(t *testing.T) {
	p := newFixedPool(t, Config[*conn]{MaxPoolSize: 4, MaxActiveObjects: 2}, 1, 2)

	assert.True(t, p.IsHealthy())
	assert.Zero(t, p.Utilization())

	g1, err := p.Acquire()
	require.NoError(t, err)
	g2, err := p.Acquire()
	require.NoError(t, err)
	assert.InDelta(t, 100.0, p.Utilization(), 0.01)
	assert.False(t, p.IsHealthy())
	assert.NotEmpty(t, p.Warnings())

	require.NoError(t, g1.Release())
	require.NoError(t, g2.Release())
	assert.True(t, p.IsHealthy())
}

func BenchmarkAcquireRelease(b *testing.B) {
	p, err := New(Config[*conn]{
		Name:        "bench",
		MaxPoolSize: 16,
	}, func() []*conn {
		conns := make([]*conn, 16)
		for i := range conns {
			conns[i] = &conn{id: i}
		}
		return conns
	}()...)
	if err != nil {
		b.Fatal(err)
	}
	defer p.Close()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			g, ok := p.TryAcquire()
			if ok {
				_ = g.Release()
			}
		}
	})
}
