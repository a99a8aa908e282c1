package pool

import (
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/snoekiede/poolkit/pkg/errors"
	"github.com/snoekiede/poolkit/pkg/policy"
)

// Default capacity and timing values applied by Config.withDefaults.
const (
	DefaultMaxPoolSize    = 100
	DefaultTimeout        = 30 * time.Second
	DefaultEvictionPeriod = time.Minute
	DefaultMaxPerRun      = 50

	// acquirePollInterval is the suspension slice used by AcquireWait between
	// attempts. A fixed short poll keeps the implementation simple at the cost
	// of up to one interval of extra latency per wakeup.
	acquirePollInterval = 10 * time.Millisecond
)

// Config describes a pool's capacity, ordering, validation, and eviction
// behavior. The zero value is usable after defaulting: a LIFO pool of
// DefaultMaxPoolSize with no factory, validation, or eviction.
type Config[T any] struct {
	// Name labels the pool in logs and metrics. Auto-generated when empty.
	Name string

	// MaxPoolSize bounds the available set. Defaults to DefaultMaxPoolSize.
	MaxPoolSize int

	// MaxActiveObjects bounds the number of objects on loan at once.
	// Defaults to MaxPoolSize.
	MaxActiveObjects int

	// DefaultTimeout is the deadline AcquireWait applies when the caller
	// passes a non-positive timeout. Defaults to DefaultTimeout.
	DefaultTimeout time.Duration

	// ValidateOnReturn runs Validate against every released object; objects
	// that fail are silently discarded and counted.
	ValidateOnReturn bool

	// Validate reports whether a returned object is still usable.
	Validate func(T) bool

	// Policy selects the retrieval-order strategy. Defaults to policy.LIFO.
	Policy policy.Type

	// Priority selects an object's priority; required iff Policy is
	// policy.Priority.
	Priority func(T) int

	// Eviction configures staleness-based removal of available objects.
	Eviction EvictionConfig[T]

	// DisposeOnDiscard tears down objects discarded on release (failed
	// validation or available set at capacity).
	DisposeOnDiscard bool

	// Dispose tears down an object's underlying resource. When nil, values
	// implementing io.Closer are closed instead.
	Dispose func(T) error

	// Factory constructs a new object when the pool is empty. A pool without
	// a factory is fixed: an empty pool fails acquires with an unavailable
	// error.
	Factory func() (T, error)

	// Logger overrides the global logger for this pool.
	Logger *zap.Logger
}

// EvictionPolicy selects which staleness rule an eviction sweep applies.
type EvictionPolicy string

const (
	// EvictionNone disables eviction entirely; no manager is instantiated.
	EvictionNone EvictionPolicy = "none"
	// EvictionTTL evicts objects whose age reaches TimeToLive.
	EvictionTTL EvictionPolicy = "ttl"
	// EvictionIdle evicts objects whose idle time reaches IdleTimeout.
	EvictionIdle EvictionPolicy = "idle"
	// EvictionCombined evicts on either the TTL or the idle rule.
	EvictionCombined EvictionPolicy = "combined"
	// EvictionCustom evicts objects matching the configured Predicate.
	EvictionCustom EvictionPolicy = "custom"
)

// ParseEvictionPolicy converts a string into an EvictionPolicy.
func ParseEvictionPolicy(s string) (EvictionPolicy, error) {
	switch EvictionPolicy(s) {
	case EvictionNone, "":
		return EvictionNone, nil
	case EvictionTTL:
		return EvictionTTL, nil
	case EvictionIdle:
		return EvictionIdle, nil
	case EvictionCombined:
		return EvictionCombined, nil
	case EvictionCustom:
		return EvictionCustom, nil
	default:
		return "", errors.Newf(errors.ErrorTypeConfig, "unknown eviction policy %q", s)
	}
}

// EvictionConfig controls time-based removal of available objects. Active
// objects are immune regardless of age.
type EvictionConfig[T any] struct {
	// Policy selects the staleness rule. EvictionNone disables sweeps.
	Policy EvictionPolicy

	// TimeToLive is the maximum age under the TTL and Combined rules.
	TimeToLive time.Duration

	// IdleTimeout is the maximum idle time under the Idle and Combined rules.
	IdleTimeout time.Duration

	// Interval is the background sweep period. Defaults to
	// DefaultEvictionPeriod.
	Interval time.Duration

	// MaxPerRun bounds how many objects a single sweep removes, which bounds
	// the sweep's pause time. Defaults to DefaultMaxPerRun.
	MaxPerRun int

	// Background starts a recurring sweep goroutine. Manual sweeps via
	// EvictNow work either way.
	Background bool

	// DisposeEvicted tears down the resource of every evicted object.
	DisposeEvicted bool

	// Predicate is the removal rule under EvictionCustom.
	Predicate func(value T, meta ObjectMeta) bool
}

func (c Config[T]) withDefaults() Config[T] {
	if c.MaxPoolSize <= 0 {
		c.MaxPoolSize = DefaultMaxPoolSize
	}
	if c.MaxActiveObjects <= 0 {
		c.MaxActiveObjects = c.MaxPoolSize
	}
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = DefaultTimeout
	}
	if c.Policy == "" {
		c.Policy = policy.LIFO
	}
	if c.Eviction.Policy == "" {
		c.Eviction.Policy = EvictionNone
	}
	if c.Eviction.Interval <= 0 {
		c.Eviction.Interval = DefaultEvictionPeriod
	}
	if c.Eviction.MaxPerRun <= 0 {
		c.Eviction.MaxPerRun = DefaultMaxPerRun
	}
	if c.Name == "" {
		c.Name = fmt.Sprintf("pool-%d", atomic.AddUint64(&poolCounter, 1))
	}
	return c
}

var poolCounter uint64

func (c Config[T]) validate(initialCount int) error {
	if initialCount > c.MaxPoolSize {
		return errors.Newf(errors.ErrorTypeConfig,
			"initial object count %d exceeds max pool size %d", initialCount, c.MaxPoolSize)
	}
	if c.MaxActiveObjects < 0 {
		return errors.New(errors.ErrorTypeConfig, "max active objects must not be negative")
	}
	if c.Policy == policy.Priority && c.Priority == nil {
		return errors.New(errors.ErrorTypeConfig, "priority policy requires a priority selector")
	}
	switch c.Eviction.Policy {
	case EvictionNone, EvictionTTL, EvictionIdle, EvictionCombined:
	case EvictionCustom:
		if c.Eviction.Predicate == nil {
			return errors.New(errors.ErrorTypeConfig, "custom eviction requires a predicate")
		}
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown eviction policy %q", string(c.Eviction.Policy))
	}
	if c.Eviction.Policy == EvictionTTL || c.Eviction.Policy == EvictionCombined {
		if c.Eviction.TimeToLive <= 0 {
			return errors.New(errors.ErrorTypeConfig, "ttl eviction requires a positive time to live")
		}
	}
	if c.Eviction.Policy == EvictionIdle || c.Eviction.Policy == EvictionCombined {
		if c.Eviction.IdleTimeout <= 0 {
			return errors.New(errors.ErrorTypeConfig, "idle eviction requires a positive idle timeout")
		}
	}
	return nil
}
