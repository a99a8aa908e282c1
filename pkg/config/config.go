package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/snoekiede/poolkit/pkg/errors"
	"github.com/snoekiede/poolkit/pkg/logger"
	"github.com/snoekiede/poolkit/pkg/policy"
	"github.com/snoekiede/poolkit/pkg/pool"
	"github.com/snoekiede/poolkit/pkg/scope"
)

// Duration wraps time.Duration so YAML documents can use human-readable
// values like "30s" or "5m" as well as plain nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw interface{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid duration %q: %w", v, err)
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(v)
	case int64:
		*d = Duration(v)
	case float64:
		*d = Duration(int64(v))
	default:
		return fmt.Errorf("invalid duration value %v", raw)
	}
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std converts back to a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// FileConfig is the root of a poolkit YAML configuration document.
type FileConfig struct {
	Pool    PoolSection    `yaml:"pool"`
	Scope   ScopeSection   `yaml:"scope"`
	Logging LoggingSection `yaml:"logging"`
}

// PoolSection maps onto pool.Config; behavior fields requiring code
// (factories, validators, selectors) are supplied by the caller.
type PoolSection struct {
	Name             string          `yaml:"name"`
	MaxPoolSize      int             `yaml:"max_pool_size"`
	MaxActiveObjects int             `yaml:"max_active_objects"`
	DefaultTimeout   Duration        `yaml:"default_timeout"`
	ValidateOnReturn bool            `yaml:"validate_on_return"`
	Policy           string          `yaml:"policy"`
	DisposeOnDiscard bool            `yaml:"dispose_on_discard"`
	Eviction         EvictionSection `yaml:"eviction"`
}

// EvictionSection maps onto pool.EvictionConfig.
type EvictionSection struct {
	Policy         string   `yaml:"policy"`
	TimeToLive     Duration `yaml:"time_to_live"`
	IdleTimeout    Duration `yaml:"idle_timeout"`
	Interval       Duration `yaml:"interval"`
	MaxPerRun      int      `yaml:"max_per_run"`
	Background     bool     `yaml:"background"`
	DisposeEvicted bool     `yaml:"dispose_evicted"`
}

// ScopeSection maps onto scope.Config.
type ScopeSection struct {
	IdleTimeout           Duration `yaml:"idle_timeout"`
	CleanupInterval       Duration `yaml:"cleanup_interval"`
	MaxScopes             int      `yaml:"max_scopes"`
	DisposePoolsOnCleanup bool     `yaml:"dispose_pools_on_cleanup"`
	Background            bool     `yaml:"background"`
}

// LoggingSection maps onto logger.Config.
type LoggingSection struct {
	Level       string   `yaml:"level"`
	Development bool     `yaml:"development"`
	Encoding    string   `yaml:"encoding"`
	OutputPaths []string `yaml:"output_paths"`
}

// Validate checks the parts of the document that can fail without code
// attached: policy names and eviction rules.
func (fc FileConfig) Validate() error {
	if fc.Pool.Policy != "" {
		if _, err := policy.ParseType(fc.Pool.Policy); err != nil {
			return err
		}
	}
	if fc.Pool.Eviction.Policy != "" {
		if _, err := pool.ParseEvictionPolicy(fc.Pool.Eviction.Policy); err != nil {
			return err
		}
	}
	if fc.Pool.MaxPoolSize < 0 || fc.Pool.MaxActiveObjects < 0 {
		return errors.New(errors.ErrorTypeConfig, "pool sizes must not be negative")
	}
	return nil
}

// PoolConfig converts the document's pool section into a pool.Config for T.
// The caller fills in the behavior fields afterwards.
func PoolConfig[T any](fc FileConfig) (pool.Config[T], error) {
	if err := fc.Validate(); err != nil {
		return pool.Config[T]{}, err
	}
	polType := policy.LIFO
	if fc.Pool.Policy != "" {
		polType, _ = policy.ParseType(fc.Pool.Policy)
	}
	evPolicy := pool.EvictionNone
	if fc.Pool.Eviction.Policy != "" {
		evPolicy, _ = pool.ParseEvictionPolicy(fc.Pool.Eviction.Policy)
	}
	return pool.Config[T]{
		Name:             fc.Pool.Name,
		MaxPoolSize:      fc.Pool.MaxPoolSize,
		MaxActiveObjects: fc.Pool.MaxActiveObjects,
		DefaultTimeout:   fc.Pool.DefaultTimeout.Std(),
		ValidateOnReturn: fc.Pool.ValidateOnReturn,
		Policy:           polType,
		DisposeOnDiscard: fc.Pool.DisposeOnDiscard,
		Eviction: pool.EvictionConfig[T]{
			Policy:         evPolicy,
			TimeToLive:     fc.Pool.Eviction.TimeToLive.Std(),
			IdleTimeout:    fc.Pool.Eviction.IdleTimeout.Std(),
			Interval:       fc.Pool.Eviction.Interval.Std(),
			MaxPerRun:      fc.Pool.Eviction.MaxPerRun,
			Background:     fc.Pool.Eviction.Background,
			DisposeEvicted: fc.Pool.Eviction.DisposeEvicted,
		},
	}, nil
}

// ScopeConfig converts the document's scope section into a scope.Config.
func (fc FileConfig) ScopeConfig() scope.Config {
	return scope.Config{
		ScopeIdleTimeout:      fc.Scope.IdleTimeout.Std(),
		CleanupInterval:       fc.Scope.CleanupInterval.Std(),
		MaxScopes:             fc.Scope.MaxScopes,
		DisposePoolsOnCleanup: fc.Scope.DisposePoolsOnCleanup,
		Background:            fc.Scope.Background,
	}
}

// LoggerConfig converts the document's logging section into a logger.Config.
func (fc FileConfig) LoggerConfig() logger.Config {
	cfg := logger.Config{
		Level:       fc.Logging.Level,
		Development: fc.Logging.Development,
		Encoding:    fc.Logging.Encoding,
		OutputPaths: fc.Logging.OutputPaths,
	}
	if cfg.Level == "" {
		cfg.Level = "info"
	}
	if cfg.Encoding == "" {
		cfg.Encoding = "json"
	}
	return cfg
}
