package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetReturnsLogger(t *testing.T) {
	log := Get()
	require.NotNil(t, log)
	assert.Same(t, log, Get())
}

func TestNewLogger(t *testing.T) {
	log, err := newLogger(Config{Level: "debug", Encoding: "json"})
	require.NoError(t, err)
	require.NotNil(t, log)
	_ = log.Sync()

	_, err = newLogger(Config{Level: "chatty", Encoding: "json"})
	require.Error(t, err)
}

func TestWithContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), PoolNameKey, "sessions")
	ctx = context.WithValue(ctx, TenantIDKey, "acme")

	log := WithContext(ctx)
	require.NotNil(t, log)

	// Non-string values are ignored rather than logged.
	ctx = context.WithValue(context.Background(), ScopeIDKey, 42)
	require.NotNil(t, WithContext(ctx))
}
