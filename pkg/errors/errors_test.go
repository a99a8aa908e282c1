package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := New(ErrorTypeExhausted, "all objects are active")
	assert.Equal(t, ErrorTypeExhausted, err.Type)
	assert.Equal(t, "exhausted: all objects are active", err.Error())
	assert.NotEmpty(t, err.Stack)
	assert.Nil(t, err.Cause)
}

func TestNewf(t *testing.T) {
	err := Newf(ErrorTypeTimeout, "no object acquired within %v", "5s")
	assert.Equal(t, "timeout: no object acquired within 5s", err.Error())
}

func TestWrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := Wrap(cause, ErrorTypeFactory, "object factory failed")
	require.NotNil(t, err)
	assert.Equal(t, ErrorTypeFactory, err.Type)
	assert.Equal(t, "factory: object factory failed: connection refused", err.Error())
	assert.True(t, errors.Is(err, cause))

	assert.Nil(t, Wrap(nil, ErrorTypeFactory, "ignored"))
}

func TestWrapPreservesInnerStack(t *testing.T) {
	inner := New(ErrorTypeUnavailable, "no objects available")
	outer := Wrap(inner, ErrorTypeInternal, "acquire failed")
	assert.Equal(t, inner.Stack, outer.Stack)
	assert.True(t, errors.Is(outer, inner))
}

func TestIsType(t *testing.T) {
	err := New(ErrorTypeDisposed, "pool is disposed")
	assert.True(t, IsType(err, ErrorTypeDisposed))
	assert.False(t, IsType(err, ErrorTypeExhausted))

	// Works through wrapping, stdlib included.
	wrapped := fmt.Errorf("context: %w", err)
	assert.True(t, IsType(wrapped, ErrorTypeDisposed))

	assert.False(t, IsType(fmt.Errorf("plain"), ErrorTypeDisposed))
	assert.False(t, IsType(nil, ErrorTypeDisposed))
}

func TestIsRetryable(t *testing.T) {
	retryable := []ErrorType{
		ErrorTypeExhausted, ErrorTypeUnavailable, ErrorTypeTimeout, ErrorTypeNoMatch,
	}
	for _, typ := range retryable {
		assert.True(t, IsRetryable(New(typ, "x")), string(typ))
	}

	terminal := []ErrorType{
		ErrorTypeInternal, ErrorTypeNotInPool, ErrorTypeCancelled,
		ErrorTypeConfig, ErrorTypeDisposed, ErrorTypeValidation,
		ErrorTypeFactory, ErrorTypeDisposal,
	}
	for _, typ := range terminal {
		assert.False(t, IsRetryable(New(typ, "x")), string(typ))
	}

	assert.False(t, IsRetryable(fmt.Errorf("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestWithDetail(t *testing.T) {
	err := New(ErrorTypeConfig, "bad setting").
		WithDetail("field", "MaxPoolSize").
		WithDetail("value", -1)
	assert.Equal(t, "MaxPoolSize", err.Details["field"])
	assert.Equal(t, -1, err.Details["value"])
}
