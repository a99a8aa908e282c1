package scope

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snoekiede/poolkit/pkg/errors"
)

func TestKeyString(t *testing.T) {
	assert.Equal(t, "cache", NewKey("cache").String())
	assert.Equal(t, "cache/tenant:acme", Key{ID: "cache", TenantID: "acme"}.String())
	assert.Equal(t, "cache/tenant:acme/user:7",
		Key{ID: "cache", TenantID: "acme", UserID: "7"}.String())
}

func TestKeyValidate(t *testing.T) {
	require.NoError(t, NewKey("ok").Validate())

	err := Key{}.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
	require.Error(t, Key{ID: "  ", TenantID: "t"}.Validate())
}

func TestAmbientScopeNesting(t *testing.T) {
	root := context.Background()
	_, ok := Current(root)
	assert.False(t, ok)

	outer := WithCurrent(root, NewKey("outer"))
	inner := WithCurrent(outer, NewKey("inner"))

	got, ok := Current(inner)
	require.True(t, ok)
	assert.Equal(t, "inner", got.ID)

	// Leaving the nested chain means using the outer context again; the
	// previous scope is intact, unset included.
	got, ok = Current(outer)
	require.True(t, ok)
	assert.Equal(t, "outer", got.ID)

	_, ok = Current(root)
	assert.False(t, ok)
}

func TestExplicitResolver(t *testing.T) {
	key, err := Explicit(NewKey("fixed"))(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "fixed", key.ID)

	_, err = Explicit(Key{})(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))
}

func TestAmbientResolver(t *testing.T) {
	r := Ambient()

	_, err := r(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeConfig))

	ctx := WithCurrent(context.Background(), NewKey("ambient"))
	key, err := r(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ambient", key.ID)
}

func TestManagerResolve(t *testing.T) {
	m := newTestManager(t, Config{})

	ctx := WithCurrent(context.Background(), NewKey("tenant-x"))

	// Nil resolver falls back to the ambient scope.
	p1, err := m.Resolve(ctx, nil)
	require.NoError(t, err)

	p2, err := m.Resolve(context.Background(), Explicit(NewKey("tenant-x")))
	require.NoError(t, err)
	assert.Same(t, p1, p2)

	_, err = m.Resolve(context.Background(), nil)
	require.Error(t, err)
}
