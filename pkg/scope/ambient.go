package scope

import (
	"context"

	"github.com/snoekiede/poolkit/pkg/errors"
)

// The ambient scope is carried as a context value, confined to one logical
// call chain. Nesting falls out of context semantics: deriving a child
// context with a new current scope leaves the parent untouched, so leaving
// the nested chain restores the exact previous value, including none.

type currentKey struct{}

// WithCurrent returns a context whose current scope is key. The parent
// context keeps whatever scope it had.
func WithCurrent(ctx context.Context, key Key) context.Context {
	return context.WithValue(ctx, currentKey{}, key)
}

// Current returns the ambient scope carried by ctx, if any.
func Current(ctx context.Context) (Key, bool) {
	key, ok := ctx.Value(currentKey{}).(Key)
	return key, ok
}

// Resolver maps a call's context onto a scope key. The common strategies are
// provided below; anything else is a custom resolver function.
type Resolver func(ctx context.Context) (Key, error)

// Explicit returns a resolver that always yields the given key.
func Explicit(key Key) Resolver {
	return func(context.Context) (Key, error) {
		return key, key.Validate()
	}
}

// Ambient returns a resolver that yields the context's current scope and
// fails when none is set.
func Ambient() Resolver {
	return func(ctx context.Context) (Key, error) {
		key, ok := Current(ctx)
		if !ok {
			return Key{}, errors.New(errors.ErrorTypeConfig, "no ambient scope on context")
		}
		return key, nil
	}
}
