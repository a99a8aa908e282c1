// Package scope multiplexes many independent pools keyed by tenant, user, or
// arbitrary context. Pools are created lazily on first access to a key and
// torn down when a scope sits idle past its timeout. Each scope's pool is
// fully isolated: objects never cross between scopes.
package scope

import (
	"strings"

	"github.com/snoekiede/poolkit/pkg/errors"
)

// Key identifies a scope. Equality is over the full triple; two keys with
// the same ID but different tenants address different scopes.
type Key struct {
	// ID is the scope's unique identifier. Required.
	ID string
	// TenantID optionally namespaces the scope by tenant.
	TenantID string
	// UserID optionally namespaces the scope by user.
	UserID string
}

// NewKey builds a key with just an ID.
func NewKey(id string) Key {
	return Key{ID: id}
}

// Validate checks the key is usable; an empty or blank ID is a
// configuration error.
func (k Key) Validate() error {
	if strings.TrimSpace(k.ID) == "" {
		return errors.New(errors.ErrorTypeConfig, "scope key requires a non-empty id")
	}
	return nil
}

// String renders the key for logs and metric labels.
func (k Key) String() string {
	var b strings.Builder
	b.WriteString(k.ID)
	if k.TenantID != "" {
		b.WriteString("/tenant:")
		b.WriteString(k.TenantID)
	}
	if k.UserID != "" {
		b.WriteString("/user:")
		b.WriteString(k.UserID)
	}
	return b.String()
}
