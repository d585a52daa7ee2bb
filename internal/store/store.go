// Package store provides the key-value persistence backends the vault log and
// the session cache are written to.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned when a key has no stored value.
var ErrNotFound = errors.New("not found")

// KV is a minimal byte-oriented key-value store. Implementations must return
// ErrNotFound (possibly wrapped) from Get when the key is absent and must not
// retain the caller's value slice after Put returns.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error

	// Lifecycle
	Close() error
}

// Pinger is implemented by backends that can report their reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}
