// Package kvstore abstracts the shared TTL key-value store the quota engine
// accounts against. All shared state lives behind this interface; the engine
// holds no in-process counters, so any number of gateway replicas can share
// one store.
package kvstore

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable wraps any transport or server failure of the backing store.
// Callers treat it as transient; the admission pipeline fails closed on it.
var ErrUnavailable = errors.New("kvstore unavailable")

// Store is the contract the quota engine needs from the backing store.
// Single-key operations are atomic on the server side; nothing here spans
// multiple keys transactionally.
type Store interface {
	// Incr atomically increments the integer at key and returns the new
	// value. A missing key counts from zero.
	Incr(ctx context.Context, key string) (int64, error)

	// Expire sets the TTL for key. Expiry is the only teardown path for
	// engine-owned keys.
	Expire(ctx context.Context, key string, ttl time.Duration) error

	// Get returns the value at key, with ok=false when the key is absent.
	Get(ctx context.Context, key string) (value string, ok bool, err error)

	// Set writes value at key with the given TTL (zero means no expiry).
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// SAdd adds member to the set at key. Adding an existing member is a
	// no-op.
	SAdd(ctx context.Context, key, member string) error

	// SIsMember reports whether member is in the set at key.
	SIsMember(ctx context.Context, key, member string) (bool, error)

	// SCard returns the cardinality of the set at key.
	SCard(ctx context.Context, key string) (int64, error)

	// HSet writes the given fields into the hash at key, leaving other
	// fields untouched.
	HSet(ctx context.Context, key string, fields map[string]string) error

	// Ping verifies store connectivity.
	Ping(ctx context.Context) error
}
