// Package store defines the persistence service contract used by the call
// registry and transcript recorder, and provides its Redis implementation.
//
// The contract is intentionally narrow: string-keyed get/set with expiry,
// atomic increment/decrement on integer counters, and append-only lists with
// full-range reads. Counter operations must be atomic at the store level —
// callers never perform read-modify-write on counters.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get when the key does not exist or has expired.
var ErrNotFound = errors.New("store: key not found")

// Store is the persistence service abstraction.
//
// Implementations must be safe for concurrent use: sessions and the event
// listener mutate counters from independent goroutines.
type Store interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) (string, error)

	// Set stores value at key. A positive ttl (re)sets the key's expiry;
	// zero means no expiry.
	Set(ctx context.Context, key, value string, ttl time.Duration) error

	// Incr atomically increments the integer counter at key and returns the
	// new value. A missing key counts as zero.
	Incr(ctx context.Context, key string) (int64, error)

	// Decr atomically decrements the integer counter at key and returns the
	// new value. A missing key counts as zero.
	Decr(ctx context.Context, key string) (int64, error)

	// Append pushes value onto the end of the list at key. A positive ttl
	// (re)sets the list's expiry.
	Append(ctx context.Context, key, value string, ttl time.Duration) error

	// Range returns all elements of the list at key in append order.
	// A missing key yields an empty slice, not an error.
	Range(ctx context.Context, key string) ([]string, error)

	// Ping reports whether the backing service is reachable.
	Ping(ctx context.Context) error

	// Close releases the underlying connection pool.
	Close() error
}
