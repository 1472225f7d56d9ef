package kvsession

import (
	"context"
	"time"
)

// Store is the key-value contract a session is persisted through.
// Every operation is atomic for a single key. Implementations wrap their
// failures with ErrStoreUnavailable.
type Store interface {
	// Get returns the value stored at key, or nil, nil if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value without expiration.
	Set(ctx context.Context, key string, value []byte) error
	// SetEx stores value and expires it after ttl.
	SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores value only if key does not exist and reports whether it did.
	SetNX(ctx context.Context, key string, value []byte) (bool, error)
	// Expire resets the lifetime of an existing key. Missing keys are ignored.
	Expire(ctx context.Context, key string, ttl time.Duration) error
	// Exists reports whether key holds a live value.
	Exists(ctx context.Context, key string) (bool, error)
	// Close releases the underlying client.
	Close() error
}

// Cleaner is implemented by stores without native expiration.
// The factory calls Cleanup periodically to drop expired keys.
type Cleaner interface {
	Cleanup(ctx context.Context) error
}
