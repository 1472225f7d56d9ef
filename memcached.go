package kvsession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bradfitz/gomemcache/memcache"
)

// MemcachedStore implements the Store interface using Memcached.
// SetNX maps to Add and Expire to Touch. The context is not used since the
// client has no context support; MemcachedConfig.Timeout bounds each call.
type MemcachedStore struct {
	client *memcache.Client
	prefix string
	now    func() time.Time
}

// MemcachedConfig holds configuration for the Memcached store.
type MemcachedConfig struct {
	Servers   []string
	KeyPrefix string
	Timeout   time.Duration // Timeout for Memcached operations. Defaults to 0 (no timeout) if not set.
}

// NewMemcachedStore creates a new MemcachedStore.
func NewMemcachedStore(servers ...string) *MemcachedStore {
	return NewMemcachedStoreWithConfig(MemcachedConfig{
		Servers: servers,
		// Do not hang forever if Memcached is down.
		Timeout: 1 * time.Second,
	})
}

// NewMemcachedStoreWithConfig creates a new MemcachedStore with custom configuration.
func NewMemcachedStoreWithConfig(cfg MemcachedConfig) *MemcachedStore {
	client := memcache.New(cfg.Servers...)
	client.Timeout = cfg.Timeout

	return &MemcachedStore{
		client: client,
		prefix: cfg.KeyPrefix,
		now:    time.Now,
	}
}

func (s *MemcachedStore) key(id string) string {
	return s.prefix + id
}

func (s *MemcachedStore) Get(ctx context.Context, key string) ([]byte, error) {
	item, err := s.client.Get(s.key(key))
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return item.Value, nil
}

func (s *MemcachedStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.client.Set(&memcache.Item{Key: s.key(key), Value: value}); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *MemcachedStore) SetEx(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	err := s.client.Set(&memcache.Item{
		Key:        s.key(key),
		Value:      value,
		Expiration: calculateMemcachedExpiration(s.now(), ttl),
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *MemcachedStore) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	err := s.client.Add(&memcache.Item{Key: s.key(key), Value: value})
	if errors.Is(err, memcache.ErrNotStored) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return true, nil
}

func (s *MemcachedStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	err := s.client.Touch(s.key(key), calculateMemcachedExpiration(s.now(), ttl))
	if err != nil && !errors.Is(err, memcache.ErrCacheMiss) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *MemcachedStore) Exists(ctx context.Context, key string) (bool, error) {
	data, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return data != nil, nil
}

// Close is a no-op for Memcached client.
func (s *MemcachedStore) Close() error {
	return nil
}

// calculateMemcachedExpiration converts a TTL into Memcached's expiration field.
// Memcached treats values > 30 days (60*60*24*30 seconds) as absolute Unix timestamps.
// Values <= 30 days are treated as a delta from the current time.
func calculateMemcachedExpiration(now time.Time, ttl time.Duration) int32 {
	const maxDelta = 30 * 24 * 60 * 60 // 30 days in seconds

	// A large delta would be read as a timestamp in 1970 and expire at once.
	if ttl > maxDelta*time.Second {
		return int32(now.Add(ttl).Unix())
	}

	// Round sub-second TTLs up; 0 would mean "never expire".
	secs := int32((ttl + time.Second - 1) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return secs
}
