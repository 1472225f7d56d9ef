package kvsession

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewRedisStore(client, "")
	t.Cleanup(func() { _ = store.Close() })
	return store, mr
}

// openTestSession allocates a fresh ID and loads it, as the factory does for
// a request without a cookie.
func openTestSession(t *testing.T, store Store, p sessionParams) *Session {
	t.Helper()
	ctx := context.Background()
	id, err := NewAllocator(store, p.codec, 0, nil).Allocate(ctx, p.timeout)
	require.NoError(t, err)
	s, err := loadSession(ctx, store, id, p)
	require.NoError(t, err)
	s.isNew = true
	return s
}

// reload reads the session back from its store, as the next request would.
func reload(t *testing.T, s *Session) *Session {
	t.Helper()
	fresh, err := loadSession(context.Background(), s.store, s.id, sessionParams{
		timeout: s.defaultTimeout,
		codec:   s.codec,
	})
	require.NoError(t, err)
	return fresh
}

var errBackendDown = errors.New("backend down")

// failingStore fails every operation.
type failingStore struct{}

func (failingStore) Get(context.Context, string) ([]byte, error) {
	return nil, errors.Join(ErrStoreUnavailable, errBackendDown)
}
func (failingStore) Set(context.Context, string, []byte) error {
	return errors.Join(ErrStoreUnavailable, errBackendDown)
}
func (failingStore) SetEx(context.Context, string, []byte, time.Duration) error {
	return errors.Join(ErrStoreUnavailable, errBackendDown)
}
func (failingStore) SetNX(context.Context, string, []byte) (bool, error) {
	return false, errors.Join(ErrStoreUnavailable, errBackendDown)
}
func (failingStore) Expire(context.Context, string, time.Duration) error {
	return errors.Join(ErrStoreUnavailable, errBackendDown)
}
func (failingStore) Exists(context.Context, string) (bool, error) {
	return false, errors.Join(ErrStoreUnavailable, errBackendDown)
}
func (failingStore) Close() error { return nil }

// collidingStore reports the first collisions SetNX calls as taken keys.
type collidingStore struct {
	Store
	collisions int
	calls      int
}

func (c *collidingStore) SetNX(ctx context.Context, key string, value []byte) (bool, error) {
	c.calls++
	if c.calls <= c.collisions {
		return false, nil
	}
	return c.Store.SetNX(ctx, key, value)
}

// callbackRecorder implements Callbacks for tests that call Factory.Open directly.
type callbackRecorder struct {
	callbacks []ResponseCallback
}

func (c *callbackRecorder) AddResponseCallback(fn ResponseCallback) {
	c.callbacks = append(c.callbacks, fn)
}
