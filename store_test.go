package kvsession

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStoreContract checks the behavior every Store must share. advance moves
// the store's clock forward; stores that cannot fake time pass nil and skip
// the expiration checks.
func testStoreContract(t *testing.T, store Store, advance func(time.Duration)) {
	t.Helper()
	ctx := context.Background()

	newKey := func() string {
		id, err := generateID()
		require.NoError(t, err)
		return id
	}

	t.Run("missing key", func(t *testing.T) {
		key := newKey()
		data, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, data)

		ok, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)

		assert.NoError(t, store.Expire(ctx, key, time.Minute))
		ok, err = store.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok, "Expire must not create keys")
	})

	t.Run("set and get", func(t *testing.T) {
		key := newKey()
		require.NoError(t, store.Set(ctx, key, []byte("one")))
		data, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("one"), data)

		require.NoError(t, store.SetEx(ctx, key, []byte("two"), time.Hour))
		data, err = store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), data)

		ok, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("setnx", func(t *testing.T) {
		key := newKey()
		ok, err := store.SetNX(ctx, key, []byte("first"))
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.SetNX(ctx, key, []byte("second"))
		require.NoError(t, err)
		assert.False(t, ok)

		data, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("first"), data)
	})

	t.Run("empty value", func(t *testing.T) {
		key := newKey()
		require.NoError(t, store.Set(ctx, key, []byte{}))
		data, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.NotNil(t, data)
		assert.Empty(t, data)
	})

	if advance == nil {
		return
	}

	t.Run("expiration", func(t *testing.T) {
		key := newKey()
		require.NoError(t, store.SetEx(ctx, key, []byte("v"), 10*time.Second))

		advance(5 * time.Second)
		require.NoError(t, store.Expire(ctx, key, 10*time.Second))

		advance(8 * time.Second)
		ok, err := store.Exists(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok, "Expire must slide the window")

		advance(5 * time.Second)
		ok, err = store.Exists(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)

		data, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Nil(t, data)

		ok, err = store.SetNX(ctx, key, []byte("reused"))
		require.NoError(t, err)
		assert.True(t, ok, "an expired key counts as absent")
	})

	t.Run("set clears expiration", func(t *testing.T) {
		key := newKey()
		require.NoError(t, store.SetEx(ctx, key, []byte("v"), 10*time.Second))
		require.NoError(t, store.Set(ctx, key, []byte("forever")))

		advance(time.Minute)
		data, err := store.Get(ctx, key)
		require.NoError(t, err)
		assert.Equal(t, []byte("forever"), data)
	})
}

func TestRedisStore_Contract(t *testing.T) {
	store, mr := newRedisTestStore(t)
	testStoreContract(t, store, mr.FastForward)
}

func TestRedisStore_KeyPrefix(t *testing.T) {
	base, mr := newRedisTestStore(t)
	store := NewRedisStore(base.client, "session:")

	require.NoError(t, store.Set(context.Background(), "ABC", []byte("v")))
	assert.True(t, mr.Exists("session:ABC"))
	assert.False(t, mr.Exists("ABC"))
}

func TestRedisStore_Unavailable(t *testing.T) {
	store, mr := newRedisTestStore(t)
	mr.Close()

	_, err := store.Get(context.Background(), "ABC")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, store.Ping(context.Background()), ErrStoreUnavailable)
}

func TestConnectRedis(t *testing.T) {
	_, mr := newRedisTestStore(t)

	client, err := ConnectRedis(context.Background(), RedisConfig{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)
	defer client.Close()

	_, err = ConnectRedis(context.Background(), RedisConfig{URL: "://bad"})
	assert.Error(t, err)
}

// fakeClock lets the SQL stores be driven past their expiration times.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time           { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestSQLiteStore(t *testing.T) (*SQLiteStore, *fakeClock) {
	t.Helper()
	store, err := NewSQLiteStore(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	clock := &fakeClock{now: time.Now()}
	store.now = clock.Now
	return store, clock
}

func TestSQLiteStore_Contract(t *testing.T) {
	store, clock := newTestSQLiteStore(t)
	testStoreContract(t, store, clock.Advance)
}

func TestSQLiteStore_Cleanup(t *testing.T) {
	store, clock := newTestSQLiteStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetEx(ctx, "EXPIRED", []byte("v"), time.Second))
	require.NoError(t, store.SetEx(ctx, "LIVE", []byte("v"), time.Hour))
	require.NoError(t, store.Set(ctx, "FOREVER", []byte("v")))

	clock.Advance(time.Minute)
	require.NoError(t, store.Cleanup(ctx))

	var n int
	require.NoError(t, store.db.QueryRow("SELECT COUNT(*) FROM kv_sessions").Scan(&n))
	assert.Equal(t, 2, n)

	ok, err := store.Exists(ctx, "LIVE")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSQLiteStore_WithSessions(t *testing.T) {
	store, _ := newTestSQLiteStore(t)
	ctx := context.Background()

	s := openTestSession(t, store, sessionParams{timeout: testTimeout})
	require.NoError(t, s.Set(ctx, "user", "alice"))
	require.NoError(t, s.Flash(ctx, "welcome", "", false))

	loaded := reload(t, s)
	assert.Equal(t, "alice", loaded.values["user"])
	msgs, err := loaded.PopFlash(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"welcome"}, msgs)
}

func TestPostgreSQLStore_Contract(t *testing.T) {
	store, err := NewPostgreSQLStore(getTestPostgreSQLDSN())
	if err != nil {
		t.Skipf("Skipping PostgreSQL test: %v (is PostgreSQL running?)", err)
	}
	defer store.Close()

	clock := &fakeClock{now: time.Now()}
	store.now = clock.Now
	testStoreContract(t, store, clock.Advance)
}

func TestMemcachedStore_Contract(t *testing.T) {
	store := NewMemcachedStore(getTestMemcachedServer())
	if err := store.client.Ping(); err != nil {
		t.Skipf("Skipping Memcached test: %v (is Memcached running?)", err)
	}
	testStoreContract(t, store, nil)
}
