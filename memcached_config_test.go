package kvsession

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// getTestMemcachedServer returns the Memcached address for testing.
// It checks the MEMCACHED_TEST_SERVER environment variable, or uses a default.
func getTestMemcachedServer() string {
	server := os.Getenv("MEMCACHED_TEST_SERVER")
	if server == "" {
		server = "localhost:11211"
	}
	return server
}

func TestMemcachedStore_TimeoutConfig(t *testing.T) {
	t.Run("Default Timeout", func(t *testing.T) {
		store := NewMemcachedStore("localhost:11211")
		assert.Equal(t, time.Second, store.client.Timeout)
	})

	t.Run("Custom Timeout", func(t *testing.T) {
		store := NewMemcachedStoreWithConfig(MemcachedConfig{
			Servers: []string{"localhost:11211"},
			Timeout: 5 * time.Second,
		})
		assert.Equal(t, 5*time.Second, store.client.Timeout)
	})

	t.Run("No Timeout (Explicit 0)", func(t *testing.T) {
		store := NewMemcachedStoreWithConfig(MemcachedConfig{
			Servers: []string{"localhost:11211"},
			Timeout: 0,
		})
		assert.Zero(t, store.client.Timeout)
	})
}

func TestMemcachedStore_KeyPrefix(t *testing.T) {
	store := NewMemcachedStoreWithConfig(MemcachedConfig{
		Servers:   []string{"localhost:11211"},
		KeyPrefix: "session:",
	})
	assert.Equal(t, "session:ABC", store.key("ABC"))
}
