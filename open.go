package kvsession

import (
	"context"
	"fmt"
	"strings"
)

// OpenStore builds the store selected by cfg.Backend.
func OpenStore(ctx context.Context, cfg StoreConfig) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "redis":
		client, err := ConnectRedis(ctx, RedisConfig{
			URL:            cfg.RedisURL,
			RetryAttempts:  cfg.RedisRetryAttempts,
			RetryInterval:  cfg.RedisRetryInterval,
			ConnectTimeout: cfg.RedisConnectTimeout,
		})
		if err != nil {
			return nil, err
		}
		return NewRedisStore(client, cfg.KeyPrefix), nil
	case "memcached":
		return NewMemcachedStoreWithConfig(MemcachedConfig{
			Servers:   cfg.MemcachedServers,
			KeyPrefix: cfg.KeyPrefix,
			Timeout:   cfg.MemcachedTimeout,
		}), nil
	case "postgres", "postgresql":
		return NewPostgreSQLStore(cfg.PostgresDSN)
	case "sqlite":
		return NewSQLiteStore(cfg.SQLitePath)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidStoreBackend, cfg.Backend)
	}
}
