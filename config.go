package kvsession

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/caarlos0/env/v11"
)

// DefaultTimeout is used by NewFactory when Config.Timeout is zero.
const DefaultTimeout = 20 * time.Minute

// Config configures a Factory. Fields tagged with env can be loaded with
// LoadConfig.
type Config struct {
	Secret        string        `env:"SESSION_SECRET,required"`
	Timeout       time.Duration `env:"SESSION_TIMEOUT" envDefault:"20m"` // 0 uses DefaultTimeout; negative never expires.
	RefreshPeriod time.Duration `env:"SESSION_REFRESH_PERIOD"`           // Minimum time between TTL refreshes on reads. 0 refreshes on every read.

	CookieName     string `env:"SESSION_COOKIE_NAME" envDefault:"session"`
	CookieMaxAge   int    `env:"SESSION_COOKIE_MAX_AGE"` // Seconds. 0 means a browser-session cookie.
	CookiePath     string `env:"SESSION_COOKIE_PATH" envDefault:"/"`
	CookieDomain   string `env:"SESSION_COOKIE_DOMAIN"`
	CookieSecure   *bool  `env:"SESSION_COOKIE_SECURE"`    // nil follows the request's TLS state.
	CookieHTTPOnly *bool  `env:"SESSION_COOKIE_HTTP_ONLY"` // nil defaults to true.
	CookieSameSite http.SameSite

	// CookieOnException allows the session cookie on 5xx responses. nil defaults to true.
	CookieOnException *bool `env:"SESSION_COOKIE_ON_EXCEPTION"`

	MaxSessionBytes  int           `env:"SESSION_MAX_BYTES"` // Maximum size in bytes of the encoded payload. 0 means unlimited.
	MaxAllocAttempts int           `env:"SESSION_MAX_ALLOC_ATTEMPTS" envDefault:"16"`
	CleanupInterval  time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"10m"` // Only used with stores implementing Cleaner.

	Codec  Codec
	Logger *slog.Logger
}

// LoadConfig reads a Config from SESSION_* environment variables.
func LoadConfig() (Config, error) {
	return env.ParseAs[Config]()
}

// StoreConfig selects and configures a store backend for OpenStore.
type StoreConfig struct {
	Backend   string `env:"SESSION_STORE" envDefault:"redis"` // redis, memcached, postgres or sqlite
	KeyPrefix string `env:"SESSION_KEY_PREFIX"`

	RedisURL            string        `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	RedisRetryAttempts  int           `env:"REDIS_RETRY_ATTEMPTS" envDefault:"3"`
	RedisRetryInterval  time.Duration `env:"REDIS_RETRY_INTERVAL" envDefault:"5s"`
	RedisConnectTimeout time.Duration `env:"REDIS_CONNECT_TIMEOUT" envDefault:"30s"`

	MemcachedServers []string      `env:"MEMCACHED_SERVERS" envSeparator:"," envDefault:"127.0.0.1:11211"`
	MemcachedTimeout time.Duration `env:"MEMCACHED_TIMEOUT" envDefault:"1s"`

	PostgresDSN string `env:"POSTGRES_DSN"`
	SQLitePath  string `env:"SQLITE_PATH" envDefault:"sessions.db"`
}

// LoadStoreConfig reads a StoreConfig from the environment.
func LoadStoreConfig() (StoreConfig, error) {
	return env.ParseAs[StoreConfig]()
}
