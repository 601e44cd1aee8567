package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Storage backends for session state.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (STOREFRONT_ prefix), flags, or YAML config files.
type Config struct {
	Addr      string `default:"0.0.0.0:8080" usage:"HTTP listen address"`
	Upstream  UpstreamConfig
	Storage   StorageConfig
	Session   SessionConfig
	Payment   PaymentConfig
	RateLimit RateLimitConfig
	CORS      CORSConfig
	Graceful  GracefulConfig
}

// UpstreamConfig points at the bookstore API.
type UpstreamConfig struct {
	BaseURL         string        `default:"http://localhost:8081/api" usage:"Bookstore API base URL" flag:"upstream-url"`
	Timeout         time.Duration `default:"10s" usage:"Per-request upstream timeout"`
	BreakerFailures uint32        `default:"5"   usage:"Consecutive upstream failures before the circuit opens"`
	BreakerTimeout  time.Duration `default:"30s" usage:"How long the circuit stays open"`
}

// StorageConfig selects where session state is persisted.
type StorageConfig struct {
	Backend     string        `default:"memory" usage:"Session store: memory, redis or postgres"`
	RedisURL    string        `usage:"Redis URL (STOREFRONT_STORAGE_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	DatabaseURL string        `usage:"PostgreSQL URL (STOREFRONT_STORAGE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	TTL         time.Duration `default:"720h" usage:"Lifetime of persisted session state"`
	Pool        PoolConfig
}

// PoolConfig sizes the PostgreSQL connection pool.
type PoolConfig struct {
	MaxConns        int32         `default:"8"   usage:"Maximum PostgreSQL connections"`
	MinConns        int32         `default:"1"   usage:"Connections kept open when idle"`
	MaxConnIdleTime time.Duration `default:"5m"  usage:"Close connections idle for longer than this"`
	MaxConnLifetime time.Duration `default:"1h"  usage:"Recycle connections older than this"`
}

// SessionConfig controls the session cookie and in-memory sessions.
type SessionConfig struct {
	CookieName     string        `default:"storefront_session" usage:"Session cookie name"`
	CookieMaxAge   time.Duration `default:"720h" usage:"Session cookie lifetime"`
	Secure         bool          `default:"false" usage:"Mark the session cookie Secure" flag:"secure-cookie"`
	IdleTimeout    time.Duration `default:"30m" usage:"Evict sessions idle for longer than this from memory"`
	RequestTimeout time.Duration `default:"15s" usage:"Deadline for API requests"`
	SuggestDelay   time.Duration `default:"300ms" usage:"Debounce delay for search suggestions"`
	SuggestLimit   int           `default:"10" usage:"Maximum search suggestions returned"`
}

// PaymentConfig holds the VNPay merchant settings.
type PaymentConfig struct {
	HashSecret string `usage:"VNPay hash secret; empty disables return signature checks" flag:"vnpay-hash-secret"`
}

// RateLimitConfig throttles login attempts and order submissions per client.
type RateLimitConfig struct {
	Max    int           `default:"10" usage:"Max login or order attempts per window"`
	Window time.Duration `default:"1m" usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"true" usage:"Allow credentials (the session cookie)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "STOREFRONT",
		Files:     []string{"config.yaml", "/etc/storefront/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(os.Getenv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	if c.Upstream.BaseURL == "" {
		return errors.New("upstream URL is required: set STOREFRONT_UPSTREAM_BASE_URL")
	}
	switch c.Storage.Backend {
	case BackendMemory:
	case BackendRedis:
		if c.Storage.RedisURL == "" {
			return errors.New("redis URL is required: set STOREFRONT_STORAGE_REDIS_URL or REDIS_URL")
		}
	case BackendPostgres:
		if c.Storage.DatabaseURL == "" {
			return errors.New("database URL is required: set STOREFRONT_STORAGE_DATABASE_URL or DATABASE_URL")
		}
	default:
		return errors.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.Backend == BackendPostgres && c.Storage.Pool.MinConns > c.Storage.Pool.MaxConns {
		return errors.New("pool min conns must not exceed max conns")
	}
	if c.Session.SuggestDelay < 0 || c.Session.SuggestLimit <= 0 {
		return errors.New("suggest delay must not be negative and suggest limit must be positive")
	}
	if c.RateLimit.Max <= 0 || c.RateLimit.Window <= 0 {
		return errors.New("rate limit max and window must be positive")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like REDIS_URL and PORT to the
// application's STOREFRONT_-prefixed configuration.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	if c.Storage.RedisURL == "" {
		c.Storage.RedisURL = getenv("REDIS_URL")
	}
	if c.Storage.DatabaseURL == "" {
		c.Storage.DatabaseURL = getenv("DATABASE_URL")
	}
	if port := getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}
