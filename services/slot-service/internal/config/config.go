// Package config loads slot-service settings from the environment.
package config

import (
	"strings"
	"time"

	libconfig "github.com/md-rashed-zaman/slotbook/libs/config"
	"github.com/md-rashed-zaman/slotbook/libs/errs"
	otelx "github.com/md-rashed-zaman/slotbook/libs/otel"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

type Config struct {
	ServiceName string `envconfig:"SERVICE_NAME" default:"slot-service"`
	Port        string `envconfig:"PORT" default:"8080"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	Store    Store
	Cache    Cache
	Workflow Workflow
	Auth     Auth
	HTTP     HTTP
	Otel     otelx.Config
}

type Store struct {
	Driver      string        `envconfig:"STORE_DRIVER" default:"postgres"`
	DatabaseURL string        `envconfig:"DATABASE_URL"`
	MaxConns    int32         `envconfig:"DB_MAX_CONNS" default:"10"`
	AutoMigrate bool          `envconfig:"DB_AUTO_MIGRATE" default:"true"`
	Timeout     time.Duration `envconfig:"STORE_TIMEOUT" default:"3s"`
}

// Cache is disabled when RedisAddr is empty.
type Cache struct {
	RedisAddr     string        `envconfig:"REDIS_ADDR"`
	RedisPassword string        `envconfig:"REDIS_PASSWORD"`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	TTL           time.Duration `envconfig:"CACHE_TTL" default:"30s"`
	Timeout       time.Duration `envconfig:"CACHE_TIMEOUT" default:"250ms"`
	// Key overrides cache.AvailableSlotsKey when set.
	Key string `envconfig:"CACHE_KEY"`
}

// Workflow signals are dropped when Brokers is empty.
type Workflow struct {
	Brokers string        `envconfig:"KAFKA_BROKERS"`
	Topic   string        `envconfig:"WORKFLOW_TOPIC" default:"slot.status.changed.v1"`
	Timeout time.Duration `envconfig:"WORKFLOW_TIMEOUT" default:"2s"`
}

type Auth struct {
	JWTSecret   string        `envconfig:"JWT_SECRET"`
	JWKSURL     string        `envconfig:"JWKS_URL"`
	JWKSTTL     time.Duration `envconfig:"JWKS_CACHE_TTL" default:"5m"`
	JWTIssuer   string        `envconfig:"JWT_ISSUER"`
	JWTAudience string        `envconfig:"JWT_AUDIENCE"`
}

type HTTP struct {
	RateLimitPerMinute int           `envconfig:"RATE_LIMIT_PER_MINUTE" default:"30"`
	RateLimitBurst     int           `envconfig:"RATE_LIMIT_BURST" default:"10"`
	RateLimitPrefix    string        `envconfig:"RATE_LIMIT_PREFIX" default:"rl:book"`
	RateLimitFailOpen  bool          `envconfig:"RATE_LIMIT_FAIL_OPEN" default:"true"`
	CORSAllowedOrigins string        `envconfig:"CORS_ALLOWED_ORIGINS"`
	BodyLimitBytes     int64         `envconfig:"REQUEST_BODY_LIMIT_BYTES" default:"65536"`
	RequestTimeout     time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
}

func Load() (Config, error) {
	var cfg Config
	if err := libconfig.Load(&cfg); err != nil {
		return Config{}, err
	}
	cfg.Otel.ServiceName = cfg.ServiceName
	cfg.Store.Driver = strings.ToLower(strings.TrimSpace(cfg.Store.Driver))
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if err := libconfig.ValidatePort("PORT", c.Port); err != nil {
		return err
	}
	switch c.Store.Driver {
	case DriverPostgres:
		if strings.TrimSpace(c.Store.DatabaseURL) == "" {
			return errs.Newf("DATABASE_URL is required when STORE_DRIVER=%s", DriverPostgres)
		}
	case DriverMemory:
	default:
		return errs.Newf("STORE_DRIVER must be %s or %s (got %q)", DriverPostgres, DriverMemory, c.Store.Driver)
	}
	if c.Cache.Timeout >= time.Second {
		return errs.Newf("CACHE_TIMEOUT must be sub-second (got %s)", c.Cache.Timeout)
	}
	if c.Auth.JWTSecret == "" && c.Auth.JWKSURL == "" {
		return errs.New("JWT_SECRET or JWKS_URL is required for the admin api")
	}
	return nil
}
