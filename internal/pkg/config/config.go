package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-envconfig"
)

type Config struct {
	Port     string `env:"PORT,      default=8080"`
	Env      string `env:"ENV,       default=development"`
	LogLevel string `env:"LOG_LEVEL, default=info"`

	// APIURL is the backend base URL, without a trailing slash.
	APIURL         string        `env:"API_URL,         default=http://localhost:3001/api"`
	UseMockAuth    bool          `env:"USE_MOCK_AUTH,   default=false"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT, default=15s"`

	Cookie  CookieConfig
	Session SessionConfig
	Mock    MockConfig
	Audit   AuditConfig

	Mongo MongoConfig
	Redis RedisConfig
}

type CookieConfig struct {
	Domain        string        `env:"COOKIE_DOMAIN"`
	AccessMaxAge  time.Duration `env:"COOKIE_ACCESS_MAX_AGE,  default=168h"`
	RefreshMaxAge time.Duration `env:"COOKIE_REFRESH_MAX_AGE, default=720h"`
}

type SessionConfig struct {
	RefreshGrace  time.Duration `env:"REFRESH_GRACE,          default=30s"`
	CacheTTL      time.Duration `env:"SESSION_CACHE_TTL,      default=720h"`
	CheckTimeout  time.Duration `env:"SESSION_CHECK_TIMEOUT,  default=15s"`
	WatchInterval time.Duration `env:"SESSION_WATCH_INTERVAL, default=60s"`
}

type MockConfig struct {
	JWTSecret  string        `env:"JWT_SECRET"`
	AccessTTL  time.Duration `env:"ACCESS_TOKEN_TTL,  default=15m"`
	RefreshTTL time.Duration `env:"REFRESH_TOKEN_TTL, default=720h"`
}

type AuditConfig struct {
	Enabled  bool   `env:"AUDIT_ENABLED,  default=true"`
	Workers  int    `env:"AUDIT_WORKERS,  default=4"`
	AMQPURI  string `env:"AMQP_URI"`
	Exchange string `env:"AMQP_EXCHANGE,  default=portal.auth"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=clinic_portal"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR, default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,   default=0"`
}

// IsProduction reports whether cookies must be marked Secure.
func (c *Config) IsProduction() bool {
	switch strings.ToLower(c.Env) {
	case "production", "prod":
		return true
	}
	return false
}

// Validate checks the settings that have no safe default.
func (c *Config) Validate() error {
	if c.UseMockAuth && c.Mock.JWTSecret == "" {
		return fmt.Errorf("config: JWT_SECRET is required when USE_MOCK_AUTH is set")
	}
	if !c.UseMockAuth && c.APIURL == "" {
		return fmt.Errorf("config: API_URL is required")
	}
	return nil
}

// Load reads configuration from environment variables using go-envconfig.
func Load() *Config {
	cfg, err := LoadFrom(context.Background(), envconfig.OsLookuper())
	if err != nil {
		panic(fmt.Sprintf("config: failed to load configuration: %v", err))
	}
	return cfg
}

// LoadFrom reads configuration through lookuper.
func LoadFrom(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{
		Target:   &cfg,
		Lookuper: lookuper,
	}); err != nil {
		return nil, err
	}
	cfg.APIURL = strings.TrimRight(cfg.APIURL, "/")
	return &cfg, nil
}
