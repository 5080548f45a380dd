package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-envconfig"
)

const (
	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

type Config struct {
	Port        string `env:"PORT,         default=8080"`
	Env         string `env:"ENV,          default=development"`
	LogLevel    string `env:"LOG_LEVEL,    default=info"`
	DebugBanner bool   `env:"DEBUG_BANNER, default=false"`
	PhoneRegion string `env:"PHONE_REGION, default=UG"`

	Backend BackendConfig
	Session SessionConfig
	Audit   AuditConfig
	Redis   RedisConfig
	Mongo   MongoConfig
}

type BackendConfig struct {
	URL     string        `env:"BACKEND_URL,      required"`
	AnonKey string        `env:"BACKEND_ANON_KEY, required"`
	Timeout time.Duration `env:"BACKEND_TIMEOUT,  default=10s"`
	SiteURL string        `env:"SITE_URL"`
}

type SessionConfig struct {
	Store        string        `env:"SESSION_STORE,        default=memory"`
	Key          string        `env:"SESSION_KEY,          default=marketplace:session"`
	PollInterval time.Duration `env:"SIGNIN_POLL_INTERVAL, default=200ms"`
	PollBudget   time.Duration `env:"SIGNIN_POLL_BUDGET,   default=6s"`
}

type AuditConfig struct {
	Enabled bool `env:"AUDIT_ENABLED, default=false"`
}

type MongoConfig struct {
	URI      string `env:"MONGO_URI, default=mongodb://localhost:27017"`
	Database string `env:"MONGO_DB,  default=marketplace"`
}

type RedisConfig struct {
	Addr     string `env:"REDIS_ADDR,     default=localhost:6379"`
	Password string `env:"REDIS_PASSWORD"`
	DB       int    `env:"REDIS_DB,       default=0"`
}

// IsProduction reports whether ENV names a production deployment.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}

// Validate checks the values envconfig cannot.
func (c *Config) Validate() error {
	switch c.Session.Store {
	case SessionStoreMemory, SessionStoreRedis:
	default:
		return fmt.Errorf("SESSION_STORE must be %q or %q, got %q", SessionStoreMemory, SessionStoreRedis, c.Session.Store)
	}
	if c.Session.PollInterval <= 0 || c.Session.PollBudget <= 0 {
		return errors.New("SIGNIN_POLL_INTERVAL and SIGNIN_POLL_BUDGET must be positive")
	}
	return nil
}

// Load reads an optional .env file, then configuration from environment
// variables using go-envconfig. Values already set in the environment win.
func Load(log zerolog.Logger) *Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warn().Err(err).Msg("failed to read .env file")
	}

	cfg, err := Parse(context.Background(), envconfig.OsLookuper())
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	return cfg
}

// Parse processes configuration from lookuper and validates it.
func Parse(ctx context.Context, lookuper envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &cfg, Lookuper: lookuper}); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
