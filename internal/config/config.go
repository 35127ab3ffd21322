package config

import (
	"fmt"
	"time"

	pkgconfig "github.com/calliri/hearth/pkg/config"
	"github.com/calliri/hearth/pkg/database"
)

const devJWTSecret = "dev-secret-change-me"

// Config holds all service configuration, loaded from environment
// variables.
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	HTTPPort    int    `env:"HTTP_PORT" envDefault:"8080"`

	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     int    `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"hearth"`
	PostgresPassword string `env:"POSTGRES_PASSWORD" envDefault:"hearth"`
	PostgresDB       string `env:"POSTGRES_DB" envDefault:"hearth"`
	PostgresSSLMode  string `env:"POSTGRES_SSLMODE" envDefault:"disable"`
	PostgresMaxConns int32  `env:"POSTGRES_MAX_CONNS" envDefault:"10"`
	PostgresMinConns int32  `env:"POSTGRES_MIN_CONNS" envDefault:"2"`

	// Redis is optional; when no host is set the login rate limiter runs
	// in process memory.
	RedisHost     string `env:"REDIS_HOST"`
	RedisPort     int    `env:"REDIS_PORT" envDefault:"6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka is optional; with no brokers configured, lifecycle events are
	// not published.
	KafkaBrokers []string `env:"KAFKA_BROKERS" envSeparator:","`

	JWTSecret       string        `env:"JWT_SECRET" envDefault:"dev-secret-change-me"`
	AccessTokenTTL  time.Duration `env:"ACCESS_TOKEN_TTL" envDefault:"15m"`
	RefreshTokenTTL time.Duration `env:"REFRESH_TOKEN_TTL" envDefault:"2160h"`
	InviteTTL       time.Duration `env:"INVITE_TTL" envDefault:"24h"`
	BcryptCost      int           `env:"BCRYPT_COST" envDefault:"12"`

	RateLimitMaxFailures int           `env:"RATE_LIMIT_MAX_FAILURES" envDefault:"5"`
	RateLimitWindow      time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`

	SeedAdminEmail string `env:"SEED_ADMIN_EMAIL" envDefault:"admin@hearth.local"`
	SeedAdminName  string `env:"SEED_ADMIN_NAME" envDefault:"Admin"`
	SeedUserEmail  string `env:"SEED_USER_EMAIL" envDefault:"family@hearth.local"`
	SeedUserName   string `env:"SEED_USER_NAME" envDefault:"Family"`

	DeviceSweepInterval time.Duration `env:"DEVICE_SWEEP_INTERVAL" envDefault:"1h"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	OTELEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	OTELEndpoint   string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT" envDefault:"localhost:4318"`
	OTELSampleRate float64 `env:"OTEL_SAMPLE_RATE" envDefault:"1.0"`

	ServiceVersion   string        `env:"SERVICE_VERSION" envDefault:"dev"`
	GracefulShutdown time.Duration `env:"GRACEFUL_SHUTDOWN_TIMEOUT" envDefault:"15s"`
}

// Load reads configuration from the environment and validates it.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := pkgconfig.Load(cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.IsProduction() && c.JWTSecret == devJWTSecret {
		return fmt.Errorf("JWT_SECRET must be set in production")
	}
	if c.AccessTokenTTL <= 0 || c.RefreshTokenTTL <= 0 || c.InviteTTL <= 0 {
		return fmt.Errorf("token TTLs must be positive")
	}
	if c.RateLimitMaxFailures < 1 {
		return fmt.Errorf("RATE_LIMIT_MAX_FAILURES must be at least 1")
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// RedisEnabled reports whether a Redis host is configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisHost != ""
}

// Postgres returns the database connection config.
func (c *Config) Postgres() *database.PostgresConfig {
	return &database.PostgresConfig{
		Host:            c.PostgresHost,
		Port:            c.PostgresPort,
		User:            c.PostgresUser,
		Password:        c.PostgresPassword,
		DBName:          c.PostgresDB,
		SSLMode:         c.PostgresSSLMode,
		MaxConns:        c.PostgresMaxConns,
		MinConns:        c.PostgresMinConns,
		MaxConnLifetime: time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
	}
}

// Redis returns the Redis connection config.
func (c *Config) Redis() database.RedisConfig {
	return database.RedisConfig{
		Host:     c.RedisHost,
		Port:     c.RedisPort,
		Password: c.RedisPassword,
		DB:       c.RedisDB,
	}
}
