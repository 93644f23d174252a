package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// Load .env file if it exists (silent fail if not)
	_ = godotenv.Load()
}

// Completion policies.
const (
	CompletionEither = "either"
	CompletionBuyer  = "buyer"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	App      AppConfig
	Cache    CacheConfig
	Database DatabaseConfig
	Auth     AuthConfig
	Market   MarketConfig
	Notify   NotifyConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"SERVER_PORT" default:"8080"`
	ReadTimeout     time.Duration `envconfig:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `envconfig:"SERVER_WRITE_TIMEOUT" default:"30s"`
	ShutdownTimeout time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`
	AllowedOrigins  []string      `envconfig:"SERVER_ALLOWED_ORIGINS" default:"*"`
}

// AppConfig holds application-level settings.
type AppConfig struct {
	Name        string `envconfig:"APP_NAME" default:"campustrade-api"`
	Environment string `envconfig:"APP_ENV" default:"development"`
	LogLevel    string `envconfig:"APP_LOG_LEVEL" default:""`
	Version     string `envconfig:"APP_VERSION" default:"1.0.0"`
}

// CacheConfig holds cache and Redis settings.
type CacheConfig struct {
	Type string        `envconfig:"CACHE_TYPE" default:"memory"` // memory or redis
	TTL  time.Duration `envconfig:"CACHE_TTL" default:"5m"`

	RedisEnabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// DatabaseConfig holds relational store settings.
type DatabaseConfig struct {
	Type     string `envconfig:"DB_TYPE" default:"sqlite"` // sqlite, postgres, or mysql
	Path     string `envconfig:"DB_PATH" default:"./data/campustrade.db"`
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"0"`
	Name     string `envconfig:"DB_NAME" default:"campustrade"`
	User     string `envconfig:"DB_USER" default:"campustrade"`
	Password string `envconfig:"DB_PASS" default:""`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
}

// AuthConfig holds token settings.
type AuthConfig struct {
	JWTSecret   string        `envconfig:"AUTH_JWT_SECRET" default:"change-me"`
	TokenTTL    time.Duration `envconfig:"AUTH_TOKEN_TTL" default:"24h"`
	AdminEmails []string      `envconfig:"AUTH_ADMIN_EMAILS" default:""`
}

// MarketConfig holds transaction policy flags.
type MarketConfig struct {
	// ReserveOnOffer moves a listing to pending as soon as an offer is made.
	ReserveOnOffer bool `envconfig:"MARKET_RESERVE_ON_OFFER" default:"false"`
	// CompletionPolicy is "either" (buyer or seller confirms) or "buyer".
	CompletionPolicy string `envconfig:"MARKET_COMPLETION_POLICY" default:"either"`
}

// NotifyConfig holds push delivery and retention settings.
type NotifyConfig struct {
	QueueSize         int           `envconfig:"NOTIFY_QUEUE_SIZE" default:"1024"`
	RetentionInterval time.Duration `envconfig:"NOTIFY_RETENTION_INTERVAL" default:"0"`
	RetentionAge      time.Duration `envconfig:"NOTIFY_RETENTION_AGE" default:"720h"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (c *CacheConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// PostgresDSN returns the PostgreSQL connection string.
func (d *DatabaseConfig) PostgresDSN() string {
	port := d.Port
	if port == 0 {
		port = 5432
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, port, d.Name, d.SSLMode)
}

// MySQLDSN returns the MySQL data source name.
func (d *DatabaseConfig) MySQLDSN() string {
	port := d.Port
	if port == 0 {
		port = 3306
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&loc=UTC",
		d.User, d.Password, d.Host, port, d.Name)
}

// IsAdminEmail reports whether email is configured as an administrator.
func (a *AuthConfig) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, admin := range a.AdminEmails {
		if strings.ToLower(strings.TrimSpace(admin)) == email && email != "" {
			return true
		}
	}
	return false
}

// BuyerOnlyCompletion reports whether only the buyer may confirm completion.
func (m *MarketConfig) BuyerOnlyCompletion() bool {
	return m.CompletionPolicy == CompletionBuyer
}

// IsProduction returns true if running in production mode.
func (a *AppConfig) IsProduction() bool {
	return a.Environment == "production"
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	switch c.Database.Type {
	case "sqlite", "postgres", "postgresql", "mysql":
	default:
		return fmt.Errorf("unsupported DB_TYPE %q", c.Database.Type)
	}
	switch c.Cache.Type {
	case "memory", "redis":
	default:
		return fmt.Errorf("unsupported CACHE_TYPE %q", c.Cache.Type)
	}
	if c.Cache.Type == "redis" && !c.Cache.RedisEnabled {
		return fmt.Errorf("CACHE_TYPE=redis requires REDIS_ENABLED=true")
	}
	switch c.Market.CompletionPolicy {
	case CompletionEither, CompletionBuyer:
	default:
		return fmt.Errorf("unsupported MARKET_COMPLETION_POLICY %q", c.Market.CompletionPolicy)
	}
	if c.Notify.QueueSize < 1 {
		return fmt.Errorf("NOTIFY_QUEUE_SIZE must be positive")
	}
	return nil
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
