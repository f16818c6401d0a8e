// Package config loads application configuration from environment
// variables.  A .env file, when present, is applied by main before Load.
package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Supported DB_DRIVER values.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env  string `env:"APP_ENV" envDefault:"dev"`
	Port string `env:"APP_PORT,notEmpty"`

	DBDriver      string `env:"DB_DRIVER" envDefault:"mysql"`
	DBUser        string `env:"DB_USER"`
	DBPass        string `env:"DB_PASS"`
	DBHost        string `env:"DB_HOST"`
	DBPort        string `env:"DB_PORT" envDefault:"3306"`
	DBName        string `env:"DB_NAME"`
	SQLitePath    string `env:"DB_SQLITE_PATH" envDefault:"sponsorship.db"`
	DBAutoMigrate bool   `env:"DB_AUTO_MIGRATE" envDefault:"false"`

	JWTSecret      string `env:"JWT_SECRET,notEmpty"`
	AccessTTLMin   int    `env:"ACCESS_TOKEN_TTL_MIN" envDefault:"15"`
	RefreshTTLDays int    `env:"REFRESH_TOKEN_TTL_DAYS" envDefault:"30"`
	BcryptCost     int    `env:"BCRYPT_COST" envDefault:"12"`

	// DefaultLanguage is used when a request carries no Accept-Language
	// or asks for a language the catalog has no strings for.
	DefaultLanguage string `env:"DEFAULT_LANGUAGE" envDefault:"en"`

	AMQPURL         string `env:"AMQP_URL"`
	DecisionQueue   string `env:"PARTNERSHIP_QUEUE" envDefault:"partnership.decisions"`
	DecisionLogPath string `env:"PARTNERSHIP_LOG_PATH" envDefault:"logs/partnership.log"`

	PricingCacheTTL time.Duration `env:"PRICING_CACHE_TTL" envDefault:"5m"`

	OTelEndpoint string `env:"OTEL_EXPORTER_ENDPOINT"`
	ServiceName  string `env:"OTEL_SERVICE_NAME" envDefault:"sponsorship-partnerships"`
}

// Parse reads the configuration and reports missing or malformed values as
// an error.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	cfg.DBDriver = strings.ToLower(strings.TrimSpace(cfg.DBDriver))
	switch cfg.DBDriver {
	case DriverMySQL:
		for key, v := range map[string]string{"DB_USER": cfg.DBUser, "DB_HOST": cfg.DBHost, "DB_NAME": cfg.DBName} {
			if v == "" {
				return Config{}, fmt.Errorf("missing required env var: %s", key)
			}
		}
	case DriverSQLite:
	default:
		return Config{}, fmt.Errorf("unsupported DB_DRIVER %q", cfg.DBDriver)
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		return Config{}, fmt.Errorf("invalid BCRYPT_COST %d", cfg.BcryptCost)
	}
	return cfg, nil
}

// Load is Parse for program startup: any error is fatal.
func Load() Config {
	cfg, err := Parse()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	return cfg
}

// AccessTTL is the lifetime of access tokens.
func (c Config) AccessTTL() time.Duration { return time.Duration(c.AccessTTLMin) * time.Minute }

// RefreshTTL is the lifetime of refresh tokens.
func (c Config) RefreshTTL() time.Duration {
	return time.Duration(c.RefreshTTLDays) * 24 * time.Hour
}
