package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Database DatabaseConfig
	JWT      JWTConfig
	App      AppConfig
	Redis    RedisConfig
	Payroll  PayrollConfig
}

type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"postgres"`
	Password string `envconfig:"DB_PASSWORD"`
	Name     string `envconfig:"DB_NAME" default:"pos_payroll"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	MaxConns int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	MinConns int32  `envconfig:"DB_MIN_CONNS" default:"0"`
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string        `envconfig:"JWT_SECRET_KEY"`
	AccessExpiration time.Duration `envconfig:"JWT_ACCESS_EXPIRATION_TIME" default:"1h"`
}

// AppConfig holds application configuration
type AppConfig struct {
	Port           int           `envconfig:"APP_PORT" default:"8080"`
	Env            string        `envconfig:"APP_ENV" default:"development"`
	LogLevel       string        `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat      string        `envconfig:"LOG_FORMAT" default:"json"`
	AllowedOrigins []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"http://localhost:3000"`
	ReadTimeout    time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	ShutdownGrace  time.Duration `envconfig:"APP_SHUTDOWN_GRACE" default:"30s"`
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

// PayrollConfig tunes report generation.
type PayrollConfig struct {
	ReportTimeout          time.Duration `envconfig:"PAYROLL_REPORT_TIMEOUT" default:"5m"`
	Workers                int           `envconfig:"PAYROLL_WORKERS" default:"8"`
	AmountDecimals         int32         `envconfig:"PAYROLL_AMOUNT_DECIMALS" default:"2"`
	CycleTolerance         time.Duration `envconfig:"PAYROLL_CYCLE_TOLERANCE" default:"140m"`
	UnknownCurrency        string        `envconfig:"PAYROLL_UNKNOWN_CURRENCY" default:"drop"`
	IncrementFromDecrement bool          `envconfig:"PAYROLL_INCREMENT_FROM_DECREMENT" default:"false"`
	LockTTL                time.Duration `envconfig:"PAYROLL_LOCK_TTL" default:"10m"`
}

func Load() (*Config, error) {
	// A missing .env is fine; the process environment still applies.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	config := &Config{}
	for name, section := range map[string]interface{}{
		"database": &config.Database,
		"jwt":      &config.JWT,
		"app":      &config.App,
		"redis":    &config.Redis,
		"payroll":  &config.Payroll,
	} {
		if err := envconfig.Process("", section); err != nil {
			return nil, fmt.Errorf("invalid %s configuration: %w", name, err)
		}
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	switch c.Payroll.UnknownCurrency {
	case "drop", "fail":
	default:
		return fmt.Errorf("PAYROLL_UNKNOWN_CURRENCY must be drop or fail, got %q", c.Payroll.UnknownCurrency)
	}
	if c.Payroll.Workers < 1 {
		return fmt.Errorf("PAYROLL_WORKERS must be positive")
	}
	if c.Payroll.AmountDecimals < 0 {
		return fmt.Errorf("PAYROLL_AMOUNT_DECIMALS must not be negative")
	}
	switch c.App.LogFormat {
	case "json", "text":
	default:
		return fmt.Errorf("LOG_FORMAT must be json or text, got %q", c.App.LogFormat)
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.App.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func (c *Config) IsProduction() bool {
	return c != nil && c.App.Env == "production"
}
