// Package config provides centralized configuration management.
//
// Configuration can be loaded from:
//  1. YAML file (config.yaml)
//  2. Environment variables (fallback)
//
// Example usage:
//
//	cfg := config.LoadOrEnv()
//	dbPath := cfg.Storage.DatabasePath
//	matcherCfg, err := cfg.Reconciliation.MatcherConfig()
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/eshaffer321/freight-reconcile/internal/domain/matcher"
)

// Storage drivers
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config represents the entire application configuration
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Storage        StorageConfig        `yaml:"storage"`
	Auth           AuthConfig           `yaml:"auth"`
	Reconciliation ReconciliationConfig `yaml:"reconciliation"`
	Observability  ObservabilityConfig  `yaml:"observability"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// StorageConfig holds database configuration
type StorageConfig struct {
	Driver       string `yaml:"driver"`        // sqlite or postgres
	DatabasePath string `yaml:"database_path"` // sqlite only
	PostgresURL  string `yaml:"postgres_url"`  // postgres only
}

// AuthConfig holds bearer token verification settings.
// An empty JWTSecret disables authentication.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
}

// ReconciliationConfig tunes statement matching
type ReconciliationConfig struct {
	AmountTolerance string        `yaml:"amount_tolerance"`
	DateWindowDays  int           `yaml:"date_window_days"`
	CandidateLimit  int           `yaml:"candidate_limit"`
	MaxSuggestions  int           `yaml:"max_suggestions"`
	MaxTransactions int           `yaml:"max_transactions"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Load reads and parses the config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables (e.g., ${JWT_SECRET})
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration from environment variables only
func LoadFromEnv() *Config {
	cfg := &Config{
		Server: ServerConfig{
			Port: getEnvInt("PORT", 8085),
		},
		Storage: StorageConfig{
			Driver:       getEnv("STORAGE_DRIVER", DriverSQLite),
			DatabasePath: getEnv("RECONCILE_DB_PATH", "reconcile.db"),
			PostgresURL:  os.Getenv("DATABASE_URL"),
		},
		Auth: AuthConfig{
			JWTSecret: os.Getenv("JWT_SECRET"),
		},
		Reconciliation: ReconciliationConfig{
			AmountTolerance: getEnv("RECONCILE_AMOUNT_TOLERANCE", "0.01"),
			DateWindowDays:  getEnvInt("RECONCILE_DATE_WINDOW_DAYS", 2),
			CandidateLimit:  getEnvInt("RECONCILE_CANDIDATE_LIMIT", 5),
			MaxSuggestions:  getEnvInt("RECONCILE_MAX_SUGGESTIONS", 3),
			MaxTransactions: getEnvInt("RECONCILE_MAX_TRANSACTIONS", 1000),
			RequestTimeout:  getEnvDuration("RECONCILE_REQUEST_TIMEOUT", 30*time.Second),
		},
		Observability: ObservabilityConfig{
			Logging: LoggingConfig{
				Level:  getEnv("LOG_LEVEL", "info"),
				Format: getEnv("LOG_FORMAT", "text"),
			},
		},
	}
	cfg.applyDefaults()
	return cfg
}

// LoadOrEnv tries to load from config.yaml, falls back to environment variables
func LoadOrEnv() *Config {
	return LoadOrEnv_WithPath("config.yaml")
}

// LoadOrEnv_WithPath tries to load from specified path, falls back to environment variables
func LoadOrEnv_WithPath(path string) *Config {
	if cfg, err := Load(path); err == nil {
		return cfg
	}
	return LoadFromEnv()
}

// applyDefaults fills zero values left by a partial YAML file
func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8085
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = DriverSQLite
	}
	if c.Storage.DatabasePath == "" {
		c.Storage.DatabasePath = "reconcile.db"
	}

	r := &c.Reconciliation
	if r.AmountTolerance == "" {
		r.AmountTolerance = "0.01"
	}
	if r.DateWindowDays == 0 {
		r.DateWindowDays = 2
	}
	if r.CandidateLimit == 0 {
		r.CandidateLimit = 5
	}
	if r.MaxSuggestions == 0 {
		r.MaxSuggestions = 3
	}
	if r.MaxTransactions == 0 {
		r.MaxTransactions = 1000
	}
	if r.RequestTimeout == 0 {
		r.RequestTimeout = 30 * time.Second
	}

	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = "info"
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = "text"
	}
}

// Validate checks settings that would otherwise fail later at startup
func (c *Config) Validate() error {
	switch c.Storage.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("storage.postgres_url is required for driver %q", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", c.Storage.Driver)
	}

	if _, err := c.Reconciliation.MatcherConfig(); err != nil {
		return err
	}
	return nil
}

// MatcherConfig converts the reconciliation section into matcher settings
func (r ReconciliationConfig) MatcherConfig() (matcher.Config, error) {
	tolerance, err := decimal.NewFromString(r.AmountTolerance)
	if err != nil {
		return matcher.Config{}, fmt.Errorf("reconciliation.amount_tolerance: %w", err)
	}
	if !tolerance.IsPositive() {
		return matcher.Config{}, fmt.Errorf("reconciliation.amount_tolerance must be positive, got %s", tolerance)
	}
	if r.DateWindowDays < 0 {
		return matcher.Config{}, fmt.Errorf("reconciliation.date_window_days must not be negative, got %d", r.DateWindowDays)
	}

	return matcher.Config{
		AmountTolerance: tolerance,
		DateWindowDays:  r.DateWindowDays,
		CandidateLimit:  r.CandidateLimit,
		MaxSuggestions:  r.MaxSuggestions,
		MaxTransactions: r.MaxTransactions,
	}, nil
}

// getEnv retrieves an environment variable with a fallback default
func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

// getEnvInt retrieves an integer environment variable with a fallback default
func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var result int
		if _, err := fmt.Sscanf(val, "%d", &result); err == nil {
			return result
		}
	}
	return fallback
}

// getEnvDuration retrieves a duration environment variable (e.g. "45s")
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
