package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
// All environment variables are read here and nowhere else.
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production

	// Database
	Database DatabaseConfig

	// Redis
	Redis RedisConfig

	// External APIs
	AlphaVantage AlphaVantageConfig
	Polygon      PolygonConfig
	Yahoo        YahooConfig
	ETFDB        ETFDBConfig

	// Backfill
	Backfill BackfillConfig

	// Logging
	LogLevel  string
	LogFormat string
}

// RedisConfig holds Redis configuration.
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
}

// DatabaseConfig holds PostgreSQL configuration.
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	URL      string

	// Connection pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// AlphaVantageConfig holds Alpha Vantage API configuration.
// The free tier allows 5 requests per minute and 25 per day.
type AlphaVantageConfig struct {
	APIKey      string
	BaseURL     string
	PerMinute   int
	DailyBudget int
}

// PolygonConfig holds Polygon.io API configuration.
type PolygonConfig struct {
	APIKey  string
	BaseURL string
}

// YahooConfig holds Yahoo Finance configuration.
type YahooConfig struct {
	BaseURL string
}

// ETFDBConfig holds ETF Database screener configuration.
type ETFDBConfig struct {
	BaseURL  string
	PageSize int
}

// BackfillConfig holds backfill orchestrator tuning.
type BackfillConfig struct {
	Workers      int
	MaxAttempts  int
	RequestDelay time.Duration
	StalenessTTL time.Duration
	ClaimTimeout time.Duration
}

// Load reads configuration from environment variables.
// Only this function calls os.Getenv().
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		// Server
		Port: getEnv("PORT", "8089"),
		Env:  getEnv("ENV", "development"),

		// Database
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			Name:            getEnv("DB_NAME", "portrec"),
			User:            getEnv("DB_USER", "portrec"),
			Password:        getEnv("DB_PASSWORD", ""),
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 25),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 5),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		// Redis
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
		},

		// External APIs
		AlphaVantage: AlphaVantageConfig{
			APIKey:      getEnv("ALPHA_VANTAGE_API_KEY", ""),
			BaseURL:     getEnv("ALPHA_VANTAGE_BASE_URL", "https://www.alphavantage.co"),
			PerMinute:   getEnvAsInt("ALPHA_VANTAGE_PER_MINUTE", 5),
			DailyBudget: getEnvAsInt("ALPHA_VANTAGE_DAILY_BUDGET", 25),
		},

		Polygon: PolygonConfig{
			APIKey:  getEnv("POLYGON_API_KEY", ""),
			BaseURL: getEnv("POLYGON_BASE_URL", "https://api.polygon.io"),
		},

		Yahoo: YahooConfig{
			BaseURL: getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
		},

		ETFDB: ETFDBConfig{
			BaseURL:  getEnv("ETFDB_BASE_URL", "https://etfdb.com"),
			PageSize: getEnvAsInt("ETFDB_PAGE_SIZE", 25),
		},

		// Backfill
		Backfill: BackfillConfig{
			Workers:      getEnvAsInt("BACKFILL_WORKERS", 4),
			MaxAttempts:  getEnvAsInt("BACKFILL_MAX_ATTEMPTS", 3),
			RequestDelay: getEnvAsDuration("BACKFILL_REQUEST_DELAY", "300ms"),
			StalenessTTL: getEnvAsDuration("BACKFILL_STALENESS_TTL", "168h"),
			ClaimTimeout: getEnvAsDuration("BACKFILL_CLAIM_TIMEOUT", "30s"),
		},

		// Logging
		LogLevel:  getEnv("LOG_LEVEL", "debug"),
		LogFormat: getEnv("LOG_FORMAT", "json"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	// Database URL is required
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	// Validate environment
	if c.Env != "development" && c.Env != "staging" && c.Env != "production" {
		return fmt.Errorf("ENV must be one of: development, staging, production")
	}

	if c.Backfill.Workers < 1 {
		return fmt.Errorf("BACKFILL_WORKERS must be at least 1")
	}

	return nil
}

// Helper functions (private, only used within this file)

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	// Try paths in order of priority
	paths := []string{
		".env",
	}

	// Also try relative to executable
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
			filepath.Join(exeDir, "..", "..", ".env"),
		)
	}

	for _, path := range paths {
		if _, err := os.Stat(path); err == nil {
			_ = godotenv.Load(path)
			return
		}
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue string) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		valueStr = defaultValue
	}

	duration, err := time.ParseDuration(valueStr)
	if err != nil {
		// Fallback to default
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
