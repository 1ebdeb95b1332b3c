package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
// ⭐ SSOT: every environment variable is read here and nowhere else
type Config struct {
	// Server
	Port string
	Env  string // development, staging, production, test

	Database DatabaseConfig
	Redis    RedisConfig

	Index       IndexConfig
	Acquisition AcquisitionConfig

	// Optional YAML methodology overriding Index and Acquisition
	MethodologyFile string

	// External sources
	Yahoo     YahooConfig
	Wikipedia WikipediaConfig

	// Export
	ExportDir string

	// Logging
	LogLevel  string
	LogFormat string

	// Monitoring
	MetricsEnabled bool

	// Scheduling (cron expressions with seconds)
	ScheduleAcquisition string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Enabled  bool
	Expiry   time.Duration // result cache TTL
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	URL string

	// Connection Pool
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// IndexConfig holds index construction parameters
type IndexConfig struct {
	Size int // number of constituents selected per trading date
}

// AcquisitionConfig holds market data acquisition parameters
type AcquisitionConfig struct {
	Days    int // look-back window in calendar days
	Workers int
}

// YahooConfig holds Yahoo Finance endpoints and pacing
type YahooConfig struct {
	BaseURL    string
	RatePerSec int
}

// WikipediaConfig holds the S&P 500 constituents page
type WikipediaConfig struct {
	SP500URL string
}

// Load reads configuration from environment variables
// ⭐ SSOT: the only function calling os.Getenv()
func Load() (*Config, error) {
	loadEnvFile()

	cfg := &Config{
		Port: getEnv("PORT", "8000"),
		Env:  getEnv("ENV", "development"),

		Database: DatabaseConfig{
			URL:             getEnv("DATABASE_URL", ""),
			MaxConns:        getEnvAsInt("DB_MAX_CONNS", 10),
			MinConns:        getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConnLifetime: getEnvAsDuration("DB_MAX_CONN_LIFETIME", "1h"),
			MaxConnIdleTime: getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", "30m"),
		},

		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Enabled:  getEnvAsBool("REDIS_ENABLED", true),
			Expiry:   time.Duration(getEnvAsInt("REDIS_EXPIRY", 3600)) * time.Second,
		},

		Index: IndexConfig{
			Size: getEnvAsInt("INDEX_SIZE", 100),
		},

		Acquisition: AcquisitionConfig{
			Days:    getEnvAsInt("DATA_ACQUISITION_DAYS", 30),
			Workers: getEnvAsInt("ACQUISITION_WORKERS", 5),
		},

		MethodologyFile: getEnv("INDEX_METHODOLOGY", ""),

		Yahoo: YahooConfig{
			BaseURL:    getEnv("YAHOO_BASE_URL", "https://query1.finance.yahoo.com"),
			RatePerSec: getEnvAsInt("YAHOO_RATE_PER_SEC", 2),
		},

		Wikipedia: WikipediaConfig{
			SP500URL: getEnv("WIKIPEDIA_SP500_URL", "https://en.wikipedia.org/wiki/List_of_S%26P_500_companies"),
		},

		ExportDir: getEnv("EXPORT_DIR", filepath.Join(os.TempDir(), "eqindex-exports")),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "json"),

		MetricsEnabled: getEnvAsBool("METRICS_ENABLED", true),

		ScheduleAcquisition: getEnv("SCHEDULE_ACQUISITION", "0 0 18 * * MON-FRI"),
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// validate checks if required configuration values are set
func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	switch c.Env {
	case "development", "staging", "production", "test":
	default:
		return fmt.Errorf("ENV must be one of: development, staging, production, test")
	}

	if c.Index.Size <= 0 {
		return fmt.Errorf("INDEX_SIZE must be positive, got %d", c.Index.Size)
	}

	if c.Acquisition.Workers <= 0 {
		return fmt.Errorf("ACQUISITION_WORKERS must be positive, got %d", c.Acquisition.Workers)
	}

	return nil
}

// RedisAddr returns host:port for the Redis client
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}

// loadEnvFile tries to load .env from multiple locations
func loadEnvFile() {
	paths := []string{
		".env",
		"backend/.env",
	}

	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		paths = append(paths,
			filepath.Join(exeDir, ".env"),
			filepath.Join(exeDir, "..", ".env"),
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
		duration, _ = time.ParseDuration(defaultValue)
	}

	return duration
}
