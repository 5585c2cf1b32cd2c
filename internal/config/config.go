package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	TVDB      TVDBConfig
	Discovery DiscoveryConfig
	Log       LogConfig
}

type ServerConfig struct {
	Env  string
	Port string
	Host string
}

type DatabaseConfig struct {
	URL string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	TLS      bool
}

type TVDBConfig struct {
	APIKey string
	// PIN is optional; it is only sent on login when non-empty
	PIN           string
	BaseURL       string
	RateLimit     float64
	LoginAttempts int
}

type DiscoveryConfig struct {
	PageSize       int
	CorpusPath     string
	SearchCacheTTL time.Duration
}

// LogConfig controls the optional rotating log file. Stdout is always used.
type LogConfig struct {
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// Load reads environment variables and returns a Config struct
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	pageSize, err := getEnvInt("DISCOVERY_PAGE_SIZE", 10)
	if err != nil {
		return nil, err
	}
	rateLimit, err := getEnvFloat("TVDB_RATE_LIMIT", 20)
	if err != nil {
		return nil, err
	}
	cacheTTL, err := getEnvDuration("SEARCH_CACHE_TTL", 6*time.Hour)
	if err != nil {
		return nil, err
	}
	loginAttempts, err := getEnvInt("TVDB_LOGIN_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	logMaxSize, err := getEnvInt("LOG_MAX_SIZE_MB", 100)
	if err != nil {
		return nil, err
	}
	logMaxBackups, err := getEnvInt("LOG_MAX_BACKUPS", 3)
	if err != nil {
		return nil, err
	}
	logMaxAge, err := getEnvInt("LOG_MAX_AGE_DAYS", 28)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Server: ServerConfig{
			Env:  getEnv("NODE_ENV", "local"),
			Port: getEnv("PORT", "4000"),
			Host: getEnv("HOST", "http://localhost:4000"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", ""),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			TLS:      getEnv("REDIS_TLS", "false") == "true",
		},
		TVDB: TVDBConfig{
			APIKey:        getEnv("TVDB_API_KEY", ""),
			PIN:           os.Getenv("TVDB_PIN"),
			BaseURL:       getEnv("TVDB_URL", "https://api4.thetvdb.com/v4"),
			RateLimit:     rateLimit,
			LoginAttempts: loginAttempts,
		},
		Discovery: DiscoveryConfig{
			PageSize:       pageSize,
			CorpusPath:     getEnv("CORPUS_PATH", ""),
			SearchCacheTTL: cacheTTL,
		},
		Log: LogConfig{
			File:       getEnv("LOG_FILE", ""),
			MaxSizeMB:  logMaxSize,
			MaxBackups: logMaxBackups,
			MaxAgeDays: logMaxAge,
		},
	}

	// Validate required fields
	if cfg.Database.URL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.TVDB.APIKey == "" {
		return nil, fmt.Errorf("TVDB_API_KEY is required")
	}
	if cfg.Discovery.PageSize < 1 {
		return nil, fmt.Errorf("DISCOVERY_PAGE_SIZE must be at least 1")
	}
	if cfg.TVDB.RateLimit <= 0 {
		return nil, fmt.Errorf("TVDB_RATE_LIMIT must be positive")
	}
	if cfg.TVDB.LoginAttempts < 1 {
		return nil, fmt.Errorf("TVDB_LOGIN_ATTEMPTS must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s must be a number: %w", key, err)
	}
	return f, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration: %w", key, err)
	}
	return d, nil
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// IsDevelopment returns true if running in development/local mode
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "local" || c.Server.Env == "development"
}

// RedisAddr returns the Redis address in host:port format
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%s", c.Redis.Host, c.Redis.Port)
}
