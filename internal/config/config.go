// Package config provides configuration management for the LP portfolio tracker.
// It loads configuration from environment variables and .env files.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/lp-portfolio/internal/registry"
	"github.com/lp-portfolio/internal/types"
)

// Config holds all application configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Explorer ExplorerConfig
	Prices   PriceConfig
	Refresh  RefreshConfig
	Pipeline PipelineConfig
	Logging  LoggingConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port         string
	Host         string
	RateLimitRPS int // per client
	RateBurst    int
}

// DatabaseConfig holds the optional persistence backends
type DatabaseConfig struct {
	Postgres PostgresConfig
	Redis    RedisConfig
}

// PostgresConfig holds Postgres configuration
type PostgresConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Database       string
	User           string
	Password       string
	MaxConnections int
	MigrationsPath string
}

// URL builds the pgx connection string
func (p PostgresConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		p.User, p.Password, p.Host, p.Port, p.Database)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled        bool
	Host           string
	Port           string
	Password       string
	DB             int
	MaxConnections int
}

// ExplorerConfig holds Etherscan-family explorer settings
type ExplorerConfig struct {
	APIKey     string // shared key, used when a chain has no override
	Overrides  map[types.ChainKey]ExplorerEndpoint
	RateLimit  float64 // requests per second
	Timeout    time.Duration
	PageSize   int
	MaxRecords int
	CacheTTL   time.Duration
}

// ExplorerEndpoint overrides the API base URL and key of one chain
type ExplorerEndpoint struct {
	URL    string
	APIKey string
}

// Endpoint resolves the API URL and key for a chain
func (e ExplorerConfig) Endpoint(chain registry.ChainConfig) (string, string) {
	url, key := chain.ExplorerAPI, e.APIKey
	if o, ok := e.Overrides[chain.Key]; ok {
		if o.URL != "" {
			url = o.URL
		}
		if o.APIKey != "" {
			key = o.APIKey
		}
	}
	return url, key
}

// PriceConfig holds price feed settings
type PriceConfig struct {
	CoinGeckoURL  string
	RatePerMinute int
	CacheTTL      time.Duration
}

// RefreshConfig holds background refresh intervals
type RefreshConfig struct {
	Portfolio time.Duration
	Prices    time.Duration
	Positions time.Duration // also the portfolio cache TTL
}

// PipelineConfig holds analysis pipeline settings
type PipelineConfig struct {
	EnabledChains        []types.ChainKey
	ValuationConcurrency int
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from .env file and environment variables
func LoadConfig() (*Config, error) {
	// Load .env file (optional in production)
	if err := godotenv.Load(); err != nil {
		// .env file is optional - environment variables can be set directly
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("error loading .env file: %w", err)
		}
	}

	enabled, err := registry.ParseChainKeys(getEnvAsList("ENABLED_CHAINS", nil))
	if err != nil {
		return nil, fmt.Errorf("invalid ENABLED_CHAINS: %w", err)
	}

	config := &Config{
		Server: ServerConfig{
			Port:         getEnv("SERVER_PORT", "8080"),
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			RateLimitRPS: getEnvAsInt("API_RATE_LIMIT", 20),
			RateBurst:    getEnvAsInt("API_RATE_BURST", 40),
		},
		Database: DatabaseConfig{
			Postgres: PostgresConfig{
				Enabled:        getEnvAsBool("POSTGRES_ENABLED", false),
				Host:           getEnv("POSTGRES_HOST", "localhost"),
				Port:           getEnv("POSTGRES_PORT", "5432"),
				Database:       getEnv("POSTGRES_DB", "lp_portfolio"),
				User:           getEnv("POSTGRES_USER", "portfolio"),
				Password:       getEnv("POSTGRES_PASSWORD", ""),
				MaxConnections: getEnvAsInt("POSTGRES_MAX_CONNECTIONS", 20),
				MigrationsPath: getEnv("MIGRATIONS_PATH", "migrations"),
			},
			Redis: RedisConfig{
				Enabled:        getEnvAsBool("REDIS_ENABLED", false),
				Host:           getEnv("REDIS_HOST", "localhost"),
				Port:           getEnv("REDIS_PORT", "6379"),
				Password:       getEnv("REDIS_PASSWORD", ""),
				DB:             getEnvAsInt("REDIS_DB", 0),
				MaxConnections: getEnvAsInt("REDIS_MAX_CONNECTIONS", 50),
			},
		},
		Explorer: ExplorerConfig{
			APIKey:     getEnv("ETHERSCAN_API_KEY", ""),
			Overrides:  loadExplorerOverrides(),
			RateLimit:  getEnvAsFloat("EXPLORER_RATE_LIMIT", 5),
			Timeout:    getEnvAsDuration("EXPLORER_TIMEOUT", 30*time.Second),
			PageSize:   getEnvAsInt("EXPLORER_PAGE_SIZE", 100),
			MaxRecords: getEnvAsInt("EXPLORER_MAX_RECORDS", 10000),
			CacheTTL:   getEnvAsDuration("EXPLORER_CACHE_TTL", 60*time.Second),
		},
		Prices: PriceConfig{
			CoinGeckoURL:  getEnv("COINGECKO_BASE_URL", "https://api.coingecko.com/api/v3"),
			RatePerMinute: getEnvAsInt("COINGECKO_RATE_PER_MINUTE", 50),
			CacheTTL:      getEnvAsDuration("PRICE_CACHE_TTL", 30*time.Second),
		},
		Refresh: RefreshConfig{
			Portfolio: getEnvAsDuration("REFRESH_PORTFOLIO", 60*time.Second),
			Prices:    getEnvAsDuration("REFRESH_PRICES", 30*time.Second),
			Positions: getEnvAsDuration("REFRESH_POSITIONS", 120*time.Second),
		},
		Pipeline: PipelineConfig{
			EnabledChains:        enabled,
			ValuationConcurrency: getEnvAsInt("VALUATION_CONCURRENCY", 8),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if config.Pipeline.ValuationConcurrency < 1 {
		config.Pipeline.ValuationConcurrency = 1
	}
	if config.Explorer.PageSize < 1 {
		config.Explorer.PageSize = 100
	}

	return config, nil
}

// loadExplorerOverrides reads <CHAIN>_EXPLORER_API_KEY and <CHAIN>_EXPLORER_URL
func loadExplorerOverrides() map[types.ChainKey]ExplorerEndpoint {
	overrides := make(map[types.ChainKey]ExplorerEndpoint)
	for _, key := range registry.ChainKeys() {
		prefix := strings.ToUpper(string(key))
		endpoint := ExplorerEndpoint{
			URL:    getEnv(prefix+"_EXPLORER_URL", ""),
			APIKey: getEnv(prefix+"_EXPLORER_API_KEY", ""),
		}
		if endpoint.URL != "" || endpoint.APIKey != "" {
			overrides[key] = endpoint
		}
	}
	return overrides
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt gets an environment variable as an integer with a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsFloat gets an environment variable as a float with a default value
func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsBool gets an environment variable as a boolean with a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsDuration gets an environment variable as a duration with a default value
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvAsList splits a comma separated variable, dropping blanks
func getEnvAsList(key string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(valueStr, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
