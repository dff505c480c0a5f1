// Package config loads the client configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/mercedmeals/feedclient/api/validator"
)

// Store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

type Config struct {
	BaseURL        string        `validate:"required,url"`
	RequestTimeout time.Duration `validate:"gte=0"`

	EnrichAuthors     bool
	AuthorConcurrency int `validate:"gte=1"`

	// RateLimit is in requests per second, 0 disables limiting.
	RateLimit float64 `validate:"gte=0"`
	RateBurst int     `validate:"gte=1"`

	Store       string `validate:"oneof=memory redis postgres"`
	RedisAddr   string `validate:"required_if=Store redis"`
	PostgresDSN string `validate:"required_if=Store postgres"`

	LogLevel  string `validate:"oneof=debug info warn error"`
	LogFormat string `validate:"oneof=text json"`
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// Load reads the optional dotenv files, then the environment, and validates
// the result. Variables already set in the environment win over dotenv files.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := &Config{
		BaseURL:        getEnv("FEED_API_BASE_URL", "http://127.0.0.1:5000"),
		RequestTimeout: getDurationEnv("FEED_REQUEST_TIMEOUT", 10*time.Second),

		EnrichAuthors:     getBoolEnv("FEED_ENRICH_AUTHORS", true),
		AuthorConcurrency: getIntEnv("FEED_AUTHOR_CONCURRENCY", 8),

		RateLimit: getFloatEnv("FEED_RATE_LIMIT", 0),
		RateBurst: getIntEnv("FEED_RATE_BURST", 1),

		Store:       strings.ToLower(getEnv("FEED_STORE", StoreRedis)),
		RedisAddr:   getEnv("FEED_REDIS_ADDR", "localhost:6379"),
		PostgresDSN: getEnv("FEED_POSTGRES_DSN", ""),

		LogLevel:  strings.ToLower(getEnv("FEED_LOG_LEVEL", "info")),
		LogFormat: strings.ToLower(getEnv("FEED_LOG_FORMAT", "text")),
	}

	if err := validator.New().Err(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
