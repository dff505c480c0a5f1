package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	want := &Config{
		BaseURL:           "http://127.0.0.1:5000",
		RequestTimeout:    10 * time.Second,
		EnrichAuthors:     true,
		AuthorConcurrency: 8,
		RateBurst:         1,
		Store:             StoreRedis,
		RedisAddr:         "localhost:6379",
		LogLevel:          "info",
		LogFormat:         "text",
	}
	if diff := cmp.Diff(want, cfg); diff != "" {
		t.Errorf("Load() mismatch (-want +got):\n%s", diff)
	}
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("FEED_API_BASE_URL", "https://feed.example.com")
	t.Setenv("FEED_REQUEST_TIMEOUT", "3s")
	t.Setenv("FEED_ENRICH_AUTHORS", "false")
	t.Setenv("FEED_STORE", "Memory")

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.BaseURL != "https://feed.example.com" || cfg.RequestTimeout != 3*time.Second ||
		cfg.EnrichAuthors || cfg.Store != StoreMemory {
		t.Errorf("Load() = %+v", cfg)
	}
}

func TestLoad_DotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("FEED_AUTHOR_CONCURRENCY=3\nFEED_LOG_FORMAT=json\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("FEED_LOG_FORMAT", "text")
	t.Cleanup(func() { os.Unsetenv("FEED_AUTHOR_CONCURRENCY") })

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.AuthorConcurrency != 3 {
		t.Errorf("AuthorConcurrency = %d, want 3 from dotenv", cfg.AuthorConcurrency)
	}
	if cfg.LogFormat != "text" {
		t.Errorf("LogFormat = %q, want environment value text", cfg.LogFormat)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{name: "BadURL", key: "FEED_API_BASE_URL", value: "not a url"},
		{name: "BadStore", key: "FEED_STORE", value: "file"},
		{name: "PostgresWithoutDSN", key: "FEED_STORE", value: "postgres"},
		{name: "BadLogLevel", key: "FEED_LOG_LEVEL", value: "verbose"},
		{name: "ZeroConcurrency", key: "FEED_AUTHOR_CONCURRENCY", value: "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(filepath.Join(t.TempDir(), "missing.env")); err == nil {
				t.Errorf("Load() with %s=%q succeeded, want error", tt.key, tt.value)
			}
		})
	}
}
