// Package config provides application configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

// Config holds all application configuration.
type Config struct {
	Port           string
	FrontendURL    string
	AllowedOrigins []string
	Store          StoreConfig
	Backend        BackendConfig
}

// StoreConfig selects where profiles are persisted.
type StoreConfig struct {
	Backend  string
	DBPath   string
	RedisURL string
}

// BackendConfig points at the inference backend.
type BackendConfig struct {
	URL            string
	Timeout        time.Duration // 0 disables the per-request deadline
	TargetLanguage string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:           getEnv("PORT", "8080"),
		FrontendURL:    getEnv("FRONTEND_URL", ""),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", []string{"*"}),
		Store: StoreConfig{
			Backend:  strings.ToLower(getEnv("STORE_BACKEND", StoreSQLite)),
			DBPath:   getEnv("DB_PATH", "./data/tutor.db"),
			RedisURL: getEnv("REDIS_URL", "redis://localhost:6379"),
		},
		Backend: BackendConfig{
			URL:            getEnv("BACKEND_URL", "http://localhost:8000"),
			Timeout:        getEnvDuration("BACKEND_TIMEOUT", 60*time.Second),
			TargetLanguage: getEnv("TRANSLATE_LANGUAGE", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	switch c.Store.Backend {
	case StoreSQLite:
		if c.Store.DBPath == "" {
			return fmt.Errorf("DB_PATH cannot be empty")
		}
	case StoreRedis:
		if c.Store.RedisURL == "" {
			return fmt.Errorf("REDIS_URL cannot be empty")
		}
	case StoreMemory:
	default:
		return fmt.Errorf("STORE_BACKEND %q is not one of sqlite, redis, memory", c.Store.Backend)
	}
	u, err := url.Parse(c.Backend.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("BACKEND_URL %q must be an absolute http(s) URL", c.Backend.URL)
	}
	if c.Backend.Timeout < 0 {
		return fmt.Errorf("BACKEND_TIMEOUT must be >= 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	value = strings.TrimSpace(value)
	if n, err := strconv.Atoi(value); err == nil {
		return time.Duration(n) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fallback
	}
	return d
}
