package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application.
type Config struct {
	Port        string
	Env         string
	DatabaseURL string
	RedisURL    string
	SQLitePath  string // dev fallback when DATABASE_URL is unset

	// Session tokens
	SessionSecret string        // HMAC key for signed session tokens
	SessionTTL    time.Duration // token lifetime

	// Feed
	MessageTTL time.Duration // how long a transmission stays visible

	// Content overrides (missions/milestones/riddles)
	ContentPath string
}

// Load reads configuration from environment variables.
// In development, it loads from .env file if present.
// In production, it panics on missing required variables.
func Load() *Config {
	// Load .env file if it exists (for development)
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		DatabaseURL:   os.Getenv("DATABASE_URL"),
		RedisURL:      getEnv("REDIS_URL", "redis://localhost:6379/0"),
		SQLitePath:    getEnv("SQLITE_PATH", "./data/sekretos.db"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		SessionTTL:    getDuration("SESSION_TTL", 24*time.Hour),
		MessageTTL:    getDuration("MESSAGE_TTL", 5*time.Minute),
		ContentPath:   os.Getenv("CONTENT_PATH"),
	}

	if cfg.SessionSecret == "" {
		if cfg.Env == "production" {
			panic("SESSION_SECRET is required in production")
		}
		cfg.SessionSecret = "sekretos-dev-secret"
	}

	// In production, require a real database
	if cfg.Env == "production" && cfg.DatabaseURL == "" {
		panic("DATABASE_URL is required in production")
	}

	return cfg
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
