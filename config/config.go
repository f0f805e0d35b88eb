package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all runtime configuration for the chat service.
type Config struct {
	ServerAddr      string
	DatabaseURL     string
	NATSURL         string
	LogLevel        string
	RateLimitPerMin int
	ShutdownTimeout time.Duration
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		ServerAddr:      getEnv("SERVER_URL", ":8080"),
		DatabaseURL:     getEnv("DATABASE_URL", ""),
		NATSURL:         getEnv("NATS_URL", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		RateLimitPerMin: getIntEnv("RATE_LIMIT_PER_MIN", 120),
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
