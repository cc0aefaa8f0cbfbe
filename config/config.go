// Package config provides application configuration management.
package config

import (
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/OhSeongHyeon/mocktalkfront/internal/redisx"
)

// Config holds all application configuration.
type Config struct {
	// API configuration
	APIBaseURL     string
	FileBaseURL    string
	RequestTimeout time.Duration

	// Session configuration
	RenewalLead time.Duration

	// Local state
	StatePath   string
	HistoryPath string

	// Local status endpoint, disabled when empty
	StatusAddr  string
	StatusToken string
	LogLevel    string

	// Redis / cross-process logout
	RedisAddr          string
	RedisUsername      string
	RedisPassword      string
	RedisDB            int
	RedisTLSEnabled    bool
	RedisTLSInsecure   bool
	RedisChannelPrefix string
}

// Load loads configuration from environment variables with defaults.
func Load() *Config {
	statePath := getEnv("STATE_PATH", defaultStatePath())
	return &Config{
		APIBaseURL:         strings.TrimRight(getEnv("MOCKTALK_API_BASE_URL", "http://localhost:8080/api"), "/"),
		FileBaseURL:        getEnv("MOCKTALK_FILE_BASE_URL", ""),
		RequestTimeout:     getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),
		RenewalLead:        getEnvDuration("RENEWAL_LEAD", 60*time.Second),
		StatePath:          statePath,
		HistoryPath:        getEnv("HISTORY_DB", filepath.Join(statePath, "history.db")),
		StatusAddr:         getEnv("STATUS_ADDR", ""),
		StatusToken:        os.Getenv("STATUS_TOKEN"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		RedisAddr:          getEnv("REDIS_ADDR", ""),
		RedisUsername:      getEnv("REDIS_USERNAME", ""),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		RedisTLSEnabled:    getEnvBool("REDIS_TLS_ENABLED", false),
		RedisTLSInsecure:   getEnvBool("REDIS_TLS_INSECURE_SKIP_VERIFY", false),
		RedisChannelPrefix: getEnv("REDIS_CHANNEL_PREFIX", "mocktalk"),
	}
}

// Redis returns the redis client settings.
func (c *Config) Redis() redisx.Config {
	return redisx.Config{
		Addr:        c.RedisAddr,
		Username:    c.RedisUsername,
		Password:    c.RedisPassword,
		DB:          c.RedisDB,
		TLSEnabled:  c.RedisTLSEnabled,
		TLSInsecure: c.RedisTLSInsecure,
		Prefix:      c.RedisChannelPrefix,
	}
}

func defaultStatePath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "mocktalk")
	}
	return ".mocktalk"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		log.Printf("Invalid duration for %s: %s, using default %s", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
		log.Printf("Invalid int for %s: %s, using default %d", key, value, defaultValue)
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		switch strings.ToLower(value) {
		case "1", "true", "yes", "y":
			return true
		case "0", "false", "no", "n":
			return false
		default:
			log.Printf("Invalid bool for %s: %s, using default %t", key, value, defaultValue)
		}
	}
	return defaultValue
}
