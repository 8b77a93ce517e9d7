package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	// HTTP Server
	Port string

	// Database
	SQLiteDBPath string

	// Remote backend
	APIBaseURL string
	APIToken   string

	// Connectivity probe
	ProbeURL      string
	ProbeInterval time.Duration

	// AMQP (optional, flush events are skipped when URL is empty)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Category suggestion cache
	SuggestCacheSize int
	SuggestCacheTTL  time.Duration
}

func Load() *Config {
	cfg := &Config{
		Port:         getEnv("PORT", "8082"),
		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/gagebu.db"),

		APIBaseURL: getEnv("API_BASE_URL", "http://localhost:8000/api/v1"),
		APIToken:   getEnv("API_TOKEN", ""),

		ProbeURL:      getEnv("PROBE_URL", ""),
		ProbeInterval: getEnvDuration("PROBE_INTERVAL", 15*time.Second),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "gagebu"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "flush_events"),

		SuggestCacheSize: getEnvInt("SUGGEST_CACHE_SIZE", 256),
		SuggestCacheTTL:  getEnvDuration("SUGGEST_CACHE_TTL", 5*time.Minute),
	}

	return cfg
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errors []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	// Validate SQLite path
	if c.SQLiteDBPath == "" {
		errors = append(errors, "SQLite database path cannot be empty")
	} else {
		dir := filepath.Dir(c.SQLiteDBPath)
		if dir != "." && dir != "" {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				if err := os.MkdirAll(dir, 0755); err != nil {
					errors = append(errors, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate backend API URL
	if c.APIBaseURL == "" {
		errors = append(errors, "API base URL cannot be empty")
	} else if parsedURL, err := url.Parse(c.APIBaseURL); err != nil {
		errors = append(errors, fmt.Sprintf("invalid API base URL '%s': %v", c.APIBaseURL, err))
	} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		errors = append(errors, fmt.Sprintf("invalid API base URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
	}

	// Validate probe URL if provided
	if c.ProbeURL != "" {
		if parsedURL, err := url.Parse(c.ProbeURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid probe URL '%s': %v", c.ProbeURL, err))
		} else if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
			errors = append(errors, fmt.Sprintf("invalid probe URL scheme '%s': must be 'http' or 'https'", parsedURL.Scheme))
		}
	}

	if c.ProbeInterval < time.Second {
		errors = append(errors, fmt.Sprintf("invalid probe interval %v: must be at least 1 second", c.ProbeInterval))
	} else if c.ProbeInterval > time.Hour {
		errors = append(errors, fmt.Sprintf("invalid probe interval %v: must be at most 1 hour", c.ProbeInterval))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	// Validate suggestion cache settings
	if c.SuggestCacheSize < 1 {
		errors = append(errors, fmt.Sprintf("invalid suggest cache size %d: must be at least 1", c.SuggestCacheSize))
	} else if c.SuggestCacheSize > 100000 {
		errors = append(errors, fmt.Sprintf("invalid suggest cache size %d: must be at most 100000", c.SuggestCacheSize))
	}
	if c.SuggestCacheTTL < time.Second {
		errors = append(errors, fmt.Sprintf("invalid suggest cache TTL %v: must be at least 1 second", c.SuggestCacheTTL))
	}

	// Return combined errors
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
