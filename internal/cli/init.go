// Package cli provides common initialization shared by cmd/gagebu and
// cmd/gagebu-flush.
package cli

import (
	"os"

	"github.com/joho/godotenv"

	"gagebu/internal/config"
	applog "gagebu/internal/log"
	"gagebu/internal/storage"
)

// SetupLogger initializes structured logging with default settings.
// Returns the configured logger and sets it as the default logger.
func SetupLogger() *applog.Logger {
	logger := applog.New(applog.DefaultConfig())
	applog.SetDefault(logger)
	return logger
}

// LoadEnvFile loads the .env file for local development.
// Errors are ignored silently as this is optional in production.
func LoadEnvFile() {
	_ = godotenv.Load()
}

// LoadAndValidateConfig loads configuration and validates it.
// Returns the config or exits the process on validation failure.
func LoadAndValidateConfig(logger *applog.Logger) *config.Config {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logger.Error("Configuration validation failed", "error", err)
		os.Exit(1)
	}
	return cfg
}

// InitKV opens the SQLite-backed key-value store.
// Returns the store or exits the process on failure.
func InitKV(logger *applog.Logger, dbPath string) *storage.SQLiteKV {
	kv, err := storage.NewSQLiteKV(dbPath)
	if err != nil {
		logger.Error("Failed to open key-value store", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return kv
}
