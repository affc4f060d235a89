package logger_test

import (
	"errors"

	"github.com/portrec/portrec/pkg/config"
	"github.com/portrec/portrec/pkg/logger"
)

// Example_basic demonstrates basic logger usage
func Example_basic() {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "info",
		LogFormat: "console",
	}

	log := logger.New(cfg)

	// Basic logging
	log.Debug("This won't appear (level is info)")
	log.Info("Application started")
	log.Warn("Daily API budget nearly exhausted")
	log.Error("Failed to connect")

	// Formatted logging
	log.Infof("Backfill run finished: %d done, %d remaining", 120, 14)
}

// Example_withFields demonstrates structured logging with fields
func Example_withFields() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	// Add single field
	symLog := log.WithField("symbol", "VTI")
	symLog.Info("Security refreshed")

	// Add multiple fields
	holdLog := log.WithFields(map[string]interface{}{
		"etf":    "SPY",
		"source": "yahoo",
		"count":  10,
	})
	holdLog.Info("Holdings snapshot replaced")
}

// Example_withError demonstrates error logging
func Example_withError() {
	cfg := &config.Config{
		Env:       "production",
		LogLevel:  "error",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	err := errors.New("provider request timed out")
	log.WithError(err).Error("Failed to fetch security metadata")

	// Combine error with fields
	log.WithError(err).
		WithFields(map[string]interface{}{
			"symbol":   "QQQ",
			"attempts": 3,
		}).
		Error("Symbol marked retryable")
}
