package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"exitSentinel/internal/adapters/logger" // Import the logger package for LogLevel
	"exitSentinel/internal/domain"
)

// Config holds all application configuration.
type Config struct {
	// Binance API (primary data source)
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Fallback quote API
	FallbackBaseURL string

	// Engine thresholds
	ProfitTargetPct     float64 // Base profit target percentage (e.g., 2.8)
	StopLossPct         float64 // Stop loss percentage (e.g., 2.0)
	MaxHoldHours        float64 // Maximum position hold time in hours
	ConfidenceThreshold float64 // Entry-confidence floor for the risk cutoff
	TimeDecayFactor     float64 // Per-hour confidence decay on overstayed positions

	// Evaluation settings
	DataTimeout  time.Duration // Per-source market data call timeout
	Workers      int           // Batch evaluation worker pool size
	PollInterval time.Duration // How often the monitor loop re-evaluates open positions

	// Database
	DBPath string

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter
}

// EngineConfig converts the loaded thresholds into the domain form.
func (c *Config) EngineConfig() domain.EngineConfig {
	return domain.EngineConfig{
		ProfitTargetPct:     c.ProfitTargetPct,
		StopLossPct:         c.StopLossPct,
		MaxHold:             time.Duration(c.MaxHoldHours * float64(time.Hour)),
		ConfidenceThreshold: c.ConfidenceThreshold,
		TimeDecayFactor:     c.TimeDecayFactor,
	}
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Binance API. Market data endpoints are public, so keys are optional.
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", true) // Default to testnet for safety

	// Fallback quote API
	cfg.FallbackBaseURL = getEnv("FALLBACK_BASE_URL", "https://api.binance.com")

	// Engine thresholds
	cfg.ProfitTargetPct, err = getEnvAsFloatRequired("PROFIT_TARGET_PCT", 2.8)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PROFIT_TARGET_PCT: %v", err))
	} else if cfg.ProfitTargetPct < 0 {
		errs = append(errs, "PROFIT_TARGET_PCT cannot be negative")
	}

	cfg.StopLossPct, err = getEnvAsFloatRequired("STOP_LOSS_PCT", 2.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STOP_LOSS_PCT: %v", err))
	} else if cfg.StopLossPct < 0 {
		errs = append(errs, "STOP_LOSS_PCT cannot be negative")
	}

	cfg.MaxHoldHours, err = getEnvAsFloatRequired("MAX_HOLD_HOURS", 18.0)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_HOLD_HOURS: %v", err))
	} else if cfg.MaxHoldHours < 0 {
		errs = append(errs, "MAX_HOLD_HOURS cannot be negative")
	}

	cfg.ConfidenceThreshold, err = getEnvAsFloatRequired("CONFIDENCE_THRESHOLD", 0.6)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid CONFIDENCE_THRESHOLD: %v", err))
	} else if cfg.ConfidenceThreshold < 0 || cfg.ConfidenceThreshold > 1 {
		errs = append(errs, "CONFIDENCE_THRESHOLD must be between 0.0 and 1.0")
	}

	cfg.TimeDecayFactor, err = getEnvAsFloatRequired("TIME_DECAY_FACTOR", 0.1)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid TIME_DECAY_FACTOR: %v", err))
	} else if cfg.TimeDecayFactor < 0 {
		errs = append(errs, "TIME_DECAY_FACTOR cannot be negative")
	}

	// Evaluation settings
	dataTimeoutSeconds := getEnvAsInt("DATA_TIMEOUT_SECONDS", 10)
	if dataTimeoutSeconds <= 0 {
		errs = append(errs, "DATA_TIMEOUT_SECONDS must be positive")
	}
	cfg.DataTimeout = time.Duration(dataTimeoutSeconds) * time.Second

	cfg.Workers = getEnvAsInt("EVAL_WORKERS", 8)
	if cfg.Workers <= 0 {
		errs = append(errs, "EVAL_WORKERS must be positive")
	}

	pollIntervalSeconds := getEnvAsInt("POLL_INTERVAL_SECONDS", 60)
	if pollIntervalSeconds <= 0 {
		errs = append(errs, "POLL_INTERVAL_SECONDS must be positive")
	}
	cfg.PollInterval = time.Duration(pollIntervalSeconds) * time.Second

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/exit_sentinel.db")
	if cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set")
	}

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// For non-required fields, default is acceptable.
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
