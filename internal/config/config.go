// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir    string // Base directory for the application database and run artifacts
	HistoryDir string // Directory for per-symbol candle databases
	BackupDir  string // Directory for database backups
	LogLevel   string
	Port       int
	DevMode    bool

	// Tracked symbols kept fresh by the history refresh job
	TrackedSymbols []string
	// Yahoo Finance download span, e.g. "10y", "max"
	HistoryPeriod string

	// Cron expressions (with seconds field)
	RefreshSchedule string
	BackupSchedule  string
	BackupKeep      int

	// Optional S3 export of run artifacts; disabled when bucket is empty.
	// Endpoint overrides the AWS default for S3-compatible stores.
	S3Bucket   string
	S3Region   string
	S3Endpoint string
	S3Prefix   string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DCA_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	historyDir := getEnv("DCA_HISTORY_DIR", filepath.Join(absDataDir, "history"))
	if err := os.MkdirAll(historyDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	backupDir := getEnv("DCA_BACKUP_DIR", filepath.Join(absDataDir, "backups"))

	cfg := &Config{
		DataDir:         absDataDir,
		HistoryDir:      historyDir,
		BackupDir:       backupDir,
		Port:            getEnvAsInt("DCA_PORT", 8010),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		TrackedSymbols:  getEnvAsList("DCA_SYMBOLS", []string{"QQQ", "NVDA", "MSFT", "AAPL", "GOOGL"}),
		HistoryPeriod:   getEnv("DCA_HISTORY_PERIOD", "10y"),
		RefreshSchedule: getEnv("DCA_REFRESH_SCHEDULE", "0 30 22 * * MON-FRI"),
		BackupSchedule:  getEnv("DCA_BACKUP_SCHEDULE", "0 0 3 * * *"),
		BackupKeep:      getEnvAsInt("DCA_BACKUP_KEEP", 14),
		S3Bucket:        getEnv("DCA_S3_BUCKET", ""),
		S3Region:        getEnv("DCA_S3_REGION", "eu-central-1"),
		S3Endpoint:      getEnv("DCA_S3_ENDPOINT", ""),
		S3Prefix:        getEnv("DCA_S3_PREFIX", "dca-lab"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if len(c.TrackedSymbols) == 0 {
		return fmt.Errorf("at least one tracked symbol is required")
	}
	if c.BackupKeep < 1 {
		return fmt.Errorf("backup retention must be at least 1, got %d", c.BackupKeep)
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var out []string
	for _, part := range strings.Split(value, ",") {
		if s := strings.TrimSpace(part); s != "" {
			out = append(out, strings.ToUpper(s))
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
