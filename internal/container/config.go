// Package container provides dependency injection and lifecycle management
// for the approval engine.
package container

import (
	"fmt"
	"time"
)

// Config holds all configuration for the Container.
// It aggregates configurations for all subsystems.
type Config struct {
	Database DatabaseConfig
	Lark     LarkConfig
	Storage  StorageConfig
	Server   ServerConfig
	Worker   WorkerConfig

	// SeedDir holds definition and roster files applied on start. Empty skips seeding.
	SeedDir string
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	// Path to SQLite database file
	Path string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration

	// MigrationsDir replaces the embedded schema when set
	MigrationsDir string
}

// LarkConfig holds Lark API settings.
type LarkConfig struct {
	// Enabled switches notifications from the log-only messenger to the Lark API
	Enabled   bool
	AppID     string
	AppSecret string
	BaseURL   string
}

// StorageConfig holds file storage settings.
type StorageConfig struct {
	// ArchiveDir is the root under which instance histories are archived
	ArchiveDir string
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// WorkerConfig holds background worker settings.
type WorkerConfig struct {
	StallScanEnabled   bool
	StallScanSchedule  string
	StallScanThreshold time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:         "data/approvals.db",
			MaxOpenConns: 1,
			MaxIdleConns: 1,
		},
		Storage: StorageConfig{
			ArchiveDir: "data",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			Mode:         "release",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Worker: WorkerConfig{
			StallScanEnabled:   true,
			StallScanSchedule:  "0 */15 * * * *",
			StallScanThreshold: 48 * time.Hour,
		},
	}
}

// Validate checks that required configuration values are present.
func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Lark.Enabled && (c.Lark.AppID == "" || c.Lark.AppSecret == "") {
		return fmt.Errorf("lark.app_id and lark.app_secret are required when lark is enabled")
	}

	if c.Storage.ArchiveDir == "" {
		return fmt.Errorf("storage.archive_dir is required")
	}

	if c.Worker.StallScanEnabled && c.Worker.StallScanThreshold <= 0 {
		return fmt.Errorf("worker.stall_scan_threshold must be positive")
	}

	return nil
}
