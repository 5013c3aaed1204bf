package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// InMemory is the Path that opens a private in-memory database.
// Pair it with MaxOpenConns and MaxIdleConns of 1 so every query sees the same data.
const InMemory = ":memory:"

const defaultBusyTimeout = 5 * time.Second

// Config holds database configuration
type Config struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// BusyTimeout bounds how long a writer waits on a locked database. Zero means 5s.
	BusyTimeout time.Duration
}

// DSN builds the go-sqlite3 connection string. File databases run in WAL mode;
// foreign keys are always enforced so definition children cascade.
func (c Config) DSN() string {
	params := url.Values{}
	params.Set("_foreign_keys", "on")
	if c.Path == InMemory {
		return "file::memory:?" + params.Encode()
	}

	busy := c.BusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", fmt.Sprint(busy.Milliseconds()))
	return "file:" + c.Path + "?" + params.Encode()
}

// DB is the approval store's connection pool
type DB struct {
	*sql.DB
	path   string
	logger *zap.Logger
}

// New opens the database and verifies the connection
func New(cfg Config, logger *zap.Logger) (*DB, error) {
	sqlDB, err := sql.Open("sqlite3", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.Path, err)
	}

	logger.Info("Database connection established",
		zap.String("path", cfg.Path),
		zap.Int("max_open_conns", cfg.MaxOpenConns))
	return &DB{DB: sqlDB, path: cfg.Path, logger: logger}, nil
}

// Health pings the database and reports pool pressure
func (db *DB) Health(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s: %w", db.path, err)
	}
	if stats := db.Stats(); stats.WaitCount > 0 {
		db.logger.Debug("Database pool waits observed",
			zap.Int64("wait_count", stats.WaitCount),
			zap.Duration("wait_duration", stats.WaitDuration),
			zap.Int("in_use", stats.InUse))
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	db.logger.Info("Closing database connection", zap.String("path", db.path))
	return db.DB.Close()
}
