package database

import (
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Supported drivers
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// Config holds database configuration
type Config struct {
	Driver          string
	Path            string
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DB wraps sqlx.DB with additional functionality
type DB struct {
	*sqlx.DB
	logger *zap.Logger
}

// New opens and pings a SQLite or PostgreSQL connection pool
func New(cfg Config, logger *zap.Logger) (*DB, error) {
	driver, dsn, err := cfg.dataSource()
	if err != nil {
		return nil, err
	}

	sqlDB, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := cfg.MaxOpenConns
	if driver == DriverSQLite && cfg.Path == ":memory:" {
		// every sqlite connection to :memory: is a separate database
		maxOpen = 1
	}
	sqlDB.SetMaxOpenConns(maxOpen)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Database connection established", zap.String("driver", driver))
	return &DB{DB: sqlDB, logger: logger}, nil
}

// Wrap adapts an existing handle, e.g. one backed by sqlmock
func Wrap(db *sqlx.DB, logger *zap.Logger) *DB {
	return &DB{DB: db, logger: logger}
}

func (cfg Config) dataSource() (string, string, error) {
	switch cfg.Driver {
	case "", DriverSQLite:
		if cfg.Path == "" {
			return "", "", fmt.Errorf("database path is required for sqlite")
		}
		// _txlock=immediate takes the write lock at BEGIN so busy_timeout
		// applies instead of failing on lock upgrade
		return DriverSQLite, fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on&_txlock=immediate", cfg.Path), nil
	case DriverPostgres:
		if cfg.DSN == "" {
			return "", "", fmt.Errorf("database dsn is required for postgres")
		}
		return DriverPostgres, cfg.DSN, nil
	default:
		return "", "", fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// WithTransaction executes a function within a transaction
func (db *DB) WithTransaction(fn func(*sqlx.Tx) error) error {
	tx, err := db.Beginx()
	if err != nil {
		db.logger.Error("Failed to begin transaction", zap.Error(err))
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			db.logger.Error("Failed to rollback transaction", zap.Error(rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		db.logger.Error("Failed to commit transaction", zap.Error(err))
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Close closes the database connection
func (db *DB) Close() error {
	db.logger.Info("Closing database connection")
	return db.DB.Close()
}
