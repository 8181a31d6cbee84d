package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Handle is an open database together with the resources backing it
type Handle struct {
	DB     *sql.DB
	Driver string
	pool   *pgxpool.Pool
}

// Close releases the database and, for postgres, its pgx pool
func (h *Handle) Close() {
	if h == nil {
		return
	}
	if h.DB != nil {
		_ = h.DB.Close()
	}
	if h.pool != nil {
		h.pool.Close()
	}
}

// Open connects to the configured driver and verifies connectivity
func Open(ctx context.Context, driver, dsn string) (*Handle, error) {
	switch driver {
	case DriverPostgres:
		pool, err := Connect(ctx, dsn)
		if err != nil {
			return nil, err
		}
		return &Handle{DB: stdlib.OpenDBFromPool(pool), Driver: driver, pool: pool}, nil

	case DriverSQLite:
		sqlDB, err := sql.Open("sqlite3", dsn)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite database: %w", err)
		}
		// sqlite serializes writers; a single connection avoids SQLITE_BUSY
		// and keeps shared in-memory databases alive.
		sqlDB.SetMaxOpenConns(1)
		if err := sqlDB.PingContext(ctx); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		return &Handle{DB: sqlDB, Driver: driver}, nil

	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Connect creates and returns a new PostgreSQL connection pool
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 2
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 30 * time.Minute
	config.HealthCheckPeriod = time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}
