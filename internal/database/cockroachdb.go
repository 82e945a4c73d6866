package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// CockroachConfig contains connection pool limits for the call-history
// database.
type CockroachConfig struct {
	MaxOpenConns      int
	ConnMaxLifetime   time.Duration
	ConnMaxIdleTime   time.Duration
	HealthCheckPeriod time.Duration
}

// DefaultCockroachConfig returns default pool configuration
func DefaultCockroachConfig() *CockroachConfig {
	return &CockroachConfig{
		MaxOpenConns:      25,
		ConnMaxLifetime:   1 * time.Hour,
		ConnMaxIdleTime:   5 * time.Minute,
		HealthCheckPeriod: 30 * time.Second,
	}
}

// CockroachDB wraps the pgx connection pool.
type CockroachDB struct {
	Pool *pgxpool.Pool
}

// NewCockroachDB creates a connection pool and verifies connectivity.
func NewCockroachDB(ctx context.Context, connString string, cfg *CockroachConfig) (*CockroachDB, error) {
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("unable to parse database config: %w", err)
	}

	if cfg == nil {
		cfg = DefaultCockroachConfig()
	}
	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	poolConfig.HealthCheckPeriod = cfg.HealthCheckPeriod

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &CockroachDB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *CockroachDB) Close() {
	db.Pool.Close()
}
