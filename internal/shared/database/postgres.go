package database

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/claimflow/claims/internal/shared/config"
)

const applicationName = "claims"

// DB wraps the pgx pool shared by the audit trail and the deductible ledger
type DB struct {
	Pool *pgxpool.Pool
}

// New creates the connection pool. Sessions resolve unqualified names in the
// claims schema first and carry the configured statement and lock timeouts,
// which also bound waits on the per-insured advisory lock.
func New(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConns
	poolConfig.MinConns = cfg.MinConns
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = 30 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute
	for k, v := range runtimeParams(cfg) {
		poolConfig.ConnConfig.RuntimeParams[k] = v
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

func runtimeParams(cfg config.DatabaseConfig) map[string]string {
	params := map[string]string{
		"application_name": applicationName,
		"search_path":      "claims,public",
	}
	if cfg.StatementTimeout > 0 {
		params["statement_timeout"] = strconv.FormatInt(cfg.StatementTimeout.Milliseconds(), 10)
	}
	if cfg.LockTimeout > 0 {
		params["lock_timeout"] = strconv.FormatInt(cfg.LockTimeout.Milliseconds(), 10)
	}
	return params
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Health pings the database and checks that the claim tables are migrated
func (db *DB) Health(ctx context.Context) error {
	if err := db.Pool.Ping(ctx); err != nil {
		return err
	}

	var migrated bool
	err := db.Pool.QueryRow(ctx, `
		SELECT to_regclass('claims.claim_events') IS NOT NULL
		   AND to_regclass('claims.deductible_ledger') IS NOT NULL`).Scan(&migrated)
	if err != nil {
		return fmt.Errorf("failed to inspect schema: %w", err)
	}
	if !migrated {
		return fmt.Errorf("claims schema is not migrated")
	}
	return nil
}
