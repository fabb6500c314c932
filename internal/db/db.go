// Package db provides the PostgreSQL estimate history store. Repositories
// accept DBTX, which is satisfied by both *pgxpool.Pool and pgx.Tx.
package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"harvestwatch/internal/config"
	"harvestwatch/internal/types"
)

// DBTX is the minimal interface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPool opens a connection pool sized by cfg and verifies it with a ping.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	if !cfg.URL.IsSet() {
		return nil, fmt.Errorf("db: DATABASE_URL is not set")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.URL.Unmask())
	if err != nil {
		// The parse error can echo the URL, password included.
		return nil, fmt.Errorf("db: invalid DATABASE_URL")
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.HealthCheckPeriod > 0 {
		poolCfg.HealthCheckPeriod = cfg.HealthCheckPeriod
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("db: creating pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db: ping: %w", err)
	}
	return pool, nil
}

// Probe reports database liveness to the health endpoint.
type Probe struct {
	db types.HealthChecker
}

// NewProbe wraps anything with Ping, normally the pool.
func NewProbe(db types.HealthChecker) *Probe {
	return &Probe{db: db}
}

// Name implements core.HealthProbe.
func (p *Probe) Name() string { return "database" }

// Check implements core.HealthProbe.
func (p *Probe) Check(ctx context.Context) error {
	return p.db.Ping(ctx)
}
