package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"
)

// DB wraps a pgxpool connection pool pinned to one isolation region.
type DB struct {
	*pgxpool.Pool

	// Region is the Postgres schema every connection's search_path is
	// pinned to at checkout.
	Region string
}

// Config holds database connection configuration.
type Config struct {
	URL             string
	Region          string
	MaxConnections  int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// NewConnection creates a new database connection pool. Every connection
// sets its search_path to the configured region schema and registers the
// pgvector types before first use. The region is an explicit construction
// parameter so that callers targeting different regions hold different
// pools; there is no process-global schema state.
func NewConnection(ctx context.Context, cfg *Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = cfg.MaxConnections
	if poolConfig.MaxConns == 0 {
		poolConfig.MaxConns = 25
	}

	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	if poolConfig.MaxConnLifetime == 0 {
		poolConfig.MaxConnLifetime = time.Hour
	}

	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	if poolConfig.MaxConnIdleTime == 0 {
		poolConfig.MaxConnIdleTime = time.Minute * 30
	}

	region := cfg.Region
	if region == "" {
		region = "public"
	}

	poolConfig.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		searchPath := pgx.Identifier{region}.Sanitize()
		if region != "public" {
			searchPath += ", public"
		}
		if _, err := conn.Exec(ctx, "SET search_path TO "+searchPath); err != nil {
			return fmt.Errorf("failed to set search_path: %w", err)
		}
		if err := pgxvector.RegisterTypes(ctx, conn); err != nil {
			return fmt.Errorf("failed to register pgvector types: %w", err)
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool, Region: region}, nil
}

// Close closes the connection pool.
func (db *DB) Close() {
	db.Pool.Close()
}
