package repositories

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/apperrors"
	"github.com/querylens/querylens-engine/pkg/database"
)

// RegionRepository manages physically isolated storage regions, one
// Postgres schema per deployment or tenant grouping.
type RegionRepository interface {
	// EnsureRegion idempotently creates a region's schema and its embedding
	// store tables and indexes. Safe to call on every process start.
	EnsureRegion(ctx context.Context, region string) error

	// MigrateTables copies all rows of the named tables from one region to
	// another, preserving ids and foreign-key relationships, then removes
	// them from the source. All-or-nothing: a failure leaves the source
	// intact. Tables must be listed parent-first (collections before
	// embeddings). Not designed to run concurrently with live writes to
	// the same tables; an advisory lock serializes concurrent migrations.
	// Returns the number of rows moved; running it again moves zero.
	MigrateTables(ctx context.Context, from, to string, tables []string) (int64, error)

	// RegionStatus reports whether a region exists and which tables it
	// holds, for diagnostics.
	RegionStatus(ctx context.Context, region string) (*RegionStatus, error)
}

// RegionStatus is the diagnostic view of one region.
type RegionStatus struct {
	Region string   `json:"region"`
	Exists bool     `json:"exists"`
	Tables []string `json:"tables"`
}

type regionRepository struct {
	db     *database.DB
	logger *zap.Logger
}

// NewRegionRepository creates a RegionRepository.
func NewRegionRepository(db *database.DB, logger *zap.Logger) RegionRepository {
	return &regionRepository{db: db, logger: logger.Named("region-repository")}
}

var _ RegionRepository = (*regionRepository)(nil)

// regionDDL mirrors migrations/001_embedding_store.up.sql with every name
// qualified by the target schema, so regions other than the migrated
// default can be provisioned at runtime.
var regionDDL = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS %[1]s.engine_collections (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		name VARCHAR NOT NULL UNIQUE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS %[1]s.engine_embeddings (
		id VARCHAR PRIMARY KEY,
		collection_id UUID NOT NULL REFERENCES %[1]s.engine_collections(id) ON DELETE CASCADE,
		document TEXT NOT NULL,
		embedding VECTOR(1536) NOT NULL,
		metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
		insertion_seq BIGINT GENERATED BY DEFAULT AS IDENTITY,
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE INDEX IF NOT EXISTS idx_engine_embeddings_collection
		ON %[1]s.engine_embeddings(collection_id)`,
	`CREATE INDEX IF NOT EXISTS idx_engine_embeddings_metadata
		ON %[1]s.engine_embeddings USING GIN (metadata)`,
	`CREATE INDEX IF NOT EXISTS idx_engine_embeddings_vector
		ON %[1]s.engine_embeddings USING hnsw (embedding vector_cosine_ops)`,
}

func (r *regionRepository) EnsureRegion(ctx context.Context, region string) error {
	schema := pgx.Identifier{region}.Sanitize()

	if _, err := r.db.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+schema); err != nil {
		return fmt.Errorf("failed to create schema %s: %w", region, err)
	}

	for _, stmt := range regionDDL {
		if _, err := r.db.Exec(ctx, fmt.Sprintf(stmt, schema)); err != nil {
			return fmt.Errorf("failed to provision region %s: %w", region, err)
		}
	}

	r.logger.Info("Region ready", zap.String("region", region))
	return nil
}

// migrationLockKeys returns one advisory lock key per region involved in a
// migration, in lexicographic order.
func migrationLockKeys(from, to string) []string {
	first, second := from, to
	if second < first {
		first, second = second, first
	}
	return []string{"region_migration:" + first, "region_migration:" + second}
}

func (r *regionRepository) MigrateTables(ctx context.Context, from, to string, tables []string) (int64, error) {
	if from == to {
		return 0, apperrors.NewValidationError("region", "source and target regions are identical")
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: failed to begin transaction: %v", apperrors.ErrMigrationFailed, err)
	}
	defer tx.Rollback(ctx)

	// Transaction-scoped advisory locks, one per region, released
	// automatically at commit or rollback. Locking each region rather than
	// the directed pair serializes opposite-direction migrations too, and
	// the sorted order keeps two migrations from deadlocking on each other.
	for _, key := range migrationLockKeys(from, to) {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, key); err != nil {
			return 0, fmt.Errorf("%w: failed to acquire migration lock: %v", apperrors.ErrMigrationFailed, err)
		}
	}

	fromSchema := pgx.Identifier{from}.Sanitize()
	toSchema := pgx.Identifier{to}.Sanitize()

	var moved int64

	// Copy parent-first so foreign keys resolve in the target.
	for _, table := range tables {
		tbl := pgx.Identifier{table}.Sanitize()
		tag, err := tx.Exec(ctx, fmt.Sprintf(
			`INSERT INTO %s.%s SELECT * FROM %s.%s ON CONFLICT DO NOTHING`,
			toSchema, tbl, fromSchema, tbl))
		if err != nil {
			return 0, fmt.Errorf("%w: failed to copy table %s: %v", apperrors.ErrMigrationFailed, table, err)
		}
		moved += tag.RowsAffected()
	}

	// Remove from the source child-first so foreign keys do not block.
	for i := len(tables) - 1; i >= 0; i-- {
		tbl := pgx.Identifier{tables[i]}.Sanitize()
		if _, err := tx.Exec(ctx, fmt.Sprintf(`DELETE FROM %s.%s`, fromSchema, tbl)); err != nil {
			return 0, fmt.Errorf("%w: failed to clear source table %s: %v", apperrors.ErrMigrationFailed, tables[i], err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%w: failed to commit: %v", apperrors.ErrMigrationFailed, err)
	}

	r.logger.Info("Region migration complete",
		zap.String("from", from),
		zap.String("to", to),
		zap.Int64("rows_moved", moved))
	return moved, nil
}

func (r *regionRepository) RegionStatus(ctx context.Context, region string) (*RegionStatus, error) {
	status := &RegionStatus{Region: region, Tables: []string{}}

	err := r.db.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`,
		region).Scan(&status.Exists)
	if err != nil {
		return nil, fmt.Errorf("failed to check region %s: %w", region, err)
	}
	if !status.Exists {
		return status, nil
	}

	rows, err := r.db.Query(ctx, `
		SELECT table_name FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`, region)
	if err != nil {
		return nil, fmt.Errorf("failed to list region tables: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan table name: %w", err)
		}
		status.Tables = append(status.Tables, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating region tables: %w", err)
	}

	return status, nil
}
