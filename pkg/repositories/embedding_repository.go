// Package repositories provides data access for the embedding retrieval
// store.
package repositories

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/querylens/querylens-engine/pkg/apperrors"
	"github.com/querylens/querylens-engine/pkg/database"
	"github.com/querylens/querylens-engine/pkg/models"
)

/// MetadataScope is one conjunctive metadata predicate: every key in Equals
// must match by text equality, and every key in Missing must be absent from
// the record's metadata. Passing several scopes to SearchByVector ORs them
// together in a single query.
type MetadataScope struct {
	Equals  map[string]string
	Missing []string
}

// EmbeddingRepository is the durable store of embedded artifacts, grouped
// into named collections with arbitrary metadata per record.
type EmbeddingRepository interface {
	// Add upserts a record into the named collection, creating the
	// collection on first write. A record with an empty ID gets a generated
	// one. Returns the stored id.
	Add(ctx context.Context, collection string, record *models.EmbeddingRecord) (string, error)

	// GetByID fetches one record by id. Collection may be empty to search
	// across all collections. Returns apperrors.ErrNotFound when absent.
	GetByID(ctx context.Context, collection, id string) (*models.EmbeddingRecord, error)

	// QueryByMetadata returns all records matching the conjunctive equality
	// filter, newest first. Collection may be empty for all collections.
	QueryByMetadata(ctx context.Context, collection string, filter map[string]string) ([]*models.EmbeddingRecord, error)

	// Delete removes records by id, best effort. Missing ids are not
	// errors; the returned count covers rows actually deleted.
	Delete(ctx context.Context, ids []string) (int64, error)

	// SearchByVector returns up to k records from the named collection
	// matching any of the given scopes, ordered by descending cosine
	// similarity with ties broken by ascending insertion order.
	SearchByVector(ctx context.Context, collection string, vector []float32, k int, scopes []MetadataScope) ([]models.SearchResult, error)

	// Stats returns record counts grouped by tenant and by database type,
	// for diagnostics.
	Stats(ctx context.Context, collection string) (*StoreStats, error)
}

// StoreStats summarizes store contents for diagnostics.
type StoreStats struct {
	TotalRecords   int64            `json:"total_records"`
	ByTenant       map[string]int64 `json:"by_tenant"`
	ByDatabaseType map[string]int64 `json:"by_database_type"`
}

type embeddingRepository struct {
	db        *database.DB
	dimension int
}

// NewEmbeddingRepository creates an EmbeddingRepository enforcing the
// deployment-wide vector dimension.
func NewEmbeddingRepository(db *database.DB, dimension int) EmbeddingRepository {
	return &embeddingRepository{db: db, dimension: dimension}
}

var _ EmbeddingRepository = (*embeddingRepository)(nil)

func (r *embeddingRepository) Add(ctx context.Context, collection string, record *models.EmbeddingRecord) (string, error) {
	if len(record.Vector) != r.dimension {
		return "", apperrors.NewValidationError("vector",
			fmt.Sprintf("dimension %d does not match configured dimension %d", len(record.Vector), r.dimension))
	}
	if record.Document == "" {
		return "", apperrors.NewValidationError("document", "must not be empty")
	}

	collectionID, err := r.ensureCollection(ctx, collection)
	if err != nil {
		return "", err
	}

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	record.CollectionID = collectionID

	query := `
		INSERT INTO engine_embeddings (id, collection_id, document, embedding, metadata)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			collection_id = EXCLUDED.collection_id,
			document = EXCLUDED.document,
			embedding = EXCLUDED.embedding,
			metadata = EXCLUDED.metadata
		RETURNING created_at`

	err = r.db.QueryRow(ctx, query,
		record.ID, collectionID, record.Document,
		pgvector.NewVector(record.Vector), record.Metadata,
	).Scan(&record.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("failed to upsert embedding: %w", err)
	}

	return record.ID, nil
}

// ensureCollection creates the collection on first write. The conditional
// insert is atomic, so concurrent first-writers to the same name all
// converge on a single row.
func (r *embeddingRepository) ensureCollection(ctx context.Context, name string) (uuid.UUID, error) {
	_, err := r.db.Exec(ctx,
		`INSERT INTO engine_collections (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`, name)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to ensure collection %q: %w", name, err)
	}

	var id uuid.UUID
	err = r.db.QueryRow(ctx,
		`SELECT id FROM engine_collections WHERE name = $1`, name).Scan(&id)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to resolve collection %q: %w", name, err)
	}
	return id, nil
}

func (r *embeddingRepository) GetByID(ctx context.Context, collection, id string) (*models.EmbeddingRecord, error) {
	query := `
		SELECT e.id, e.collection_id, e.document, e.embedding, e.metadata, e.insertion_seq, e.created_at
		FROM engine_embeddings e
		JOIN engine_collections c ON e.collection_id = c.id
		WHERE e.id = $1 AND ($2 = '' OR c.name = $2)`

	record, err := scanEmbeddingRow(r.db.QueryRow(ctx, query, id, collection))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get embedding %q: %w", id, err)
	}
	return record, nil
}

func (r *embeddingRepository) QueryByMetadata(ctx context.Context, collection string, filter map[string]string) ([]*models.EmbeddingRecord, error) {
	var sb strings.Builder
	sb.WriteString(`
		SELECT e.id, e.collection_id, e.document, e.embedding, e.metadata, e.insertion_seq, e.created_at
		FROM engine_embeddings e
		JOIN engine_collections c ON e.collection_id = c.id
		WHERE ($1 = '' OR c.name = $1)`)

	args := []any{collection}
	for key, value := range filter {
		args = append(args, key, value)
		fmt.Fprintf(&sb, " AND e.metadata->>$%d::text = $%d", len(args)-1, len(args))
	}
	sb.WriteString(" ORDER BY e.created_at DESC, e.insertion_seq DESC")

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings by metadata: %w", err)
	}
	defer rows.Close()

	records := make([]*models.EmbeddingRecord, 0)
	for rows.Next() {
		rec, err := scanEmbeddingRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating embeddings: %w", err)
	}

	return records, nil
}

func (r *embeddingRepository) Delete(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	result, err := r.db.Exec(ctx, `DELETE FROM engine_embeddings WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("failed to delete embeddings: %w", err)
	}
	return result.RowsAffected(), nil
}

func (r *embeddingRepository) SearchByVector(ctx context.Context, collection string, vector []float32, k int, scopes []MetadataScope) ([]models.SearchResult, error) {
	if len(vector) != r.dimension {
		return nil, apperrors.NewValidationError("vector",
			fmt.Sprintf("query dimension %d does not match configured dimension %d", len(vector), r.dimension))
	}
	if k <= 0 {
		return []models.SearchResult{}, nil
	}

	var sb strings.Builder
	sb.WriteString(`
		SELECT e.id, e.collection_id, e.document, e.embedding, e.metadata, e.insertion_seq, e.created_at,
		       1 - (e.embedding <=> $1) AS score
		FROM engine_embeddings e
		JOIN engine_collections c ON e.collection_id = c.id
		WHERE c.name = $2`)

	args := []any{pgvector.NewVector(vector), collection}

	if len(scopes) > 0 {
		var clauses []string
		for _, scope := range scopes {
			clauses = append(clauses, scopeClause(scope, &args))
		}
		sb.WriteString(" AND (" + strings.Join(clauses, " OR ") + ")")
	}

	args = append(args, k)
	fmt.Fprintf(&sb, " ORDER BY e.embedding <=> $1 ASC, e.insertion_seq ASC LIMIT $%d", len(args))

	rows, err := r.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to run similarity search: %w", err)
	}
	defer rows.Close()

	results := make([]models.SearchResult, 0, k)
	for rows.Next() {
		var rec models.EmbeddingRecord
		var vec pgvector.Vector
		var score float64
		err := rows.Scan(&rec.ID, &rec.CollectionID, &rec.Document, &vec, &rec.Metadata, &rec.Seq, &rec.CreatedAt, &score)
		if err != nil {
			return nil, fmt.Errorf("failed to scan search result: %w", err)
		}
		rec.Vector = vec.Slice()
		results = append(results, models.SearchResult{Record: rec, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating search results: %w", err)
	}

	return results, nil
}

// scopeClause renders one MetadataScope as a parenthesized SQL predicate,
// appending its parameters to args. Text extraction (->>) is used so that
// JSON booleans and their string renderings compare the same way.
func scopeClause(scope MetadataScope, args *[]any) string {
	conds := []string{"TRUE"}
	for key, value := range scope.Equals {
		*args = append(*args, key, value)
		conds = append(conds, fmt.Sprintf("e.metadata->>$%d::text = $%d", len(*args)-1, len(*args)))
	}
	for _, key := range scope.Missing {
		*args = append(*args, key)
		conds = append(conds, fmt.Sprintf("NOT (e.metadata ? $%d::text)", len(*args)))
	}
	return "(" + strings.Join(conds, " AND ") + ")"
}

func (r *embeddingRepository) Stats(ctx context.Context, collection string) (*StoreStats, error) {
	stats := &StoreStats{
		ByTenant:       make(map[string]int64),
		ByDatabaseType: make(map[string]int64),
	}

	err := r.db.QueryRow(ctx, `
		SELECT COUNT(*)
		FROM engine_embeddings e
		JOIN engine_collections c ON e.collection_id = c.id
		WHERE ($1 = '' OR c.name = $1)`, collection).Scan(&stats.TotalRecords)
	if err != nil {
		return nil, fmt.Errorf("failed to count embeddings: %w", err)
	}

	for _, group := range []struct {
		key  string
		dest map[string]int64
	}{
		{models.MetaTenantID, stats.ByTenant},
		{models.MetaDatabaseType, stats.ByDatabaseType},
	} {
		rows, err := r.db.Query(ctx, `
			SELECT COALESCE(e.metadata->>$2::text, ''), COUNT(*)
			FROM engine_embeddings e
			JOIN engine_collections c ON e.collection_id = c.id
			WHERE ($1 = '' OR c.name = $1)
			GROUP BY 1`, collection, group.key)
		if err != nil {
			return nil, fmt.Errorf("failed to group embeddings by %s: %w", group.key, err)
		}
		for rows.Next() {
			var key string
			var count int64
			if err := rows.Scan(&key, &count); err != nil {
				rows.Close()
				return nil, fmt.Errorf("failed to scan stats row: %w", err)
			}
			group.dest[key] = count
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("error iterating stats rows: %w", err)
		}
		rows.Close()
	}

	return stats, nil
}

func scanEmbeddingRow(row pgx.Row) (*models.EmbeddingRecord, error) {
	var rec models.EmbeddingRecord
	var vec pgvector.Vector

	err := row.Scan(&rec.ID, &rec.CollectionID, &rec.Document, &vec, &rec.Metadata, &rec.Seq, &rec.CreatedAt)
	if err != nil {
		return nil, err
	}
	rec.Vector = vec.Slice()
	return &rec, nil
}
