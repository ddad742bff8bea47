//go:build integration

package repositories

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/apperrors"
	"github.com/querylens/querylens-engine/pkg/testhelpers"
)

var regionTables = []string{"engine_collections", "engine_embeddings"}

func seedRegion(t *testing.T, tdb *testhelpers.TestDB, region string, docs int) {
	t.Helper()
	ctx := context.Background()

	var collectionID string
	err := tdb.DB.QueryRow(ctx, fmt.Sprintf(
		`INSERT INTO %s.engine_collections (name) VALUES ('sql') RETURNING id`, region)).
		Scan(&collectionID)
	require.NoError(t, err)

	vec := "[1" + repeatComma(",0", 1535) + "]"
	for i := 0; i < docs; i++ {
		_, err := tdb.DB.Exec(ctx, fmt.Sprintf(
			`INSERT INTO %s.engine_embeddings (id, collection_id, document, embedding)
			 VALUES ($1, $2, $3, $4::vector)`, region),
			fmt.Sprintf("%s-doc-%d", region, i), collectionID, fmt.Sprintf("doc %d", i), vec)
		require.NoError(t, err)
	}
}

func repeatComma(s string, n int) string {
	out := make([]byte, 0, len(s)*n)
	for i := 0; i < n; i++ {
		out = append(out, s...)
	}
	return string(out)
}

func regionRowCount(t *testing.T, tdb *testhelpers.TestDB, region, table string) int {
	t.Helper()
	var n int
	err := tdb.DB.QueryRow(context.Background(),
		fmt.Sprintf(`SELECT COUNT(*) FROM %s.%s`, region, table)).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestRegionRepository_EnsureRegion(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)
	repo := NewRegionRepository(tdb.DB, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.EnsureRegion(ctx, "region_ensure"))
	// Idempotent on a second run.
	require.NoError(t, repo.EnsureRegion(ctx, "region_ensure"))

	status, err := repo.RegionStatus(ctx, "region_ensure")
	require.NoError(t, err)
	assert.True(t, status.Exists)
	assert.ElementsMatch(t, regionTables, status.Tables)
}

func TestRegionRepository_RegionStatus_Absent(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)
	repo := NewRegionRepository(tdb.DB, zap.NewNop())

	status, err := repo.RegionStatus(context.Background(), "no_such_region")
	require.NoError(t, err)
	assert.False(t, status.Exists)
	assert.Empty(t, status.Tables)
}

func TestRegionRepository_MigrateTables(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)
	repo := NewRegionRepository(tdb.DB, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.EnsureRegion(ctx, "region_src"))
	require.NoError(t, repo.EnsureRegion(ctx, "region_dst"))
	seedRegion(t, tdb, "region_src", 3)

	moved, err := repo.MigrateTables(ctx, "region_src", "region_dst", regionTables)
	require.NoError(t, err)
	assert.Equal(t, int64(4), moved, "one collection row plus three embeddings")

	assert.Zero(t, regionRowCount(t, tdb, "region_src", "engine_embeddings"))
	assert.Zero(t, regionRowCount(t, tdb, "region_src", "engine_collections"))
	assert.Equal(t, 3, regionRowCount(t, tdb, "region_dst", "engine_embeddings"))
	assert.Equal(t, 1, regionRowCount(t, tdb, "region_dst", "engine_collections"))

	// Running the migration again moves nothing.
	moved, err = repo.MigrateTables(ctx, "region_src", "region_dst", regionTables)
	require.NoError(t, err)
	assert.Zero(t, moved)
}

func TestRegionRepository_MigrateTables_SameRegion(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)
	repo := NewRegionRepository(tdb.DB, zap.NewNop())

	_, err := repo.MigrateTables(context.Background(), "public", "public", regionTables)
	assert.True(t, apperrors.IsValidation(err))
}

func TestRegionRepository_MigrateTables_FailureLeavesSourceIntact(t *testing.T) {
	tdb := testhelpers.GetTestDB(t)
	repo := NewRegionRepository(tdb.DB, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, repo.EnsureRegion(ctx, "region_intact"))
	seedRegion(t, tdb, "region_intact", 2)

	// Target region was never provisioned, so the copy fails mid-way.
	_, err := repo.MigrateTables(ctx, "region_intact", "region_missing", regionTables)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrMigrationFailed)

	assert.Equal(t, 2, regionRowCount(t, tdb, "region_intact", "engine_embeddings"))
	assert.Equal(t, 1, regionRowCount(t, tdb, "region_intact", "engine_collections"))
}
