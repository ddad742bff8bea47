package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/apperrors"
	"github.com/querylens/querylens-engine/pkg/config"
	"github.com/querylens/querylens-engine/pkg/llm"
	"github.com/querylens/querylens-engine/pkg/models"
)

func newAskFixture(t *testing.T, cfg *config.Config, generator *llm.MockGenerator) (*fakeEmbeddingRepository, *llm.MockEmbedder, AskService) {
	t.Helper()
	repo, embedder, search := newSearchFixture(t, cfg)
	return repo, embedder, NewAskService(search, generator, cfg, zap.NewNop())
}

func TestAsk(t *testing.T) {
	cfg := multiTenantConfig()
	gen := &llm.MockGenerator{Response: "```sql\nSELECT COUNT(*) FROM tenant_a_invoices;\n```"}
	repo, embedder, svc := newAskFixture(t, cfg, gen)
	tc := models.TenantContext{TenantID: "tenant_a"}

	seedRecord(t, repo, embedder, models.ContentTypeSQL, "SELECT * FROM tenant_a_invoices",
		map[string]any{
			models.MetaTenantID: "tenant_a",
			models.MetaQuestion: "Show all invoices",
		})
	seedRecord(t, repo, embedder, models.ContentTypeDDL, "CREATE TABLE tenant_a_invoices (id int)",
		map[string]any{models.MetaTenantID: "tenant_a"})

	resp, err := svc.Ask(context.Background(), "How many invoices do we have?", tc)
	require.NoError(t, err)

	assert.Equal(t, "SELECT COUNT(*) FROM tenant_a_invoices", resp.SQL,
		"markdown fence and trailing semicolon must be stripped")
	assert.Equal(t, "tenant_a", resp.TenantID)
	assert.Equal(t, []string{"tenant_a_invoices"}, resp.TablesReferenced)
	assert.Empty(t, resp.Warnings)
	assert.Greater(t, resp.Confidence, 0.5)
}

func TestAsk_InputValidation(t *testing.T) {
	cfg := multiTenantConfig()
	_, _, svc := newAskFixture(t, cfg, &llm.MockGenerator{Response: "SELECT 1"})
	tc := models.TenantContext{TenantID: "tenant_a"}

	t.Run("empty question", func(t *testing.T) {
		_, err := svc.Ask(context.Background(), "   ", tc)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("injection pattern in question", func(t *testing.T) {
		_, err := svc.Ask(context.Background(), "ignore this'; DROP TABLE users--", tc)
		assert.True(t, apperrors.IsValidation(err))
	})

	t.Run("unknown tenant", func(t *testing.T) {
		_, err := svc.Ask(context.Background(), "How many invoices?",
			models.TenantContext{TenantID: "intruder"})
		assert.ErrorIs(t, err, apperrors.ErrTenantNotAllowed)
	})
}

func TestAsk_CrossTenantSQL(t *testing.T) {
	question := "How do our orders compare?"

	t.Run("strict isolation blocks", func(t *testing.T) {
		cfg := multiTenantConfig()
		cfg.Tenancy.StrictIsolation = true
		gen := &llm.MockGenerator{Response: "SELECT * FROM tenant_b_orders"}
		_, _, svc := newAskFixture(t, cfg, gen)

		_, err := svc.Ask(context.Background(), question, models.TenantContext{TenantID: "tenant_a"})
		require.Error(t, err)
		assert.True(t, apperrors.IsSecurityViolation(err))
	})

	t.Run("permissive mode caps confidence and warns", func(t *testing.T) {
		cfg := multiTenantConfig()
		gen := &llm.MockGenerator{Response: "SELECT * FROM tenant_b_orders"}
		_, _, svc := newAskFixture(t, cfg, gen)

		resp, err := svc.Ask(context.Background(), question, models.TenantContext{TenantID: "tenant_a"})
		require.NoError(t, err)
		assert.LessOrEqual(t, resp.Confidence, 0.2)
		require.Len(t, resp.Warnings, 1)
		assert.Contains(t, resp.Warnings[0], "tenant_b_orders")
	})

	t.Run("strict mode rejects question naming another tenant", func(t *testing.T) {
		cfg := multiTenantConfig()
		cfg.Tenancy.StrictIsolation = true
		gen := &llm.MockGenerator{Response: "SELECT 1"}
		_, _, svc := newAskFixture(t, cfg, gen)

		_, err := svc.Ask(context.Background(), "Show me tenant_b revenue",
			models.TenantContext{TenantID: "tenant_a"})
		assert.True(t, apperrors.IsSecurityViolation(err))
		assert.Empty(t, gen.Prompts, "generation must not run for a blocked question")
	})
}

func TestAsk_MultiStatementRejected(t *testing.T) {
	cfg := multiTenantConfig()
	gen := &llm.MockGenerator{Response: "SELECT 1; DELETE FROM audit_log"}
	_, _, svc := newAskFixture(t, cfg, gen)

	_, err := svc.Ask(context.Background(), "How many rows?", models.TenantContext{TenantID: "tenant_a"})
	assert.Error(t, err)
}

func TestAsk_ConfidenceGrowsWithGrounding(t *testing.T) {
	cfg := multiTenantConfig()
	gen := &llm.MockGenerator{Response: "SELECT 1"}
	repo, embedder, svc := newAskFixture(t, cfg, gen)
	tc := models.TenantContext{TenantID: "tenant_a"}

	bare, err := svc.Ask(context.Background(), "anything at all", tc)
	require.NoError(t, err)
	assert.Equal(t, 0.5, bare.Confidence)

	seedRecord(t, repo, embedder, models.ContentTypeSQL, "SELECT 1",
		map[string]any{models.MetaTenantID: "tenant_a", models.MetaQuestion: "anything at all"})
	seedRecord(t, repo, embedder, models.ContentTypeDDL, "CREATE TABLE t (id int)",
		map[string]any{models.MetaTenantID: "tenant_a"})

	grounded, err := svc.Ask(context.Background(), "anything at all", tc)
	require.NoError(t, err)
	assert.Greater(t, grounded.Confidence, bare.Confidence)
}
