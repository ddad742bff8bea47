package services

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/apperrors"
	"github.com/querylens/querylens-engine/pkg/config"
	"github.com/querylens/querylens-engine/pkg/llm"
	"github.com/querylens/querylens-engine/pkg/logging"
	"github.com/querylens/querylens-engine/pkg/models"
	"github.com/querylens/querylens-engine/pkg/prompts"
	"github.com/querylens/querylens-engine/pkg/retry"
	sqlutil "github.com/querylens/querylens-engine/pkg/sql"
)

// violationConfidenceCap is the maximum confidence of a response whose SQL
// referenced another tenant's tables under permissive isolation.
const violationConfidenceCap = 0.2

// AskResponse is the result of answering a natural-language question.
type AskResponse struct {
	Question         string   `json:"question"`
	SQL              string   `json:"sql"`
	Confidence       float64  `json:"confidence"`
	TablesReferenced []string `json:"tables_referenced,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
	TenantID         string   `json:"tenant_id,omitempty"`
}

// AskService turns natural-language questions into SQL, grounded in the
// training data visible to the asking tenant.
type AskService interface {
	Ask(ctx context.Context, question string, tc models.TenantContext) (*AskResponse, error)
}

type askService struct {
	search    SearchService
	generator llm.Generator
	cfg       *config.Config
	logger    *zap.Logger
}

// NewAskService creates an AskService.
func NewAskService(search SearchService, generator llm.Generator, cfg *config.Config, logger *zap.Logger) AskService {
	return &askService{
		search:    search,
		generator: generator,
		cfg:       cfg,
		logger:    logger.Named("ask"),
	}
}

var _ AskService = (*askService)(nil)

func (s *askService) Ask(ctx context.Context, question string, tc models.TenantContext) (*AskResponse, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, apperrors.NewValidationError("question", "must not be empty")
	}
	if check := sqlutil.CheckQuestionForInjection(question); check != nil {
		s.logger.Warn("question rejected by injection screen",
			zap.String("tenant_id", tc.TenantID),
			zap.String("fingerprint", check.Fingerprint))
		return nil, apperrors.NewValidationError("question", "contains a SQL injection pattern")
	}

	tenant, err := s.resolveTenant(tc)
	if err != nil {
		return nil, err
	}

	// With strict isolation, a question that names another registered
	// tenant outright is blocked before any generation happens.
	if s.cfg.Tenancy.Enabled && s.cfg.Tenancy.StrictIsolation {
		if other := s.mentionedOtherTenant(question, tenant); other != "" {
			return nil, &apperrors.SecurityViolationError{
				Tenant:        tenant,
				BlockedTables: []string{other},
			}
		}
	}

	examples, err := s.search.GetSimilarQuestionSQL(ctx, question, tc)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve similar questions: %w", err)
	}
	ddl, err := s.search.GetRelatedDDL(ctx, question, tc)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve related ddl: %w", err)
	}
	docs, err := s.search.GetRelatedDocumentation(ctx, question, tc)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve related documentation: %w", err)
	}

	system := prompts.SQLGenerationSystem(s.databaseType(tc), ddl, docs, examples)
	user := prompts.SQLGenerationUser(question)

	raw, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() (string, error) {
		return s.generator.GenerateSQL(ctx, system, user)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate sql: %w", err)
	}

	sqlText, err := sqlutil.Normalize(stripFences(raw))
	if err != nil {
		return nil, fmt.Errorf("generated sql rejected: %w", err)
	}

	resp := &AskResponse{
		Question:         question,
		SQL:              sqlText,
		Confidence:       baseConfidence(examples, ddl),
		TablesReferenced: sqlutil.ExtractTables(sqlText),
		TenantID:         tenant,
	}

	if s.cfg.Tenancy.Enabled && tenant != "" {
		violations := sqlutil.CheckTenantAccess(sqlText, tenant, s.cfg.Tenancy.AllowedTenants())
		if len(violations) > 0 {
			tables := make([]string, 0, len(violations))
			for _, v := range violations {
				tables = append(tables, v.Table)
			}
			if s.cfg.Tenancy.StrictIsolation {
				s.logger.Warn("generated sql blocked for cross-tenant table access",
					zap.String("tenant_id", tenant),
					zap.Strings("tables", tables))
				return nil, &apperrors.SecurityViolationError{Tenant: tenant, BlockedTables: tables}
			}
			if resp.Confidence > violationConfidenceCap {
				resp.Confidence = violationConfidenceCap
			}
			resp.Warnings = append(resp.Warnings, fmt.Sprintf(
				"query references tables that may belong to another tenant: %s",
				strings.Join(tables, ", ")))
			s.logger.Warn("generated sql references other-tenant tables",
				zap.String("tenant_id", tenant),
				zap.Strings("tables", tables))
		}
	}

	s.logger.Info("question answered",
		zap.String("tenant_id", tenant),
		zap.Float64("confidence", resp.Confidence),
		zap.Int("examples", len(examples)),
		zap.Int("ddl", len(ddl)),
		zap.String("sql", logging.SanitizeQuery(sqlText)))
	return resp, nil
}

func (s *askService) resolveTenant(tc models.TenantContext) (string, error) {
	if !s.cfg.Tenancy.Enabled {
		return tc.TenantID, nil
	}
	tenant := tc.TenantID
	if tenant == "" {
		tenant = s.cfg.Tenancy.DefaultTenant
	}
	if tenant == "" {
		return "", apperrors.NewValidationError("tenant_id", "required when multi-tenant mode is enabled")
	}
	if !s.cfg.Tenancy.IsTenantAllowed(tenant) {
		return "", fmt.Errorf("tenant %q: %w", tenant, apperrors.ErrTenantNotAllowed)
	}
	return tenant, nil
}

// mentionedOtherTenant returns the first registered tenant other than
// acting whose name appears in the question, or "".
func (s *askService) mentionedOtherTenant(question, acting string) string {
	lower := strings.ToLower(question)
	for _, other := range s.cfg.Tenancy.AllowedTenants() {
		if strings.EqualFold(other, acting) {
			continue
		}
		if strings.Contains(lower, strings.ToLower(other)) {
			return other
		}
	}
	return ""
}

func (s *askService) databaseType(tc models.TenantContext) string {
	if tc.DatabaseType != "" {
		return tc.DatabaseType
	}
	return s.cfg.DatabaseType
}

// baseConfidence scores the answer by how well grounded the generation was:
// similar answered questions carry the most weight, schema context a little.
func baseConfidence(examples, ddl []models.SearchResult) float64 {
	conf := 0.5
	if len(examples) > 0 {
		conf += 0.2
		if examples[0].Score > 0.85 {
			conf += 0.1
		}
	}
	if len(ddl) > 0 {
		conf += 0.1
	}
	if conf > 0.9 {
		conf = 0.9
	}
	return conf
}

// stripFences removes a ```sql ... ``` markdown fence if the model wrapped
// its answer in one.
func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```sql")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
