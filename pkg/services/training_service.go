package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/apperrors"
	"github.com/querylens/querylens-engine/pkg/config"
	"github.com/querylens/querylens-engine/pkg/llm"
	"github.com/querylens/querylens-engine/pkg/models"
	"github.com/querylens/querylens-engine/pkg/repositories"
	"github.com/querylens/querylens-engine/pkg/retry"
)

// ListFilter narrows and pages a training data listing.
type ListFilter struct {
	// ContentType limits the listing to one content type. Empty lists all.
	ContentType string
	// Limit caps the page size. Zero means no cap.
	Limit int
	// Offset skips that many items from the start of the listing.
	Offset int
}

// TrainingService manages the lifecycle of training data: question/SQL
// pairs, schema definitions, and documentation.
type TrainingService interface {
	// AddQuestionSQL stores a question with its validated SQL answer.
	// The question is what gets embedded, so future similar questions
	// retrieve this pair. Returns the stored id.
	AddQuestionSQL(ctx context.Context, question, sqlText string, shared bool, tc models.TenantContext) (string, error)

	// AddDDL stores a schema definition statement.
	AddDDL(ctx context.Context, ddl string, shared bool, tc models.TenantContext) (string, error)

	// AddDocumentation stores free-form documentation text.
	AddDocumentation(ctx context.Context, doc string, shared bool, tc models.TenantContext) (string, error)

	// List returns the training items visible to tc, newest first,
	// narrowed and paged by filter. The returned count is the total number
	// of visible items before paging.
	List(ctx context.Context, filter ListFilter, tc models.TenantContext) ([]models.TrainingItem, int, error)

	// Remove deletes the given ids on behalf of tc. Each id is checked
	// independently; ids the tenant may not remove are reported in the
	// outcome rather than aborting the batch. With dryRun the outcome is
	// computed but nothing is deleted.
	Remove(ctx context.Context, ids []string, dryRun bool, tc models.TenantContext) (*models.RemoveOutcome, error)

	// Stats returns store-wide record counts for diagnostics.
	Stats(ctx context.Context) (*repositories.StoreStats, error)
}

type trainingService struct {
	repo     repositories.EmbeddingRepository
	embedder llm.Embedder
	strategy IsolationStrategy
	cfg      *config.Config
	logger   *zap.Logger
}

// NewTrainingService creates a TrainingService.
func NewTrainingService(repo repositories.EmbeddingRepository, embedder llm.Embedder, strategy IsolationStrategy, cfg *config.Config, logger *zap.Logger) TrainingService {
	return &trainingService{
		repo:     repo,
		embedder: embedder,
		strategy: strategy,
		cfg:      cfg,
		logger:   logger.Named("training"),
	}
}

var _ TrainingService = (*trainingService)(nil)

func (s *trainingService) AddQuestionSQL(ctx context.Context, question, sqlText string, shared bool, tc models.TenantContext) (string, error) {
	if question == "" {
		return "", apperrors.NewValidationError("question", "required for question/SQL training data")
	}
	if sqlText == "" {
		return "", apperrors.NewValidationError("sql", "must not be empty")
	}
	meta := map[string]any{models.MetaQuestion: question}
	return s.add(ctx, models.ContentTypeSQL, sqlText, question, meta, shared, tc)
}

func (s *trainingService) AddDDL(ctx context.Context, ddl string, shared bool, tc models.TenantContext) (string, error) {
	if ddl == "" {
		return "", apperrors.NewValidationError("ddl", "must not be empty")
	}
	return s.add(ctx, models.ContentTypeDDL, ddl, ddl, nil, shared, tc)
}

func (s *trainingService) AddDocumentation(ctx context.Context, doc string, shared bool, tc models.TenantContext) (string, error) {
	if doc == "" {
		return "", apperrors.NewValidationError("documentation", "must not be empty")
	}
	return s.add(ctx, models.ContentTypeDocumentation, doc, doc, nil, shared, tc)
}

// add embeds embedText and stores document under the content type's
// collection with full ownership and scoping metadata.
func (s *trainingService) add(ctx context.Context, contentType, document, embedText string, meta map[string]any, shared bool, tc models.TenantContext) (string, error) {
	if meta == nil {
		meta = make(map[string]any)
	}
	meta[models.MetaContentType] = contentType
	meta[models.MetaDatabaseType] = s.databaseType(tc)
	meta[models.MetaCreatedAt] = time.Now().UTC().Format(time.RFC3339)

	if err := s.strategy.WriteMetadata(meta, tc, shared); err != nil {
		return "", err
	}

	vector, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() ([]float32, error) {
		return s.embedder.Embed(ctx, embedText)
	})
	if err != nil {
		return "", fmt.Errorf("failed to embed training data: %w", err)
	}

	record := &models.EmbeddingRecord{
		Document: document,
		Vector:   vector,
		Metadata: meta,
	}
	id, err := s.repo.Add(ctx, contentType, record)
	if err != nil {
		return "", err
	}

	s.logger.Info("training data added",
		zap.String("id", id),
		zap.String("content_type", contentType),
		zap.String("tenant_id", tc.TenantID),
		zap.Bool("shared", shared))
	return id, nil
}

func (s *trainingService) List(ctx context.Context, filter ListFilter, tc models.TenantContext) ([]models.TrainingItem, int, error) {
	if filter.ContentType != "" && !models.ValidContentType(filter.ContentType) {
		return nil, 0, fmt.Errorf("unknown content type %q", filter.ContentType)
	}

	query := map[string]string{models.MetaDatabaseType: s.databaseType(tc)}
	records, err := s.repo.QueryByMetadata(ctx, filter.ContentType, query)
	if err != nil {
		return nil, 0, err
	}

	items := make([]models.TrainingItem, 0, len(records))
	for _, rec := range records {
		if !s.visible(rec, tc) {
			continue
		}
		items = append(items, models.TrainingItemFromRecord(rec))
	}
	total := len(items)

	if filter.Offset > 0 {
		if filter.Offset >= len(items) {
			return []models.TrainingItem{}, total, nil
		}
		items = items[filter.Offset:]
	}
	if filter.Limit > 0 && len(items) > filter.Limit {
		items = items[:filter.Limit]
	}
	return items, total, nil
}

// visible reports whether tc may see the record in a listing, mirroring
// the scopes a search under tc would read.
func (s *trainingService) visible(rec *models.EmbeddingRecord, tc models.TenantContext) bool {
	t := &s.cfg.Tenancy
	if !t.Enabled || t.Isolation == config.IsolationSchema {
		return true
	}
	tenant := tc.TenantID
	if tenant == "" {
		tenant = t.DefaultTenant
	}
	if rec.IsShared() {
		return tc.MergeShared(t.SharedKnowledge)
	}
	owner := rec.TenantID()
	if owner == "" {
		return t.IncludeLegacy
	}
	return owner == tenant
}

func (s *trainingService) Remove(ctx context.Context, ids []string, dryRun bool, tc models.TenantContext) (*models.RemoveOutcome, error) {
	outcome := &models.RemoveOutcome{Removed: []string{}, Failed: []models.RemoveFailed{}}

	actingTenant := tc.TenantID
	if actingTenant == "" && s.cfg.Tenancy.Enabled {
		actingTenant = s.cfg.Tenancy.DefaultTenant
	}

	var removable []string
	for _, id := range ids {
		rec, err := s.repo.GetByID(ctx, "", id)
		if err != nil {
			if err == apperrors.ErrNotFound {
				outcome.Failed = append(outcome.Failed, models.RemoveFailed{ID: id, Reason: "not found"})
				continue
			}
			return nil, err
		}
		if ok, reason := s.strategy.CanModify(rec, actingTenant); !ok {
			outcome.Failed = append(outcome.Failed, models.RemoveFailed{ID: id, Reason: reason})
			s.logger.Warn("removal denied",
				zap.String("id", id),
				zap.String("tenant_id", actingTenant),
				zap.String("reason", reason))
			continue
		}
		removable = append(removable, id)
	}

	if !dryRun && len(removable) > 0 {
		if _, err := s.repo.Delete(ctx, removable); err != nil {
			return nil, err
		}
	}
	outcome.Removed = append(outcome.Removed, removable...)

	s.logger.Info("training data removal processed",
		zap.Int("requested", len(ids)),
		zap.Int("removed", len(outcome.Removed)),
		zap.Int("failed", len(outcome.Failed)),
		zap.Bool("dry_run", dryRun))
	return outcome, nil
}

func (s *trainingService) Stats(ctx context.Context) (*repositories.StoreStats, error) {
	return s.repo.Stats(ctx, "")
}

func (s *trainingService) databaseType(tc models.TenantContext) string {
	if tc.DatabaseType != "" {
		return tc.DatabaseType
	}
	return s.cfg.DatabaseType
}
