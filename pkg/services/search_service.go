package services

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/config"
	"github.com/querylens/querylens-engine/pkg/llm"
	"github.com/querylens/querylens-engine/pkg/models"
	"github.com/querylens/querylens-engine/pkg/repositories"
	"github.com/querylens/querylens-engine/pkg/retry"
)

// defaultTopK bounds similarity searches when the caller does not say.
const defaultTopK = 10

// SearchService answers similarity queries over the embedding store,
// scoped by content type and by the caller's tenant context.
type SearchService interface {
	// Search embeds the query text and returns up to k records of the
	// given content type visible to tc, best match first. k <= 0 uses the
	// default.
	Search(ctx context.Context, contentType, query string, k int, tc models.TenantContext) ([]models.SearchResult, error)

	// GetSimilarQuestionSQL returns previously stored question/SQL pairs
	// similar to the question.
	GetSimilarQuestionSQL(ctx context.Context, question string, tc models.TenantContext) ([]models.SearchResult, error)

	// GetRelatedDDL returns schema definitions related to the question.
	GetRelatedDDL(ctx context.Context, question string, tc models.TenantContext) ([]models.SearchResult, error)

	// GetRelatedDocumentation returns documentation related to the question.
	GetRelatedDocumentation(ctx context.Context, question string, tc models.TenantContext) ([]models.SearchResult, error)
}

type searchService struct {
	repo     repositories.EmbeddingRepository
	embedder llm.Embedder
	strategy IsolationStrategy
	cfg      *config.Config
	logger   *zap.Logger
}

// NewSearchService creates a SearchService.
func NewSearchService(repo repositories.EmbeddingRepository, embedder llm.Embedder, strategy IsolationStrategy, cfg *config.Config, logger *zap.Logger) SearchService {
	return &searchService{
		repo:     repo,
		embedder: embedder,
		strategy: strategy,
		cfg:      cfg,
		logger:   logger.Named("search"),
	}
}

var _ SearchService = (*searchService)(nil)

func (s *searchService) Search(ctx context.Context, contentType, query string, k int, tc models.TenantContext) ([]models.SearchResult, error) {
	if !models.ValidContentType(contentType) {
		return nil, fmt.Errorf("unknown content type %q", contentType)
	}
	if k <= 0 {
		k = defaultTopK
	}

	vector, err := retry.DoWithResult(ctx, retry.DefaultConfig(), func() ([]float32, error) {
		return s.embedder.Embed(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	scopes, err := s.strategy.SearchScopes(s.baseFilter(tc), tc)
	if err != nil {
		return nil, err
	}

	var results []models.SearchResult
	if s.cfg.Tenancy.MergeStrategy == config.MergeSingleQuery {
		results, err = s.repo.SearchByVector(ctx, contentType, vector, k, scopes)
	} else {
		results, err = s.concatSearch(ctx, contentType, vector, k, scopes)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Debug("similarity search completed",
		zap.String("content_type", contentType),
		zap.String("tenant_id", tc.TenantID),
		zap.Int("k", k),
		zap.Int("results", len(results)))
	return results, nil
}

// concatSearch runs one bounded search per scope and re-sorts the
// concatenation. A record visible through several scopes appears once.
// Because each branch is truncated to k before merging, a branch's k+1'th
// result can be missing from the merged list even when it outranks another
// branch's tail; the single-query strategy does not have this gap.
func (s *searchService) concatSearch(ctx context.Context, collection string, vector []float32, k int, scopes []repositories.MetadataScope) ([]models.SearchResult, error) {
	if len(scopes) == 0 {
		return s.repo.SearchByVector(ctx, collection, vector, k, nil)
	}

	seen := make(map[string]struct{})
	var merged []models.SearchResult
	for _, scope := range scopes {
		results, err := s.repo.SearchByVector(ctx, collection, vector, k, []repositories.MetadataScope{scope})
		if err != nil {
			return nil, err
		}
		for _, res := range results {
			if _, dup := seen[res.Record.ID]; dup {
				continue
			}
			seen[res.Record.ID] = struct{}{}
			merged = append(merged, res)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Score != merged[j].Score {
			return merged[i].Score > merged[j].Score
		}
		return merged[i].Record.Seq < merged[j].Record.Seq
	})
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

// baseFilter holds the non-tenancy predicates every search scope carries.
func (s *searchService) baseFilter(tc models.TenantContext) map[string]string {
	dbType := tc.DatabaseType
	if dbType == "" {
		dbType = s.cfg.DatabaseType
	}
	return map[string]string{models.MetaDatabaseType: dbType}
}

func (s *searchService) GetSimilarQuestionSQL(ctx context.Context, question string, tc models.TenantContext) ([]models.SearchResult, error) {
	return s.Search(ctx, models.ContentTypeSQL, question, defaultTopK, tc)
}

func (s *searchService) GetRelatedDDL(ctx context.Context, question string, tc models.TenantContext) ([]models.SearchResult, error) {
	return s.Search(ctx, models.ContentTypeDDL, question, defaultTopK, tc)
}

func (s *searchService) GetRelatedDocumentation(ctx context.Context, question string, tc models.TenantContext) ([]models.SearchResult, error) {
	return s.Search(ctx, models.ContentTypeDocumentation, question, defaultTopK, tc)
}
