package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/querylens/querylens-engine/pkg/apperrors"
	"github.com/querylens/querylens-engine/pkg/models"
	"github.com/querylens/querylens-engine/pkg/repositories"
)

// fakeEmbeddingRepository is an in-memory EmbeddingRepository with the same
// matching semantics as the Postgres implementation: text-extracted
// metadata equality and key-absence scopes, cosine similarity ordering with
// insertion-order tie breaks.
type fakeEmbeddingRepository struct {
	mu      sync.Mutex
	items   map[string]*fakeItem
	nextSeq int64
}

type fakeItem struct {
	collection string
	record     models.EmbeddingRecord
}

func newFakeRepo() *fakeEmbeddingRepository {
	return &fakeEmbeddingRepository{items: make(map[string]*fakeItem)}
}

var _ repositories.EmbeddingRepository = (*fakeEmbeddingRepository)(nil)

func (f *fakeEmbeddingRepository) Add(_ context.Context, collection string, record *models.EmbeddingRecord) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if existing, ok := f.items[record.ID]; ok {
		record.Seq = existing.record.Seq
	} else {
		f.nextSeq++
		record.Seq = f.nextSeq
	}
	f.items[record.ID] = &fakeItem{collection: collection, record: *record}
	return record.ID, nil
}

func (f *fakeEmbeddingRepository) GetByID(_ context.Context, collection, id string) (*models.EmbeddingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	item, ok := f.items[id]
	if !ok || (collection != "" && item.collection != collection) {
		return nil, apperrors.ErrNotFound
	}
	rec := item.record
	return &rec, nil
}

func (f *fakeEmbeddingRepository) QueryByMetadata(_ context.Context, collection string, filter map[string]string) ([]*models.EmbeddingRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []*models.EmbeddingRecord
	for _, item := range f.items {
		if collection != "" && item.collection != collection {
			continue
		}
		if !matchesEquals(item.record.Metadata, filter) {
			continue
		}
		rec := item.record
		out = append(out, &rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq > out[j].Seq })
	return out, nil
}

func (f *fakeEmbeddingRepository) Delete(_ context.Context, ids []string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var n int64
	for _, id := range ids {
		if _, ok := f.items[id]; ok {
			delete(f.items, id)
			n++
		}
	}
	return n, nil
}

func (f *fakeEmbeddingRepository) SearchByVector(_ context.Context, collection string, vector []float32, k int, scopes []repositories.MetadataScope) ([]models.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if k <= 0 {
		return []models.SearchResult{}, nil
	}

	var results []models.SearchResult
	for _, item := range f.items {
		if item.collection != collection {
			continue
		}
		if !matchesAnyScope(item.record.Metadata, scopes) {
			continue
		}
		results = append(results, models.SearchResult{
			Record: item.record,
			Score:  cosine(vector, item.record.Vector),
		})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Record.Seq < results[j].Record.Seq
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (f *fakeEmbeddingRepository) Stats(_ context.Context, collection string) (*repositories.StoreStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	stats := &repositories.StoreStats{
		ByTenant:       make(map[string]int64),
		ByDatabaseType: make(map[string]int64),
	}
	for _, item := range f.items {
		if collection != "" && item.collection != collection {
			continue
		}
		stats.TotalRecords++
		stats.ByTenant[asText(item.record.Metadata[models.MetaTenantID])]++
		stats.ByDatabaseType[asText(item.record.Metadata[models.MetaDatabaseType])]++
	}
	return stats, nil
}

func matchesAnyScope(meta map[string]any, scopes []repositories.MetadataScope) bool {
	if len(scopes) == 0 {
		return true
	}
	for _, scope := range scopes {
		if matchesScope(meta, scope) {
			return true
		}
	}
	return false
}

func matchesScope(meta map[string]any, scope repositories.MetadataScope) bool {
	if !matchesEquals(meta, scope.Equals) {
		return false
	}
	for _, key := range scope.Missing {
		if _, present := meta[key]; present {
			return false
		}
	}
	return true
}

func matchesEquals(meta map[string]any, equals map[string]string) bool {
	for key, want := range equals {
		v, present := meta[key]
		if !present || asText(v) != want {
			return false
		}
	}
	return true
}

// asText mirrors Postgres ->> extraction for the types tests store.
func asText(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
