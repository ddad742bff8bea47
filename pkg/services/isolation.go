// Package services implements the business logic for the embedding
// retrieval store: tenant isolation, similarity search, training data
// lifecycle, and question answering.
package services

import (
	"fmt"

	"github.com/querylens/querylens-engine/pkg/apperrors"
	"github.com/querylens/querylens-engine/pkg/config"
	"github.com/querylens/querylens-engine/pkg/models"
	"github.com/querylens/querylens-engine/pkg/repositories"
)

// IsolationStrategy decides how tenant boundaries are enforced at the
// storage layer: what ownership metadata a write must carry, which scopes a
// search may read, and who may modify a stored record.
type IsolationStrategy interface {
	// WriteMetadata stamps ownership metadata onto meta for a write made
	// under tc. isShared marks the record visible to every tenant instead
	// of privately owned.
	WriteMetadata(meta map[string]any, tc models.TenantContext, isShared bool) error

	// SearchScopes returns the disjunctive metadata scopes a search under
	// tc may read. base holds non-tenancy equality predicates (content
	// scoping such as database_type) that every scope must also satisfy.
	SearchScopes(base map[string]string, tc models.TenantContext) ([]repositories.MetadataScope, error)

	// CanModify reports whether actingTenant may delete or rewrite the
	// record, with a human-readable reason when it may not.
	CanModify(record *models.EmbeddingRecord, actingTenant string) (bool, string)
}

// NewIsolationStrategy selects the strategy for the deployment's tenancy
// configuration.
func NewIsolationStrategy(cfg *config.Config) (IsolationStrategy, error) {
	if !cfg.Tenancy.Enabled {
		return &openIsolation{}, nil
	}
	switch cfg.Tenancy.Isolation {
	case config.IsolationMetadata:
		return &metadataIsolation{tenancy: &cfg.Tenancy}, nil
	case config.IsolationSchema:
		return &schemaIsolation{tenancy: &cfg.Tenancy}, nil
	default:
		return nil, fmt.Errorf("unknown isolation strategy %q", cfg.Tenancy.Isolation)
	}
}

// openIsolation is the single-tenant mode: no ownership metadata, no search
// restriction. It is only selected when tenancy is explicitly disabled.
type openIsolation struct{}

var _ IsolationStrategy = (*openIsolation)(nil)

func (s *openIsolation) WriteMetadata(meta map[string]any, tc models.TenantContext, isShared bool) error {
	if isShared {
		meta[models.MetaIsShared] = true
	}
	return nil
}

func (s *openIsolation) SearchScopes(base map[string]string, tc models.TenantContext) ([]repositories.MetadataScope, error) {
	if len(base) == 0 {
		return nil, nil
	}
	return []repositories.MetadataScope{{Equals: base}}, nil
}

func (s *openIsolation) CanModify(record *models.EmbeddingRecord, actingTenant string) (bool, string) {
	return true, ""
}

// metadataIsolation keeps every tenant in one set of tables and enforces
// the boundary per record through tenant_id and is_shared metadata.
type metadataIsolation struct {
	tenancy *config.TenancyConfig
}

var _ IsolationStrategy = (*metadataIsolation)(nil)

// resolveTenant applies the default-tenant fallback and the registry check.
// A request with no resolvable tenant in multi-tenant mode is an error,
// never an unrestricted read.
func (s *metadataIsolation) resolveTenant(tc models.TenantContext) (string, error) {
	tenant := tc.TenantID
	if tenant == "" {
		tenant = s.tenancy.DefaultTenant
	}
	if tenant == "" {
		return "", apperrors.NewValidationError("tenant_id", "required when multi-tenant mode is enabled")
	}
	if !s.tenancy.IsTenantAllowed(tenant) {
		return "", fmt.Errorf("tenant %q: %w", tenant, apperrors.ErrTenantNotAllowed)
	}
	return tenant, nil
}

func (s *metadataIsolation) WriteMetadata(meta map[string]any, tc models.TenantContext, isShared bool) error {
	if isShared {
		// Shared records deliberately carry no tenant_id, so a later
		// tenant-scoped search will only see them through the shared scope.
		meta[models.MetaIsShared] = true
		delete(meta, models.MetaTenantID)
		return nil
	}
	tenant, err := s.resolveTenant(tc)
	if err != nil {
		return err
	}
	meta[models.MetaTenantID] = tenant
	return nil
}

func (s *metadataIsolation) SearchScopes(base map[string]string, tc models.TenantContext) ([]repositories.MetadataScope, error) {
	tenant, err := s.resolveTenant(tc)
	if err != nil {
		return nil, err
	}

	private := repositories.MetadataScope{Equals: withKey(base, models.MetaTenantID, tenant)}
	scopes := []repositories.MetadataScope{private}

	if tc.MergeShared(s.tenancy.SharedKnowledge) {
		scopes = append(scopes, repositories.MetadataScope{
			Equals: withKey(base, models.MetaIsShared, "true"),
		})
	}
	if s.tenancy.IncludeLegacy {
		// Records written before multi-tenant adoption have neither a
		// tenant_id key nor an is_shared key. Shared records also drop
		// tenant_id, so is_shared must be absent too or this scope would
		// return shared records to requests that opted out of them.
		scopes = append(scopes, repositories.MetadataScope{
			Equals:  cloneFilter(base),
			Missing: []string{models.MetaTenantID, models.MetaIsShared},
		})
	}
	return scopes, nil
}

func (s *metadataIsolation) CanModify(record *models.EmbeddingRecord, actingTenant string) (bool, string) {
	if actingTenant == "" {
		actingTenant = s.tenancy.DefaultTenant
	}
	if record.IsShared() {
		return false, "access denied: shared records cannot be removed by a tenant"
	}
	owner := record.TenantID()
	if owner == "" {
		// Legacy record with no owner: modifiable only when the deployment
		// opted in to treating legacy data as visible.
		if s.tenancy.IncludeLegacy {
			return true, ""
		}
		return false, "access denied: record has no owning tenant"
	}
	if owner != actingTenant {
		return false, fmt.Sprintf("access denied: record belongs to tenant %q", owner)
	}
	return true, ""
}

// schemaIsolation gives every deployment its own Postgres schema, so the
// physical connection already bounds visibility. Ownership metadata is
// still stamped for diagnostics and cross-schema migration, but searches
// within the schema are unrestricted beyond content scoping.
type schemaIsolation struct {
	tenancy *config.TenancyConfig
}

var _ IsolationStrategy = (*schemaIsolation)(nil)

func (s *schemaIsolation) WriteMetadata(meta map[string]any, tc models.TenantContext, isShared bool) error {
	if isShared {
		meta[models.MetaIsShared] = true
		return nil
	}
	tenant := tc.TenantID
	if tenant == "" {
		tenant = s.tenancy.DefaultTenant
	}
	if tenant != "" {
		meta[models.MetaTenantID] = tenant
	}
	return nil
}

func (s *schemaIsolation) SearchScopes(base map[string]string, tc models.TenantContext) ([]repositories.MetadataScope, error) {
	if len(base) == 0 {
		return nil, nil
	}
	return []repositories.MetadataScope{{Equals: base}}, nil
}

func (s *schemaIsolation) CanModify(record *models.EmbeddingRecord, actingTenant string) (bool, string) {
	return true, ""
}

// withKey copies base and adds one key, leaving base untouched.
func withKey(base map[string]string, key, value string) map[string]string {
	out := cloneFilter(base)
	out[key] = value
	return out
}

func cloneFilter(base map[string]string) map[string]string {
	out := make(map[string]string, len(base)+1)
	for k, v := range base {
		out[k] = v
	}
	return out
}
