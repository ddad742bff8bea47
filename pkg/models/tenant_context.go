package models

// TenantContext is the optional per-request bundle every read and write
// operation accepts: who is asking, whether shared knowledge should be
// merged in, and which source-database family to scope results to.
type TenantContext struct {
	TenantID      string `json:"tenant_id,omitempty"`
	IncludeShared *bool  `json:"include_shared,omitempty"`
	DatabaseType  string `json:"database_type,omitempty"`
}

// MergeShared reports whether shared records should be merged into results,
// falling back to the deployment default when the request did not say.
func (tc TenantContext) MergeShared(defaultShared bool) bool {
	if tc.IncludeShared != nil {
		return *tc.IncludeShared
	}
	return defaultShared
}
