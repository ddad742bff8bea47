package sql

import "strings"

// Violation records one table reference attributed to a tenant other than
// the acting one.
type Violation struct {
	Table  string // the referenced table
	Tenant string // the tenant the table appears to belong to
}

// genericTableNames are placeholder-ish names that embed no tenant token
// and are skipped by the heuristic outright.
var genericTableNames = map[string]struct{}{
	"orders":        {},
	"sales":         {},
	"customers":     {},
	"products":      {},
	"inventory":     {},
	"dataset.table": {},
	"table_name":    {},
}

// CheckTenantAccess inspects sqlText for references to tables that appear
// to belong to a tenant in registry other than actingTenant.
//
// Attribution is inferred from substring, prefix, and suffix matches on the
// table name; tables matching the acting tenant or a shared naming
// convention ("shared", "common") are never violations. There is no formal
// table-ownership catalog to consult, so this is a heuristic and not a
// guarantee: it can miss tables that embed no tenant token and can flag
// coincidental substring matches. It exists as defense-in-depth behind the
// metadata-filtered retrieval, in case the generation step produces SQL
// referencing data that should never have been suggested.
func CheckTenantAccess(sqlText, actingTenant string, registry []string) []Violation {
	if actingTenant == "" {
		return nil
	}

	var violations []Violation
	acting := strings.ToLower(actingTenant)

	for _, table := range ExtractTables(sqlText) {
		name := strings.ToLower(strings.TrimSpace(table))
		if _, ok := genericTableNames[name]; ok {
			continue
		}

		belongsToActing := strings.Contains(name, acting) ||
			strings.Contains(name, "shared") ||
			strings.Contains(name, "common")

		var owner string
		for _, other := range registry {
			otherLower := strings.ToLower(other)
			if otherLower == acting {
				continue
			}
			if strings.Contains(name, otherLower) ||
				strings.HasPrefix(name, otherLower+"_") ||
				strings.HasSuffix(name, "_"+otherLower) {
				owner = other
				break
			}
		}

		if owner != "" && !belongsToActing {
			violations = append(violations, Violation{Table: table, Tenant: owner})
		}
	}

	return violations
}
