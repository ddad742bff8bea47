package sql

import "testing"

func TestCheckTenantAccess(t *testing.T) {
	registry := []string{"acme", "beta"}

	tests := []struct {
		name         string
		sql          string
		actingTenant string
		wantTables   []string
		wantTenants  []string
	}{
		{
			name:         "other tenant table blocked",
			sql:          "SELECT * FROM beta_orders",
			actingTenant: "acme",
			wantTables:   []string{"beta_orders"},
			wantTenants:  []string{"beta"},
		},
		{
			name:         "own tenant table allowed",
			sql:          "SELECT * FROM acme_orders",
			actingTenant: "acme",
		},
		{
			name:         "shared naming convention allowed",
			sql:          "SELECT * FROM shared_beta_reference",
			actingTenant: "acme",
		},
		{
			name:         "tenant suffix blocked",
			sql:          "SELECT * FROM orders_beta JOIN acme_users ON 1=1",
			actingTenant: "acme",
			wantTables:   []string{"orders_beta"},
			wantTenants:  []string{"beta"},
		},
		{
			name:         "generic placeholder names skipped",
			sql:          "SELECT * FROM orders JOIN customers ON 1=1",
			actingTenant: "acme",
		},
		{
			name:         "join to other tenant blocked",
			sql:          "SELECT * FROM acme_orders a JOIN beta_orders b ON a.id = b.id",
			actingTenant: "acme",
			wantTables:   []string{"beta_orders"},
			wantTenants:  []string{"beta"},
		},
		{
			name:         "no acting tenant means no check",
			sql:          "SELECT * FROM beta_orders",
			actingTenant: "",
		},
		{
			name:         "table embedding both tenants credits acting tenant",
			sql:          "SELECT * FROM acme_beta_reconciliation",
			actingTenant: "acme",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			violations := CheckTenantAccess(tt.sql, tt.actingTenant, registry)
			if len(violations) != len(tt.wantTables) {
				t.Fatalf("got %d violations %v, want %d", len(violations), violations, len(tt.wantTables))
			}
			for i, v := range violations {
				if v.Table != tt.wantTables[i] {
					t.Errorf("violation %d table = %q, want %q", i, v.Table, tt.wantTables[i])
				}
				if v.Tenant != tt.wantTenants[i] {
					t.Errorf("violation %d tenant = %q, want %q", i, v.Tenant, tt.wantTenants[i])
				}
			}
		})
	}
}

func TestCheckTenantAccess_RegistryScenario(t *testing.T) {
	// Ownership inferred from the registry alone: exactly one violation,
	// naming the owning tenant.
	violations := CheckTenantAccess("SELECT * FROM tenantB_orders", "tenantA", []string{"tenantA", "tenantB"})
	if len(violations) != 1 {
		t.Fatalf("got %d violations, want 1", len(violations))
	}
	if violations[0].Tenant != "tenantB" {
		t.Errorf("violation tenant = %q, want tenantB", violations[0].Tenant)
	}
}
