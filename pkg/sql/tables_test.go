package sql

import (
	"reflect"
	"testing"
)

func TestExtractTables(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "simple select",
			input:    "SELECT * FROM users",
			expected: []string{"users"},
		},
		{
			name:     "lowercase keywords",
			input:    "select id from orders where id = 1",
			expected: []string{"orders"},
		},
		{
			name:     "join",
			input:    "SELECT * FROM users u JOIN orders o ON u.id = o.user_id",
			expected: []string{"users", "orders"},
		},
		{
			name:     "multiple joins",
			input:    "SELECT * FROM a LEFT JOIN b ON a.x = b.x INNER JOIN c ON b.y = c.y",
			expected: []string{"a", "b", "c"},
		},
		{
			name:     "schema qualified",
			input:    "SELECT * FROM analytics.page_views",
			expected: []string{"analytics.page_views"},
		},
		{
			name:     "quoted identifier",
			input:    `SELECT * FROM "acme_orders"`,
			expected: []string{"acme_orders"},
		},
		{
			name:     "duplicate references deduplicated",
			input:    "SELECT * FROM users UNION SELECT * FROM users",
			expected: []string{"users"},
		},
		{
			name:     "trailing semicolon not captured",
			input:    "SELECT * FROM users;",
			expected: []string{"users"},
		},
		{
			name:     "no tables",
			input:    "SELECT 1",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractTables(tt.input)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("ExtractTables(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}
