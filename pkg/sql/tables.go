// Package sql provides validation utilities for generated SQL: table
// reference extraction, cross-tenant access checks, and injection
// screening.
package sql

import (
	"regexp"
	"strings"
)

var (
	fromPattern = regexp.MustCompile(`(?i)\bFROM\s+([^\s,;()]+)`)
	joinPattern = regexp.MustCompile(`(?i)\bJOIN\s+([^\s,;()]+)`)
)

// ExtractTables returns the candidate table identifiers referenced in the
// FROM and JOIN clauses of sqlText. This is best-effort tokenization, not a
// full SQL parser: subqueries, CTE names, and quoted identifiers with
// embedded whitespace are out of reach.
func ExtractTables(sqlText string) []string {
	var tables []string
	seen := make(map[string]struct{})

	for _, pattern := range []*regexp.Regexp{fromPattern, joinPattern} {
		for _, match := range pattern.FindAllStringSubmatch(sqlText, -1) {
			name := strings.Trim(match[1], `"'`+"`")
			if name == "" {
				continue
			}
			key := strings.ToLower(name)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			tables = append(tables, name)
		}
	}

	return tables
}
