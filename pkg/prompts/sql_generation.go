// Package prompts assembles the prompts used for SQL generation.
package prompts

import (
	"fmt"
	"strings"

	"github.com/querylens/querylens-engine/pkg/models"
)

// SQLGenerationSystem builds the system prompt for generating a SQL query,
// grounding the model with retrieved schema, documentation, and prior
// question/SQL pairs.
func SQLGenerationSystem(databaseType string, ddl, docs, examples []models.SearchResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "You are a %s expert. ", databaseType)
	b.WriteString("Generate a single SQL query that answers the user's question, ")
	b.WriteString("using only the tables and columns shown in the provided context.\n\n")

	b.WriteString("Rules:\n")
	b.WriteString("- Respond with the SQL query only, no explanation.\n")
	b.WriteString("- Generate exactly one statement.\n")
	b.WriteString("- Only reference tables that appear in the provided schema.\n")
	b.WriteString("- If the question cannot be answered from the schema, respond with a SELECT that returns an explanatory message.\n")

	if len(ddl) > 0 {
		b.WriteString("\nSchema:\n")
		for _, r := range ddl {
			b.WriteString(r.Record.Document)
			b.WriteString("\n")
		}
	}
	if len(docs) > 0 {
		b.WriteString("\nDocumentation:\n")
		for _, r := range docs {
			b.WriteString(r.Record.Document)
			b.WriteString("\n")
		}
	}
	if len(examples) > 0 {
		b.WriteString("\nSimilar questions answered before:\n")
		for _, r := range examples {
			if q, ok := r.Record.Metadata[models.MetaQuestion].(string); ok && q != "" {
				fmt.Fprintf(&b, "Question: %s\n", q)
			}
			fmt.Fprintf(&b, "SQL: %s\n\n", r.Record.Document)
		}
	}

	return b.String()
}

// SQLGenerationUser builds the user prompt for a question.
func SQLGenerationUser(question string) string {
	return fmt.Sprintf("Question: %s\n\nSQL:", question)
}
