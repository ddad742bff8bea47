// Package llm provides the embedding and SQL-generation provider clients.
package llm

import "context"

// Embedder turns text into a fixed-length vector via a network provider.
// Failures are classified: transient provider errors unwrap to
// apperrors.ErrUpstreamUnavailable and are retryable, so a timeout surfaces
// as a retryable error rather than a silent empty-result search.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Generator produces SQL text from an assembled prompt. Treated as a pure
// function from (context, question) to SQL; everything around it - prompt
// assembly, retrieval, validation - lives in the services layer.
type Generator interface {
	GenerateSQL(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
