package llm

import (
	"context"
	"hash/fnv"
	"math"
)

// MockEmbedder returns deterministic vectors derived from the input text.
// Identical inputs embed identically, so similarity ordering in tests is
// stable without a network provider.
type MockEmbedder struct {
	Dimension int
	Err       error // returned from every call when set
	Calls     []string
}

var _ Embedder = (*MockEmbedder)(nil)

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.Calls = append(m.Calls, text)
	if m.Err != nil {
		return nil, m.Err
	}

	dim := m.Dimension
	if dim == 0 {
		dim = 4
	}

	h := fnv.New32a()
	h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float32, dim)
	var norm float64
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%1000)/1000 - 0.5
		norm += float64(vec[i]) * float64(vec[i])
	}
	norm = math.Sqrt(norm)
	for i := range vec {
		vec[i] = float32(float64(vec[i]) / norm)
	}
	return vec, nil
}

// MockGenerator returns a canned response.
type MockGenerator struct {
	Response string
	Err      error
	Prompts  []string // user prompts seen
}

var _ Generator = (*MockGenerator)(nil)

func (m *MockGenerator) GenerateSQL(_ context.Context, _, userPrompt string) (string, error) {
	m.Prompts = append(m.Prompts, userPrompt)
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}
