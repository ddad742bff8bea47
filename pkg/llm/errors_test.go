package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/querylens/querylens-engine/pkg/apperrors"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantRetryable bool
	}{
		{name: "timeout is retryable", err: fmt.Errorf("request timed out"), wantRetryable: true},
		{name: "rate limit is retryable", err: fmt.Errorf("429 too many requests"), wantRetryable: true},
		{name: "bad key is permanent", err: fmt.Errorf("401 invalid api key"), wantRetryable: false},
		{name: "missing model is permanent", err: fmt.Errorf("404 model not found"), wantRetryable: false},
		{name: "caller cancellation is not retried", err: context.Canceled, wantRetryable: false},
		{name: "deadline exceeded is not retried", err: context.DeadlineExceeded, wantRetryable: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			classified := classifyError("openai", "embed", tt.err)
			if classified.IsRetryable() != tt.wantRetryable {
				t.Errorf("IsRetryable() = %v, want %v", classified.IsRetryable(), tt.wantRetryable)
			}
			if got := errors.Is(classified, apperrors.ErrUpstreamUnavailable); got != tt.wantRetryable {
				t.Errorf("errors.Is(ErrUpstreamUnavailable) = %v, want %v", got, tt.wantRetryable)
			}
			if !errors.Is(classified, tt.err) {
				t.Error("classified error should unwrap to its cause")
			}
		})
	}
}

func TestMockEmbedder_Deterministic(t *testing.T) {
	m := &MockEmbedder{Dimension: 8}

	a, err := m.Embed(context.Background(), "revenue by month")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}
	b, err := m.Embed(context.Background(), "revenue by month")
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	if len(a) != 8 {
		t.Fatalf("got dimension %d, want 8", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("identical inputs produced different vectors")
		}
	}
}
