package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/querylens/querylens-engine/pkg/apperrors"
)

// Error is a classified provider failure.
type Error struct {
	Provider  string // "openai", "anthropic", ...
	Operation string // "embed", "generate"
	Retryable bool
	Cause     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Operation, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches apperrors.ErrUpstreamUnavailable for retryable failures so
// callers can branch without importing this package's types.
func (e *Error) Is(target error) bool {
	return e.Retryable && target == apperrors.ErrUpstreamUnavailable
}

// IsRetryable implements the retry.RetryableError interface.
func (e *Error) IsRetryable() bool {
	return e.Retryable
}

// classifyError wraps a provider error, deciding retryability. Context
// cancellation is never retryable: the caller abandoned the request.
func classifyError(provider, operation string, err error) *Error {
	retryable := true
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		retryable = false
	case isPermanent(err):
		retryable = false
	}
	return &Error{Provider: provider, Operation: operation, Retryable: retryable, Cause: err}
}

// isPermanent reports failures that retrying cannot fix: bad credentials,
// malformed requests, missing models.
func isPermanent(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{"401", "403", "404", "invalid api key", "model not found", "content policy"} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}
