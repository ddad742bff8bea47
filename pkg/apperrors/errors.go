// Package apperrors defines the error kinds shared across the engine.
package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound            = errors.New("not found")
	ErrTenantNotAllowed    = errors.New("tenant not allowed")
	ErrUpstreamUnavailable = errors.New("upstream provider unavailable")
	ErrMigrationFailed     = errors.New("migration failed")
)

// ValidationError reports malformed input: missing required metadata,
// an invalid type enum, or a vector dimension mismatch.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation: %s", e.Message)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// SecurityViolationError reports a cross-tenant access attempt. It is kept
// distinct from ValidationError so callers can branch policy on it.
type SecurityViolationError struct {
	Tenant        string   // acting tenant
	BlockedTables []string // tables the tenant may not reference
}

func (e *SecurityViolationError) Error() string {
	return fmt.Sprintf("security violation: tenant %q cannot access tables: %s",
		e.Tenant, strings.Join(e.BlockedTables, ", "))
}

// IsSecurityViolation reports whether err is a SecurityViolationError.
func IsSecurityViolation(err error) bool {
	var sv *SecurityViolationError
	return errors.As(err, &sv)
}
