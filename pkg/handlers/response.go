package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/apperrors"
)

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(map[string]string{
		"error":   errorCode,
		"message": message,
	})
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// ServiceError maps a service-layer error onto the wire and logs it.
// Validation, tenancy, and security errors get their own statuses; anything
// unrecognized is a 500.
func ServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	var (
		status = http.StatusInternalServerError
		code   = "internal_error"
	)
	switch {
	case apperrors.IsValidation(err):
		status, code = http.StatusBadRequest, "invalid_request"
	case apperrors.IsSecurityViolation(err):
		status, code = http.StatusForbidden, "security_violation"
	case errors.Is(err, apperrors.ErrTenantNotAllowed):
		status, code = http.StatusForbidden, "tenant_not_allowed"
	case errors.Is(err, apperrors.ErrNotFound):
		status, code = http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrUpstreamUnavailable):
		status, code = http.StatusServiceUnavailable, "upstream_unavailable"
	}

	if status == http.StatusInternalServerError {
		logger.Error("Request failed", zap.Error(err))
	} else {
		logger.Warn("Request rejected", zap.String("code", code), zap.Error(err))
	}
	if werr := ErrorResponse(w, status, code, err.Error()); werr != nil {
		logger.Error("Failed to write error response", zap.Error(werr))
	}
}
