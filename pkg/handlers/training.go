package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/apperrors"
	"github.com/querylens/querylens-engine/pkg/models"
	"github.com/querylens/querylens-engine/pkg/services"
)

// AddTrainingRequest for POST /api/training-data
type AddTrainingRequest struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	Question string `json:"question,omitempty"`
	Shared   bool   `json:"shared,omitempty"`

	TenantID     string `json:"tenant_id,omitempty"`
	DatabaseType string `json:"database_type,omitempty"`
}

// AddTrainingResponse for POST /api/training-data
type AddTrainingResponse struct {
	ID string `json:"id"`
}

// TrainingListResponse for GET /api/training-data
type TrainingListResponse struct {
	Items []models.TrainingItem `json:"items"`
	Total int                   `json:"total"`
}

// RemoveTrainingRequest for DELETE /api/training-data
type RemoveTrainingRequest struct {
	IDs    []string `json:"ids"`
	DryRun bool     `json:"dry_run,omitempty"`

	TenantID string `json:"tenant_id,omitempty"`
}

// TrainingHandler handles training data lifecycle HTTP requests.
type TrainingHandler struct {
	trainingService services.TrainingService
	logger          *zap.Logger
}

// NewTrainingHandler creates a new training data handler.
func NewTrainingHandler(trainingService services.TrainingService, logger *zap.Logger) *TrainingHandler {
	return &TrainingHandler{trainingService: trainingService, logger: logger}
}

// RegisterRoutes registers the training handler's routes on the given mux.
func (h *TrainingHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/training-data", h.Add)
	mux.HandleFunc("GET /api/training-data", h.List)
	mux.HandleFunc("DELETE /api/training-data", h.Remove)
	mux.HandleFunc("GET /api/training-data/stats", h.Stats)
}

// Add handles POST /api/training-data
func (h *TrainingHandler) Add(w http.ResponseWriter, r *http.Request) {
	var req AddTrainingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	tc := models.TenantContext{TenantID: req.TenantID, DatabaseType: req.DatabaseType}

	var (
		id  string
		err error
	)
	switch req.Type {
	case models.ContentTypeSQL:
		id, err = h.trainingService.AddQuestionSQL(r.Context(), req.Question, req.Content, req.Shared, tc)
	case models.ContentTypeDDL:
		id, err = h.trainingService.AddDDL(r.Context(), req.Content, req.Shared, tc)
	case models.ContentTypeDocumentation:
		id, err = h.trainingService.AddDocumentation(r.Context(), req.Content, req.Shared, tc)
	default:
		err = apperrors.NewValidationError("type", "must be one of: ddl, sql, documentation")
	}
	if err != nil {
		ServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusCreated, AddTrainingResponse{ID: id}); err != nil {
		h.logger.Error("Failed to encode add response", zap.Error(err))
	}
}

// List handles GET /api/training-data
func (h *TrainingHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := services.ListFilter{ContentType: q.Get("type")}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			ServiceError(w, apperrors.NewValidationError("limit", "must be a non-negative integer"), h.logger)
			return
		}
		filter.Limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			ServiceError(w, apperrors.NewValidationError("offset", "must be a non-negative integer"), h.logger)
			return
		}
		filter.Offset = n
	}

	tc := models.TenantContext{
		TenantID:     q.Get("tenant_id"),
		DatabaseType: q.Get("database_type"),
	}
	if v := q.Get("include_shared"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			ServiceError(w, apperrors.NewValidationError("include_shared", "must be a boolean"), h.logger)
			return
		}
		tc.IncludeShared = &b
	}

	items, total, err := h.trainingService.List(r.Context(), filter, tc)
	if err != nil {
		ServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, TrainingListResponse{Items: items, Total: total}); err != nil {
		h.logger.Error("Failed to encode list response", zap.Error(err))
	}
}

// Remove handles DELETE /api/training-data
func (h *TrainingHandler) Remove(w http.ResponseWriter, r *http.Request) {
	var req RemoveTrainingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}
	if len(req.IDs) == 0 {
		ServiceError(w, apperrors.NewValidationError("ids", "must not be empty"), h.logger)
		return
	}

	outcome, err := h.trainingService.Remove(r.Context(), req.IDs, req.DryRun,
		models.TenantContext{TenantID: req.TenantID})
	if err != nil {
		ServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, outcome); err != nil {
		h.logger.Error("Failed to encode remove response", zap.Error(err))
	}
}

// Stats handles GET /api/training-data/stats
func (h *TrainingHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.trainingService.Stats(r.Context())
	if err != nil {
		ServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, stats); err != nil {
		h.logger.Error("Failed to encode stats response", zap.Error(err))
	}
}
