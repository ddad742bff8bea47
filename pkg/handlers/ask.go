package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/querylens/querylens-engine/pkg/models"
	"github.com/querylens/querylens-engine/pkg/services"
)

// AskRequest for POST /api/ask
type AskRequest struct {
	Question string `json:"question"`

	TenantID      string `json:"tenant_id,omitempty"`
	IncludeShared *bool  `json:"include_shared,omitempty"`
	DatabaseType  string `json:"database_type,omitempty"`
}

// AskHandler handles natural-language question HTTP requests.
type AskHandler struct {
	askService services.AskService
	logger     *zap.Logger
}

// NewAskHandler creates a new ask handler.
func NewAskHandler(askService services.AskService, logger *zap.Logger) *AskHandler {
	return &AskHandler{askService: askService, logger: logger}
}

// RegisterRoutes registers the ask handler's routes on the given mux.
func (h *AskHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/ask", h.Ask)
}

// Ask handles POST /api/ask
func (h *AskHandler) Ask(w http.ResponseWriter, r *http.Request) {
	var req AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_request", "invalid JSON body"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	tc := models.TenantContext{
		TenantID:      req.TenantID,
		IncludeShared: req.IncludeShared,
		DatabaseType:  req.DatabaseType,
	}

	resp, err := h.askService.Ask(r.Context(), req.Question, tc)
	if err != nil {
		ServiceError(w, err, h.logger)
		return
	}

	if err := WriteJSON(w, http.StatusOK, resp); err != nil {
		h.logger.Error("Failed to encode ask response", zap.Error(err))
	}
}
