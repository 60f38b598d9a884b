package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/haccare/emr-service/internal/access"
	"github.com/rs/zerolog/log"
)

// ServiceInterface defines the alert operations exposed over HTTP
type ServiceInterface interface {
	Create(ctx context.Context, scope access.Scope, a Alert) (*Alert, bool, error)
	ListActive(ctx context.Context, scope access.Scope, patientID string) ([]Alert, error)
	Acknowledge(ctx context.Context, scope access.Scope, id string) (*Alert, error)
}

var _ ServiceInterface = (*Service)(nil)

type Handler struct {
	service ServiceInterface
}

func NewHandler(service ServiceInterface) *Handler {
	return &Handler{service: service}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type AlertSuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Alert   *Alert `json:"alert,omitempty"`
}

type CreateAlertRequest struct {
	PatientID   string `json:"patient_id"`
	PatientName string `json:"patient_name"`
	Type        string `json:"type"`
	SourceID    string `json:"source_id"`
	Message     string `json:"message"`
	Priority    string `json:"priority"`
}

func (h *Handler) ListActive(w http.ResponseWriter, r *http.Request) {
	scope, ok := access.ScopeFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusBadRequest, "tenant_required", "No tenant selected")
		return
	}

	out, err := h.service.ListActive(r.Context(), scope, r.URL.Query().Get("patient_id"))
	if err != nil {
		h.handleError(w, err, "fetch_failed")
		return
	}
	respondJSON(w, http.StatusOK, AlertListResponse{Success: true, Alerts: out, Count: len(out)})
}

// Create raises an alert by hand in the caller's tenant.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	scope, ok := access.ScopeFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusBadRequest, "tenant_required", "No tenant selected")
		return
	}

	var req CreateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error())
		return
	}
	if req.Type == "" {
		req.Type = TypeSystem
	}

	a, created, err := h.service.Create(r.Context(), scope, Alert{
		TenantID:    scope.TenantID,
		PatientID:   req.PatientID,
		PatientName: req.PatientName,
		Type:        req.Type,
		SourceID:    req.SourceID,
		Message:     req.Message,
		Priority:    req.Priority,
	})
	if err != nil {
		h.handleError(w, err, "creation_failed")
		return
	}
	if !created {
		respondJSON(w, http.StatusOK, AlertSuccessResponse{Success: true, Message: "An alert already exists for this source"})
		return
	}
	respondJSON(w, http.StatusCreated, AlertSuccessResponse{Success: true, Message: "Alert created", Alert: a})
}

func (h *Handler) Acknowledge(w http.ResponseWriter, r *http.Request) {
	scope, ok := access.ScopeFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusBadRequest, "tenant_required", "No tenant selected")
		return
	}

	a, err := h.service.Acknowledge(r.Context(), scope, mux.Vars(r)["alertId"])
	if err != nil {
		h.handleError(w, err, "acknowledge_failed")
		return
	}
	respondJSON(w, http.StatusOK, AlertSuccessResponse{Success: true, Message: "Alert acknowledged", Alert: a})
}

func (h *Handler) handleError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, ErrAlertNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrAlreadyAcknowledged):
		respondError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, ErrMissingTenant),
		errors.Is(err, ErrInvalidType),
		errors.Is(err, ErrInvalidPriority),
		errors.Is(err, ErrMessageRequired):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		log.Error().Err(err).Msg("alert request failed")
		respondError(w, http.StatusInternalServerError, fallback, "Internal server error")
	}
}

func respondJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func respondError(w http.ResponseWriter, statusCode int, errorType, message string) {
	respondJSON(w, statusCode, ErrorResponse{Error: errorType, Message: message})
}
