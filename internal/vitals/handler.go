package vitals

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/haccare/emr-service/internal/access"
	"github.com/rs/zerolog/log"
)

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

type RecordResponse struct {
	Success bool `json:"success"`
	*RecordResult
}

// RecordVitals serves POST /patients/{id}/vitals.
func (h *Handler) RecordVitals(w http.ResponseWriter, r *http.Request) {
	scope, ok := access.ScopeFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusBadRequest, "tenant_required", "No tenant selected")
		return
	}

	var req RecordVitalsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error())
		return
	}

	result, err := h.service.Record(r.Context(), scope, mux.Vars(r)["id"], req)
	if err != nil {
		h.handleError(w, err, "creation_failed")
		return
	}
	respondJSON(w, http.StatusCreated, RecordResponse{Success: true, RecordResult: result})
}

// ListVitals serves GET /patients/{id}/vitals. ?latest=true returns the
// most recent readings only; ?limit=N overrides the page size.
func (h *Handler) ListVitals(w http.ResponseWriter, r *http.Request) {
	scope, ok := access.ScopeFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusBadRequest, "tenant_required", "No tenant selected")
		return
	}

	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}
	if latest, _ := strconv.ParseBool(q.Get("latest")); latest {
		limit = LatestLimit
	}

	out, err := h.service.List(r.Context(), scope, mux.Vars(r)["id"], limit)
	if err != nil {
		h.handleError(w, err, "fetch_failed")
		return
	}
	respondJSON(w, http.StatusOK, VitalsListResponse{Success: true, Vitals: out, Count: len(out)})
}

func (h *Handler) DeleteVitals(w http.ResponseWriter, r *http.Request) {
	scope, ok := access.ScopeFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusBadRequest, "tenant_required", "No tenant selected")
		return
	}

	if err := h.service.Delete(r.Context(), scope, mux.Vars(r)["vitalsId"]); err != nil {
		h.handleError(w, err, "deletion_failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, ErrVitalsNotFound), errors.Is(err, ErrPatientNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrNoReadings), errors.Is(err, ErrIncompleteBloodPressure), errors.Is(err, ErrImplausibleReading):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		log.Error().Err(err).Msg("vital signs request failed")
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
