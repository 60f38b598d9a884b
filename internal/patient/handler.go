package patient

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/haccare/emr-service/internal/access"
	"github.com/haccare/emr-service/internal/pagination"
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

type PatientSuccessResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Patient *Patient `json:"patient,omitempty"`
}

func scopeOrFail(w http.ResponseWriter, r *http.Request) (access.Scope, bool) {
	scope, ok := access.ScopeFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusBadRequest, "tenant_required", "No tenant selected")
	}
	return scope, ok
}

func (h *Handler) CreatePatient(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrFail(w, r)
	if !ok {
		return
	}

	var req CreatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error())
		return
	}

	p, err := h.service.CreatePatient(r.Context(), scope, req)
	if err != nil {
		h.handleError(w, err, "creation_failed")
		return
	}

	respondJSON(w, http.StatusCreated, PatientSuccessResponse{
		Success: true,
		Message: "Patient created successfully",
		Patient: p,
	})
}

func (h *Handler) ListPatients(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrFail(w, r)
	if !ok {
		return
	}

	filter := ListFilter{Condition: r.URL.Query().Get("condition")}
	resp, err := h.service.ListPatients(r.Context(), scope, pagination.ParseParams(r), filter)
	if err != nil {
		h.handleError(w, err, "fetch_failed")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetPatient(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrFail(w, r)
	if !ok {
		return
	}

	p, err := h.service.GetPatient(r.Context(), scope, mux.Vars(r)["id"])
	if err != nil {
		h.handleError(w, err, "fetch_failed")
		return
	}
	respondJSON(w, http.StatusOK, PatientSuccessResponse{
		Success: true,
		Message: "Patient retrieved successfully",
		Patient: p,
	})
}

// LookupPatient serves GET /patients/lookup?code=..., the wristband scan.
func (h *Handler) LookupPatient(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrFail(w, r)
	if !ok {
		return
	}

	p, err := h.service.LookupByCode(r.Context(), scope, r.URL.Query().Get("code"))
	if err != nil {
		h.handleError(w, err, "lookup_failed")
		return
	}
	respondJSON(w, http.StatusOK, PatientSuccessResponse{
		Success: true,
		Message: "Patient found",
		Patient: p,
	})
}

func (h *Handler) UpdatePatient(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrFail(w, r)
	if !ok {
		return
	}

	var req UpdatePatientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error())
		return
	}

	p, err := h.service.UpdatePatient(r.Context(), scope, mux.Vars(r)["id"], req)
	if err != nil {
		h.handleError(w, err, "update_failed")
		return
	}
	respondJSON(w, http.StatusOK, PatientSuccessResponse{
		Success: true,
		Message: "Patient updated successfully",
		Patient: p,
	})
}

func (h *Handler) DeletePatient(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrFail(w, r)
	if !ok {
		return
	}

	if err := h.service.DeletePatient(r.Context(), scope, mux.Vars(r)["id"]); err != nil {
		h.handleError(w, err, "deletion_failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetLabel serves the wristband barcode as image/png.
func (h *Handler) GetLabel(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrFail(w, r)
	if !ok {
		return
	}

	img, err := h.service.Label(r.Context(), scope, mux.Vars(r)["id"])
	if err != nil {
		h.handleError(w, err, "label_failed")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

func (h *Handler) handleError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, ErrPatientNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrRecordNumberTaken):
		respondError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, ErrFirstNameRequired),
		errors.Is(err, ErrLastNameRequired),
		errors.Is(err, ErrInvalidCondition),
		errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrInvalidRecordNumber),
		errors.Is(err, ErrNoFieldsToUpdate):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		log.Error().Err(err).Msg("patient request failed")
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
