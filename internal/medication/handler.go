package medication

import (
	"encoding/json"
	"errors"
	"net/http"

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

type MedicationSuccessResponse struct {
	Success    bool        `json:"success"`
	Message    string      `json:"message"`
	Medication *Medication `json:"medication,omitempty"`
}

type MedicationListResponse struct {
	Success     bool         `json:"success"`
	Medications []Medication `json:"medications"`
	Count       int          `json:"count"`
}

type AdministrationListResponse struct {
	Success         bool             `json:"success"`
	Administrations []Administration `json:"administrations"`
	Count           int              `json:"count"`
}

func scopeOrFail(w http.ResponseWriter, r *http.Request) (access.Scope, bool) {
	scope, ok := access.ScopeFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusBadRequest, "tenant_required", "No tenant selected")
	}
	return scope, ok
}

func (h *Handler) CreateMedication(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrFail(w, r)
	if !ok {
		return
	}

	var req CreateMedicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error())
		return
	}

	m, err := h.service.CreateMedication(r.Context(), scope, mux.Vars(r)["id"], req)
	if err != nil {
		h.handleError(w, err, "creation_failed")
		return
	}
	respondJSON(w, http.StatusCreated, MedicationSuccessResponse{
		Success:    true,
		Message:    "Medication created successfully",
		Medication: m,
	})
}

func (h *Handler) ListMedications(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrFail(w, r)
	if !ok {
		return
	}

	meds, err := h.service.ListMedications(r.Context(), scope, mux.Vars(r)["id"], r.URL.Query().Get("status"))
	if err != nil {
		h.handleError(w, err, "fetch_failed")
		return
	}
	respondJSON(w, http.StatusOK, MedicationListResponse{Success: true, Medications: meds, Count: len(meds)})
}

// DueList serves GET /patients/{id}/medications/due.
func (h *Handler) DueList(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrFail(w, r)
	if !ok {
		return
	}

	resp, err := h.service.DueList(r.Context(), scope, mux.Vars(r)["id"])
	if err != nil {
		h.handleError(w, err, "fetch_failed")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) GetMedication(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrFail(w, r)
	if !ok {
		return
	}

	m, err := h.service.GetMedication(r.Context(), scope, mux.Vars(r)["medicationId"])
	if err != nil {
		h.handleError(w, err, "fetch_failed")
		return
	}
	respondJSON(w, http.StatusOK, MedicationSuccessResponse{
		Success:    true,
		Message:    "Medication retrieved successfully",
		Medication: m,
	})
}

func (h *Handler) UpdateMedication(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrFail(w, r)
	if !ok {
		return
	}

	var req UpdateMedicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error())
		return
	}

	m, err := h.service.UpdateMedication(r.Context(), scope, mux.Vars(r)["medicationId"], req)
	if err != nil {
		h.handleError(w, err, "update_failed")
		return
	}
	respondJSON(w, http.StatusOK, MedicationSuccessResponse{
		Success:    true,
		Message:    "Medication updated successfully",
		Medication: m,
	})
}

func (h *Handler) DeleteMedication(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrFail(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteMedication(r.Context(), scope, mux.Vars(r)["medicationId"]); err != nil {
		h.handleError(w, err, "deletion_failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Administer serves POST /medications/{medicationId}/administer.
func (h *Handler) Administer(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrFail(w, r)
	if !ok {
		return
	}

	var req AdministerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error())
		return
	}

	result, err := h.service.Administer(r.Context(), scope, mux.Vars(r)["medicationId"], req)
	if err != nil {
		h.handleError(w, err, "administration_failed")
		return
	}
	respondJSON(w, http.StatusCreated, result)
}

func (h *Handler) ListAdministrations(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrFail(w, r)
	if !ok {
		return
	}

	out, err := h.service.ListAdministrations(r.Context(), scope, mux.Vars(r)["medicationId"])
	if err != nil {
		h.handleError(w, err, "fetch_failed")
		return
	}
	respondJSON(w, http.StatusOK, AdministrationListResponse{Success: true, Administrations: out, Count: len(out)})
}

func (h *Handler) GetLabel(w http.ResponseWriter, r *http.Request) {
	scope, ok := scopeOrFail(w, r)
	if !ok {
		return
	}

	img, err := h.service.Label(r.Context(), scope, mux.Vars(r)["medicationId"])
	if err != nil {
		h.handleError(w, err, "label_failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

func (h *Handler) handleError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, ErrMedicationNotFound), errors.Is(err, ErrPatientNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrBarcodeTaken):
		respondError(w, http.StatusConflict, "conflict", err.Error())
	case errors.Is(err, ErrPatientBarcodeMismatch),
		errors.Is(err, ErrMedicationBarcodeMismatch),
		errors.Is(err, ErrWrongPatient),
		errors.Is(err, ErrMedicationInactive):
		respondError(w, http.StatusUnprocessableEntity, "verification_failed", err.Error())
	case errors.Is(err, ErrNameRequired),
		errors.Is(err, ErrDosageRequired),
		errors.Is(err, ErrRouteRequired),
		errors.Is(err, ErrInvalidCategory),
		errors.Is(err, ErrInvalidStatus),
		errors.Is(err, ErrInvalidFrequency),
		errors.Is(err, ErrInvalidDate),
		errors.Is(err, ErrPRNNextDue),
		errors.Is(err, ErrNoFieldsToUpdate):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		log.Error().Err(err).Msg("medication request failed")
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
