package notes

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

type NoteSuccessResponse struct {
	Success bool         `json:"success"`
	Message string       `json:"message"`
	Note    *PatientNote `json:"note,omitempty"`
}

func (h *Handler) CreateNote(w http.ResponseWriter, r *http.Request) {
	scope, ok := access.ScopeFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusBadRequest, "tenant_required", "No tenant selected")
		return
	}

	var req CreateNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error())
		return
	}

	n, err := h.service.Create(r.Context(), scope, mux.Vars(r)["id"], req)
	if err != nil {
		h.handleError(w, err, "creation_failed")
		return
	}
	respondJSON(w, http.StatusCreated, NoteSuccessResponse{Success: true, Message: "Note created successfully", Note: n})
}

// ListNotes serves GET /patients/{id}/notes, optionally filtered by ?type=.
func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	scope, ok := access.ScopeFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusBadRequest, "tenant_required", "No tenant selected")
		return
	}

	out, err := h.service.List(r.Context(), scope, mux.Vars(r)["id"], r.URL.Query().Get("type"))
	if err != nil {
		h.handleError(w, err, "fetch_failed")
		return
	}
	respondJSON(w, http.StatusOK, NoteListResponse{Success: true, Notes: out, Count: len(out)})
}

func (h *Handler) DeleteNote(w http.ResponseWriter, r *http.Request) {
	scope, ok := access.ScopeFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusBadRequest, "tenant_required", "No tenant selected")
		return
	}

	if err := h.service.Delete(r.Context(), scope, mux.Vars(r)["noteId"]); err != nil {
		h.handleError(w, err, "deletion_failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, ErrNoteNotFound), errors.Is(err, ErrPatientNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrContentRequired), errors.Is(err, ErrInvalidType), errors.Is(err, ErrInvalidPriority):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		log.Error().Err(err).Msg("note request failed")
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
