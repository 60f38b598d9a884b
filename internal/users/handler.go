package users

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/haccare/emr-service/internal/access"
	"github.com/haccare/emr-service/internal/auth"
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

// AssignUserToTenant serves POST /rpc/assign_user_to_tenant.
func (h *Handler) AssignUserToTenant(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "User not authenticated")
		return
	}

	var req AssignUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error())
		return
	}

	m, err := h.service.AssignUserToTenant(r.Context(), principal, req)
	if err != nil {
		h.handleError(w, err, "assign_failed")
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"membership": m,
	})
}

func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	scope, ok := access.ScopeFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusBadRequest, "tenant_required", "No tenant selected")
		return
	}

	resp, err := h.service.ListMembers(r.Context(), scope, pagination.ParseParams(r))
	if err != nil {
		h.handleError(w, err, "fetch_failed")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	scope, ok := access.ScopeFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusBadRequest, "tenant_required", "No tenant selected")
		return
	}

	if err := h.service.RemoveMember(r.Context(), scope, mux.Vars(r)["userId"]); err != nil {
		h.handleError(w, err, "remove_failed")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) GetMyProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "User not authenticated")
		return
	}

	p, err := h.service.GetMyProfile(r.Context(), principal)
	if err != nil {
		h.handleError(w, err, "fetch_failed")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) UpdateMyProfile(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "User not authenticated")
		return
	}

	var req UpdateProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error())
		return
	}

	p, err := h.service.UpdateMyProfile(r.Context(), principal, req)
	if err != nil {
		h.handleError(w, err, "update_failed")
		return
	}
	respondJSON(w, http.StatusOK, p)
}

func (h *Handler) ListMyTenants(w http.ResponseWriter, r *http.Request) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthenticated", "User not authenticated")
		return
	}

	tenants, err := h.service.ListMyTenants(r.Context(), principal)
	if err != nil {
		h.handleError(w, err, "fetch_failed")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"tenants": tenants,
		"count":   len(tenants),
	})
}

func (h *Handler) handleError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden", err.Error())
	case IsNotFound(err):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrTenantInactive):
		respondError(w, http.StatusConflict, "tenant_inactive", err.Error())
	case errors.Is(err, ErrMissingUserID),
		errors.Is(err, ErrMissingTenantID),
		errors.Is(err, ErrInvalidRole),
		errors.Is(err, ErrNoFieldsToUpdate):
		respondError(w, http.StatusBadRequest, "validation_error", err.Error())
	default:
		log.Error().Err(err).Msg("user request failed")
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
