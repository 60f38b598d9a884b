package simulation

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/haccare/emr-service/internal/access"
	"github.com/haccare/emr-service/internal/auth"
	"github.com/rs/zerolog/log"
)

// ScopeResolver builds the caller's scope in the tenant named by the RPC
// body; *access.Checker satisfies it.
type ScopeResolver interface {
	Resolve(ctx context.Context, p *auth.Principal, requested string) (*access.Scope, error)
}

type Handler struct {
	service  ServiceInterface
	resolver ScopeResolver
}

func NewHandler(service ServiceInterface, resolver ScopeResolver) *Handler {
	return &Handler{service: service, resolver: resolver}
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// scopeFor resolves the tenant from the body, falling back to X-Tenant-ID.
func (h *Handler) scopeFor(w http.ResponseWriter, r *http.Request) (access.Scope, bool) {
	principal, ok := auth.FromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized", "Authentication required")
		return access.Scope{}, false
	}

	var req TenantRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON payload: "+err.Error())
			return access.Scope{}, false
		}
	}
	requested := strings.TrimSpace(req.TenantID)
	if requested == "" {
		requested = r.Header.Get(access.TenantHeader)
	}
	if strings.TrimSpace(requested) == "" {
		respondError(w, http.StatusBadRequest, "validation_error", "tenant_id is required")
		return access.Scope{}, false
	}

	scope, err := h.resolver.Resolve(r.Context(), principal, requested)
	switch {
	case errors.Is(err, access.ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden", "Access to tenant denied")
		return access.Scope{}, false
	case err != nil:
		log.Error().Err(err).Msg("failed to resolve simulation tenant")
		respondError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
		return access.Scope{}, false
	}
	return *scope, true
}

// ResetRun serves POST /rpc/reset_run.
func (h *Handler) ResetRun(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scopeFor(w, r)
	if !ok {
		return
	}

	summary, err := h.service.ResetRun(r.Context(), scope, scope.TenantID)
	if err != nil {
		h.handleError(w, err, "reset_failed")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

// CaptureBaseline serves POST /rpc/capture_baseline.
func (h *Handler) CaptureBaseline(w http.ResponseWriter, r *http.Request) {
	scope, ok := h.scopeFor(w, r)
	if !ok {
		return
	}

	summary, err := h.service.CaptureBaseline(r.Context(), scope, scope.TenantID)
	if err != nil {
		h.handleError(w, err, "capture_failed")
		return
	}
	respondJSON(w, http.StatusOK, summary)
}

func (h *Handler) handleError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, ErrForbidden):
		respondError(w, http.StatusForbidden, "forbidden", err.Error())
	case errors.Is(err, ErrTenantNotFound):
		respondError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, ErrNotSimulation):
		respondError(w, http.StatusBadRequest, "not_simulation", err.Error())
	case errors.Is(err, ErrNoBaseline):
		respondError(w, http.StatusConflict, "no_baseline", err.Error())
	default:
		log.Error().Err(err).Msg("simulation request failed")
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
