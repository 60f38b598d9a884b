package access

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/haccare/emr-service/internal/auth"
	"github.com/rs/zerolog/log"
)

// Middleware resolves the request tenant and stores the Scope in the
// context. It must run after auth.Middleware.
func Middleware(checker *Checker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			pr, ok := auth.FromContext(r.Context())
			if !ok {
				respondError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
				return
			}

			scope, err := checker.Resolve(r.Context(), pr, r.Header.Get(TenantHeader))
			switch {
			case errors.Is(err, ErrNoTenant):
				respondError(w, http.StatusBadRequest, "tenant_required", "No tenant selected; send the X-Tenant-ID header")
				return
			case errors.Is(err, ErrForbidden):
				log.Info().
					Str("user_id", pr.UserID).
					Str("tenant_id", r.Header.Get(TenantHeader)).
					Msg("tenant access denied")
				respondError(w, http.StatusForbidden, "forbidden", "You do not have access to this tenant")
				return
			case err != nil:
				log.Error().Err(err).Str("user_id", pr.UserID).Msg("failed to resolve tenant")
				respondError(w, http.StatusInternalServerError, "internal_error", "Failed to resolve tenant")
				return
			}

			next.ServeHTTP(w, r.WithContext(WithScope(r.Context(), *scope)))
		})
	}
}

func respondError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{
		"error":   errorType,
		"message": message,
	})
}
