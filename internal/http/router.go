package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/haccare/emr-service/internal/access"
	"github.com/haccare/emr-service/internal/auth"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"
)

// RouterConfig holds the HTTP-facing settings taken from config.Config.
type RouterConfig struct {
	ServiceName        string
	AllowedOrigins     []string
	RateLimitRPS       float64
	RateLimitBurst     int
	MembershipCacheTTL time.Duration
}

// Metrics is the recorder set the router hands to its middleware.
type Metrics interface {
	HTTPMetricsRecorder
	auth.MetricsRecorder
	auth.PermissionMetricsRecorder
}

// SetupRouter mounts every route on a new router. Rate limiting is skipped
// when limiter is nil.
func SetupRouter(d *Deps, limiter *RateLimiter) *mux.Router {
	r := mux.NewRouter()

	serviceName := d.Config.ServiceName
	if serviceName == "" {
		serviceName = "emr-service"
	}
	r.Use(otelmux.Middleware(serviceName))
	r.Use(Recoverer)
	r.Use(RequestLogger)
	r.Use(mux.MiddlewareFunc(CORSMiddleware(d.Config.AllowedOrigins)))
	if limiter != nil {
		r.Use(limiter.Middleware)
	}
	if d.Metrics != nil {
		r.Use(MetricsMiddleware(d.Metrics))
	}

	// authed runs token verification and the role permission check.
	authed := func(per string, h http.HandlerFunc) http.Handler {
		var authMetrics auth.MetricsRecorder
		var permMetrics auth.PermissionMetricsRecorder
		if d.Metrics != nil {
			authMetrics = d.Metrics
			permMetrics = d.Metrics
		}
		return auth.MiddlewareWithMetrics(d.Verifier, authMetrics)(
			auth.RequirePermissionWithMetrics(per, d.Permissions, permMetrics)(h),
		)
	}
	// scoped additionally resolves the tenant scope for the request.
	scoped := func(per string, h http.HandlerFunc) http.Handler {
		return authed(per, access.Middleware(d.Checker)(h).ServeHTTP)
	}

	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"ok","service":"` + serviceName + `"}`))
	}).Methods("GET")

	// Preflight requests match a path but no method, so mux hands them to
	// the method-not-allowed handler where route middleware does not run.
	r.MethodNotAllowedHandler = CORSMiddleware(d.Config.AllowedOrigins)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}))

	// RPCs
	r.Handle("/rpc/assign_user_to_tenant", authed("user:assign", d.Users.AssignUserToTenant)).Methods("POST")
	r.Handle("/rpc/reset_run", authed("simulation:manage", d.Simulation.ResetRun)).Methods("POST")
	r.Handle("/rpc/capture_baseline", authed("simulation:manage", d.Simulation.CaptureBaseline)).Methods("POST")

	// Profile
	r.Handle("/api/me", authed("profile:view", d.Users.GetMyProfile)).Methods("GET")
	r.Handle("/api/me", authed("profile:view", d.Users.UpdateMyProfile)).Methods("PUT")
	r.Handle("/api/me/tenants", authed("profile:view", d.Users.ListMyTenants)).Methods("GET")

	// Tenants
	r.Handle("/api/tenants", authed("tenant:create", d.Tenants.CreateTenant)).Methods("POST")
	r.Handle("/api/tenants", authed("tenant:view", d.Tenants.ListTenants)).Methods("GET")
	r.Handle("/api/tenants/{id}", authed("tenant:view", d.Tenants.GetTenant)).Methods("GET")
	r.Handle("/api/tenants/{id}", authed("tenant:update", d.Tenants.UpdateTenant)).Methods("PUT")
	r.Handle("/api/tenants/{id}", authed("tenant:delete", d.Tenants.DeleteTenant)).Methods("DELETE")

	// Members of the current tenant
	r.Handle("/api/members", scoped("tenant:members", d.Users.ListMembers)).Methods("GET")
	r.Handle("/api/members/{userId}", scoped("user:remove", d.Users.RemoveMember)).Methods("DELETE")

	// Patients. lookup must be registered before {id}.
	r.Handle("/api/patients", scoped("patient:create", d.Patients.CreatePatient)).Methods("POST")
	r.Handle("/api/patients", scoped("patient:view", d.Patients.ListPatients)).Methods("GET")
	r.Handle("/api/patients/lookup", scoped("patient:view", d.Patients.LookupPatient)).Methods("GET")
	r.Handle("/api/patients/{id}", scoped("patient:view", d.Patients.GetPatient)).Methods("GET")
	r.Handle("/api/patients/{id}", scoped("patient:update", d.Patients.UpdatePatient)).Methods("PUT")
	r.Handle("/api/patients/{id}", scoped("patient:delete", d.Patients.DeletePatient)).Methods("DELETE")
	r.Handle("/api/patients/{id}/label.png", scoped("patient:view", d.Patients.GetLabel)).Methods("GET")

	// Medications
	r.Handle("/api/patients/{id}/medications", scoped("medication:manage", d.Medications.CreateMedication)).Methods("POST")
	r.Handle("/api/patients/{id}/medications", scoped("medication:view", d.Medications.ListMedications)).Methods("GET")
	r.Handle("/api/patients/{id}/medications/due", scoped("medication:view", d.Medications.DueList)).Methods("GET")
	r.Handle("/api/medications/{medicationId}", scoped("medication:view", d.Medications.GetMedication)).Methods("GET")
	r.Handle("/api/medications/{medicationId}", scoped("medication:manage", d.Medications.UpdateMedication)).Methods("PUT")
	r.Handle("/api/medications/{medicationId}", scoped("medication:manage", d.Medications.DeleteMedication)).Methods("DELETE")
	r.Handle("/api/medications/{medicationId}/administer", scoped("medication:administer", d.Medications.Administer)).Methods("POST")
	r.Handle("/api/medications/{medicationId}/administrations", scoped("medication:view", d.Medications.ListAdministrations)).Methods("GET")
	r.Handle("/api/medications/{medicationId}/label.png", scoped("medication:view", d.Medications.GetLabel)).Methods("GET")

	// Vital signs
	r.Handle("/api/patients/{id}/vitals", scoped("vitals:record", d.Vitals.RecordVitals)).Methods("POST")
	r.Handle("/api/patients/{id}/vitals", scoped("vitals:view", d.Vitals.ListVitals)).Methods("GET")
	r.Handle("/api/vitals/{vitalsId}", scoped("vitals:delete", d.Vitals.DeleteVitals)).Methods("DELETE")

	// Notes
	r.Handle("/api/patients/{id}/notes", scoped("notes:create", d.Notes.CreateNote)).Methods("POST")
	r.Handle("/api/patients/{id}/notes", scoped("notes:view", d.Notes.ListNotes)).Methods("GET")
	r.Handle("/api/notes/{noteId}", scoped("notes:delete", d.Notes.DeleteNote)).Methods("DELETE")

	// Alerts
	r.Handle("/api/alerts", scoped("alerts:view", d.Alerts.ListActive)).Methods("GET")
	r.Handle("/api/alerts", scoped("alerts:create", d.Alerts.Create)).Methods("POST")
	r.Handle("/api/alerts/{alertId}/acknowledge", scoped("alerts:acknowledge", d.Alerts.Acknowledge)).Methods("POST")

	return r
}
