package http

import (
	"database/sql"

	"github.com/haccare/emr-service/internal/access"
	"github.com/haccare/emr-service/internal/alerts"
	"github.com/haccare/emr-service/internal/auth"
	"github.com/haccare/emr-service/internal/medication"
	"github.com/haccare/emr-service/internal/messaging"
	"github.com/haccare/emr-service/internal/notes"
	"github.com/haccare/emr-service/internal/patient"
	"github.com/haccare/emr-service/internal/simulation"
	"github.com/haccare/emr-service/internal/telemetry"
	"github.com/haccare/emr-service/internal/tenant"
	"github.com/haccare/emr-service/internal/users"
	"github.com/haccare/emr-service/internal/vitals"
	"github.com/redis/go-redis/v9"
)

// Options carries the process-level dependencies the handlers share.
// Publisher, Redis and Metrics are optional.
type Options struct {
	Verifier    *auth.Verifier
	Permissions auth.Permissions
	Policy      access.Authorizer
	Publisher   messaging.PublisherInterface
	Redis       *redis.Client
	Config      RouterConfig
	Metrics     *telemetry.Metrics
}

// Deps is everything SetupRouter mounts, plus the pieces the background
// alert scanner needs.
type Deps struct {
	Verifier    *auth.Verifier
	Permissions auth.Permissions
	Checker     *access.Checker
	Config      RouterConfig
	Metrics     Metrics

	Tenants     *tenant.Handler
	Users       *users.Handler
	Patients    *patient.Handler
	Medications *medication.Handler
	Vitals      *vitals.Handler
	Notes       *notes.Handler
	Alerts      *alerts.Handler
	Simulation  *simulation.Handler

	AlertService   *alerts.Service
	TenantRepo     *tenant.Repository
	MedicationRepo *medication.Repository
}

// Wire builds repositories, services and handlers on conn.
func Wire(conn *sql.DB, opts Options) *Deps {
	publisher := opts.Publisher
	if publisher == nil {
		publisher = messaging.NopPublisher{}
	}

	store := access.NewPostgresMembershipStore(conn)
	var memberships access.MembershipStore = store
	var invalidator users.MembershipInvalidator
	if opts.Redis != nil {
		cached := access.NewCachedMembershipStore(store, opts.Redis, opts.Config.MembershipCacheTTL)
		memberships = cached
		invalidator = cached
	}
	checker := access.NewChecker(memberships, store)

	tenantRepo := tenant.NewRepository(conn, publisher)
	tenantSvc := tenant.NewService(tenantRepo)
	if invalidator != nil {
		tenantSvc.WithInvalidator(invalidator)
	}

	userSvc := users.NewService(users.NewRepository(conn), opts.Policy, publisher, invalidator)
	patientSvc := patient.NewService(patient.NewRepository(conn), opts.Policy, publisher)
	medRepo := medication.NewRepository(conn)
	medSvc := medication.NewService(medRepo, opts.Policy, publisher)
	alertSvc := alerts.NewService(alerts.NewRepository(conn), opts.Policy, publisher)
	simSvc := simulation.NewService(simulation.NewRepository(conn), tenantRepo, opts.Policy, publisher)

	deps := &Deps{
		Verifier:    opts.Verifier,
		Permissions: opts.Permissions,
		Checker:     checker,
		Config:      opts.Config,

		Tenants:     tenant.NewHandler(tenantSvc),
		Patients:    patient.NewHandler(patientSvc),
		Medications: medication.NewHandler(medSvc),
		Vitals:      vitals.NewHandler(vitals.NewService(vitals.NewRepository(conn), opts.Policy, alertSvc)),
		Notes:       notes.NewHandler(notes.NewService(notes.NewRepository(conn), opts.Policy)),
		Alerts:      alerts.NewHandler(alertSvc),
		Simulation:  simulation.NewHandler(simSvc, checker),

		AlertService:   alertSvc,
		TenantRepo:     tenantRepo,
		MedicationRepo: medRepo,
	}

	if opts.Metrics != nil {
		tenantSvc.WithMetrics(opts.Metrics)
		userSvc.WithMetrics(opts.Metrics)
		patientSvc.WithMetrics(opts.Metrics)
		medSvc.WithMetrics(opts.Metrics)
		alertSvc.WithMetrics(opts.Metrics)
		simSvc.WithMetrics(opts.Metrics)
		deps.Metrics = opts.Metrics
	}
	deps.Users = users.NewHandler(userSvc)
	return deps
}
