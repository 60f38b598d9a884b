package simulation

import (
	"context"
	"errors"
	"time"

	"github.com/haccare/emr-service/internal/access"
	"github.com/haccare/emr-service/internal/db"
	"github.com/haccare/emr-service/internal/messaging"
	"github.com/haccare/emr-service/internal/tenant"
	"github.com/rs/zerolog/log"
)

type ServiceInterface interface {
	CaptureBaseline(ctx context.Context, scope access.Scope, tenantID string) (*BaselineSummary, error)
	ResetRun(ctx context.Context, scope access.Scope, tenantID string) (*ResetSummary, error)
}

// TenantGetter is satisfied by tenant.Repository.
type TenantGetter interface {
	GetTenant(ctx context.Context, sess db.Session, id string) (*tenant.Tenant, error)
}

type MetricsRecorder interface {
	RecordSimulationReset(ctx context.Context, tenantID string)
}

type Service struct {
	repo      RepositoryInterface
	tenants   TenantGetter
	policy    access.Authorizer
	publisher messaging.PublisherInterface
	metrics   MetricsRecorder
	now       func() time.Time
}

var _ ServiceInterface = (*Service)(nil)

func NewService(repo RepositoryInterface, tenants TenantGetter, policy access.Authorizer, publisher messaging.PublisherInterface) *Service {
	return &Service{repo: repo, tenants: tenants, policy: policy, publisher: publisher, now: time.Now}
}

func (s *Service) WithMetrics(m MetricsRecorder) *Service {
	s.metrics = m
	return s
}

// authorize loads the tenant and applies the simulation policy for op.
func (s *Service) authorize(ctx context.Context, scope access.Scope, tenantID, op string) error {
	t, err := s.tenants.GetTenant(ctx, scope.Session(), tenantID)
	if errors.Is(err, tenant.ErrTenantNotFound) {
		return ErrTenantNotFound
	}
	if err != nil {
		return err
	}
	if !t.IsSimulation() {
		return ErrNotSimulation
	}
	row := map[string]any{"tenant_id": t.ID, "tenant_type": t.TenantType}
	if err := s.policy.Authorize("simulation", op, scope, row); err != nil {
		log.Warn().Str("tenant_id", tenantID).Str("user_id", scope.UserID).Str("op", op).Msg("simulation access denied")
		return ErrForbidden
	}
	return nil
}

func (s *Service) CaptureBaseline(ctx context.Context, scope access.Scope, tenantID string) (*BaselineSummary, error) {
	if err := s.authorize(ctx, scope, tenantID, "capture"); err != nil {
		return nil, err
	}

	at := s.now().UTC()
	n, err := s.repo.CaptureBaseline(ctx, scope.Session(), tenantID, at)
	if err != nil {
		return nil, err
	}
	log.Info().Str("tenant_id", tenantID).Int("medications", n).Msg("simulation baseline captured")
	return &BaselineSummary{TenantID: tenantID, Medications: n, CapturedAt: at}, nil
}

// ResetRun wipes the run's charting and starts the next run from the
// captured baseline.
func (s *Service) ResetRun(ctx context.Context, scope access.Scope, tenantID string) (*ResetSummary, error) {
	if err := s.authorize(ctx, scope, tenantID, "reset"); err != nil {
		return nil, err
	}

	summary, err := s.repo.ResetRun(ctx, scope.Session(), tenantID, s.now().UTC())
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.RecordSimulationReset(ctx, tenantID)
	}
	log.Info().
		Str("tenant_id", tenantID).
		Str("user_id", scope.UserID).
		Int("run_number", summary.RunNumber).
		Int("medications_restored", summary.MedicationsRestored).
		Msg("simulation run reset")

	if s.publisher != nil {
		event := messaging.SimulationRunResetEvent{
			BaseEvent: messaging.NewBaseEvent(messaging.EventSimulationRunReset, tenantID),
			Data: messaging.SimulationRunResetData{
				RunNumber:           summary.RunNumber,
				MedicationsRestored: summary.MedicationsRestored,
				ResetBy:             scope.UserID,
				ResetAt:             summary.ResetAt,
			},
		}
		if err := s.publisher.Publish(ctx, messaging.EventSimulationRunReset, event); err != nil {
			log.Warn().Err(err).Str("tenant_id", tenantID).Msg("failed to publish simulation.run_reset event")
		}
	}
	return summary, nil
}
