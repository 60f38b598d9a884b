package alerts

import (
	"context"
	"strings"
	"time"

	"github.com/haccare/emr-service/internal/access"
	"github.com/haccare/emr-service/internal/db"
	"github.com/haccare/emr-service/internal/messaging"
	"github.com/rs/zerolog/log"
)

type MetricsRecorder interface {
	RecordAlertCreated(ctx context.Context, alertType, priority string)
	RecordAlertScan(ctx context.Context, tenantID string, durationMs float64)
}

type Service struct {
	repo      RepositoryInterface
	policy    access.Authorizer
	publisher messaging.PublisherInterface
	metrics   MetricsRecorder
	now       func() time.Time
}

func NewService(repo RepositoryInterface, policy access.Authorizer, publisher messaging.PublisherInterface) *Service {
	return &Service{repo: repo, policy: policy, publisher: publisher, now: time.Now}
}

func (s *Service) WithMetrics(m MetricsRecorder) *Service {
	s.metrics = m
	return s
}

// SystemScope is the identity background jobs use to raise alerts in a tenant.
func SystemScope(tenantID string) access.Scope {
	return access.Scope{TenantID: tenantID, SuperAdmin: true}
}

// Create stores a new alert. It returns (nil, false, nil) when the source
// already raised one, even if that alert has since been acknowledged.
func (s *Service) Create(ctx context.Context, scope access.Scope, a Alert) (*Alert, bool, error) {
	a.TenantID = strings.TrimSpace(a.TenantID)
	if a.TenantID == "" {
		return nil, false, ErrMissingTenant
	}
	if !validTypes[a.Type] {
		return nil, false, ErrInvalidType
	}
	if !validPriorities[a.Priority] {
		return nil, false, ErrInvalidPriority
	}
	if strings.TrimSpace(a.Message) == "" {
		return nil, false, ErrMessageRequired
	}
	if err := s.policy.Authorize("alerts", "insert", scope, map[string]any{"tenant_id": a.TenantID}); err != nil {
		return nil, false, ErrForbidden
	}

	saved, created, err := s.repo.Insert(ctx, sessionFor(scope, a.TenantID), &a)
	if err != nil || !created {
		return nil, false, err
	}

	if s.metrics != nil {
		s.metrics.RecordAlertCreated(ctx, saved.Type, saved.Priority)
	}
	log.Info().
		Str("alert_id", saved.ID).
		Str("tenant_id", saved.TenantID).
		Str("type", saved.Type).
		Str("priority", saved.Priority).
		Msg("alert created")

	s.publish(ctx, messaging.EventAlertCreated, saved, "")
	return saved, true, nil
}

// sessionFor narrows a super-admin session to the alert's tenant so RLS
// sees the same tenant the policy checked.
func sessionFor(scope access.Scope, tenantID string) db.Session {
	sess := scope.Session()
	if sess.TenantID == "" {
		sess.TenantID = tenantID
	}
	return sess
}

func (s *Service) ListActive(ctx context.Context, scope access.Scope, patientID string) ([]Alert, error) {
	out, err := s.repo.ListActive(ctx, scope.Session(), scope.TenantID, patientID, s.now())
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Alert{}
	}
	return out, nil
}

func (s *Service) Acknowledge(ctx context.Context, scope access.Scope, id string) (*Alert, error) {
	current, err := s.repo.GetAlert(ctx, scope.Session(), scope.TenantID, id)
	if err != nil {
		return nil, err
	}
	if current.Acknowledged {
		return nil, ErrAlreadyAcknowledged
	}
	if err := s.policy.Authorize("alerts", "acknowledge", scope, map[string]any{"tenant_id": current.TenantID}); err != nil {
		return nil, ErrForbidden
	}

	a, err := s.repo.Acknowledge(ctx, scope.Session(), scope.TenantID, id, scope.UserID)
	if err != nil {
		return nil, err
	}
	log.Info().Str("alert_id", id).Str("user_id", scope.UserID).Msg("alert acknowledged")

	s.publish(ctx, messaging.EventAlertAcknowledged, a, scope.UserID)
	return a, nil
}

// Purge removes acknowledged and expired alerts older than retention.
func (s *Service) Purge(ctx context.Context, retention time.Duration) (int64, error) {
	return s.repo.DeleteAcknowledgedBefore(ctx, db.Session{SuperAdmin: true}, s.now().Add(-retention))
}

func (s *Service) publish(ctx context.Context, eventType string, a *Alert, actorID string) {
	if s.publisher == nil {
		return
	}
	event := messaging.AlertEvent{
		BaseEvent: messaging.NewBaseEvent(eventType, a.TenantID),
		Data: messaging.AlertEventData{
			AlertID:   a.ID,
			PatientID: a.PatientID,
			Type:      a.Type,
			Priority:  a.Priority,
			Message:   a.Message,
			ActorID:   actorID,
			At:        s.now().UTC(),
		},
	}
	if err := s.publisher.Publish(ctx, eventType, event); err != nil {
		log.Warn().Err(err).Str("alert_id", a.ID).Msgf("failed to publish %s event", eventType)
	}
}
