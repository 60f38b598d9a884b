package vitals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/haccare/emr-service/internal/access"
	"github.com/haccare/emr-service/internal/alerts"
	"github.com/rs/zerolog/log"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	// LatestLimit is the size of the chart's "latest readings" view.
	LatestLimit = 5
)

type ServiceInterface interface {
	Record(ctx context.Context, scope access.Scope, patientID string, req RecordVitalsRequest) (*RecordResult, error)
	List(ctx context.Context, scope access.Scope, patientID string, limit int) ([]VitalSigns, error)
	Delete(ctx context.Context, scope access.Scope, id string) error
}

// AlertRaiser is the part of the alerts service vitals needs.
type AlertRaiser interface {
	Create(ctx context.Context, scope access.Scope, a alerts.Alert) (*alerts.Alert, bool, error)
}

type Service struct {
	repo   RepositoryInterface
	policy access.Authorizer
	alerts AlertRaiser
	now    func() time.Time
}

var _ ServiceInterface = (*Service)(nil)

func NewService(repo RepositoryInterface, policy access.Authorizer, raiser AlertRaiser) *Service {
	return &Service{repo: repo, policy: policy, alerts: raiser, now: time.Now}
}

func (s *Service) Record(ctx context.Context, scope access.Scope, patientID string, req RecordVitalsRequest) (*RecordResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.policy.Authorize("vital_signs", "insert", scope, map[string]any{"tenant_id": scope.TenantID}); err != nil {
		return nil, ErrForbidden
	}

	recordedAt := s.now()
	if req.RecordedAt != nil && !req.RecordedAt.After(recordedAt) {
		recordedAt = *req.RecordedAt
	}

	v := &VitalSigns{
		TenantID:         scope.TenantID,
		PatientID:        patientID,
		Temperature:      req.Temperature,
		Systolic:         req.Systolic,
		Diastolic:        req.Diastolic,
		HeartRate:        req.HeartRate,
		RespiratoryRate:  req.RespiratoryRate,
		OxygenSaturation: req.OxygenSaturation,
		RecordedAt:       recordedAt,
		RecordedBy:       scope.UserID,
	}
	saved, patientName, err := s.repo.Insert(ctx, scope.Session(), v)
	if err != nil {
		return nil, err
	}

	result := &RecordResult{Vitals: saved, Findings: Evaluate(*saved)}
	if result.Findings == nil {
		result.Findings = []Finding{}
	}
	log.Info().
		Str("vitals_id", saved.ID).
		Str("patient_id", saved.PatientID).
		Int("findings", len(result.Findings)).
		Msg("vital signs recorded")

	if len(result.Findings) > 0 {
		result.AlertID = s.raise(ctx, saved, patientName, result.Findings)
	}
	return result, nil
}

// raise files one alert per abnormal reading. A failure is logged and the
// reading stays recorded.
func (s *Service) raise(ctx context.Context, v *VitalSigns, patientName string, findings []Finding) string {
	if s.alerts == nil {
		return ""
	}

	priority := alerts.PriorityHigh
	if worst(findings) == SeverityCritical {
		priority = alerts.PriorityCritical
	}
	parts := make([]string, len(findings))
	for i, f := range findings {
		parts[i] = f.Message
	}

	a, _, err := s.alerts.Create(ctx, alerts.SystemScope(v.TenantID), alerts.Alert{
		TenantID:    v.TenantID,
		PatientID:   v.PatientID,
		PatientName: patientName,
		Type:        alerts.TypeVitalSigns,
		SourceID:    v.ID,
		Priority:    priority,
		Message:     fmt.Sprintf("Abnormal vital signs for %s: %s", patientName, strings.Join(parts, ", ")),
	})
	if err != nil {
		log.Warn().Err(err).Str("vitals_id", v.ID).Msg("failed to raise vital signs alert")
		return ""
	}
	if a == nil {
		return ""
	}
	return a.ID
}

// List returns readings newest first. A non-positive limit means the default.
func (s *Service) List(ctx context.Context, scope access.Scope, patientID string, limit int) ([]VitalSigns, error) {
	switch {
	case limit <= 0:
		limit = defaultListLimit
	case limit > maxListLimit:
		limit = maxListLimit
	}
	out, err := s.repo.ListByPatient(ctx, scope.Session(), scope.TenantID, patientID, limit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []VitalSigns{}
	}
	return out, nil
}

func (s *Service) Delete(ctx context.Context, scope access.Scope, id string) error {
	v, err := s.repo.GetVitals(ctx, scope.Session(), scope.TenantID, id)
	if err != nil {
		return err
	}
	if err := s.policy.Authorize("vital_signs", "delete", scope, map[string]any{"tenant_id": v.TenantID}); err != nil {
		return ErrForbidden
	}
	if err := s.repo.DeleteVitals(ctx, scope.Session(), scope.TenantID, id); err != nil {
		return err
	}
	log.Info().Str("vitals_id", id).Str("user_id", scope.UserID).Msg("vital signs deleted")
	return nil
}
