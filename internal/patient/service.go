package patient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/haccare/emr-service/internal/access"
	"github.com/haccare/emr-service/internal/messaging"
	"github.com/haccare/emr-service/internal/pagination"
	"github.com/rs/zerolog/log"
)

// createAttempts bounds retries when two creates race for a record number.
const createAttempts = 3

type MetricsRecorder interface {
	RecordPatientOperation(ctx context.Context, operation string)
}

type Service struct {
	repo      RepositoryInterface
	policy    access.Authorizer
	publisher messaging.PublisherInterface
	metrics   MetricsRecorder
}

var _ ServiceInterface = (*Service)(nil)

func NewService(repo RepositoryInterface, policy access.Authorizer, publisher messaging.PublisherInterface) *Service {
	return &Service{repo: repo, policy: policy, publisher: publisher}
}

func (s *Service) WithMetrics(m MetricsRecorder) *Service {
	s.metrics = m
	return s
}

func (s *Service) authorize(op string, scope access.Scope, tenantID string) error {
	if err := s.policy.Authorize("patients", op, scope, map[string]any{"tenant_id": tenantID}); err != nil {
		return ErrForbidden
	}
	return nil
}

func (s *Service) CreatePatient(ctx context.Context, scope access.Scope, req CreatePatientRequest) (*Patient, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.authorize("insert", scope, scope.TenantID); err != nil {
		return nil, err
	}

	var p *Patient
	var err error
	for attempt := 1; attempt <= createAttempts; attempt++ {
		p, err = s.repo.CreatePatient(ctx, scope.Session(), scope.TenantID, req)
		if !errors.Is(err, ErrRecordNumberTaken) {
			break
		}
		log.Warn().Int("attempt", attempt).Str("tenant_id", scope.TenantID).Msg("record number collision, retrying")
	}
	if err != nil {
		return nil, err
	}

	s.afterWrite(ctx, "create", messaging.EventPatientCreated, p)
	return p, nil
}

func (s *Service) ListPatients(ctx context.Context, scope access.Scope, params pagination.Params, filter ListFilter) (*PaginatedPatientListResponse, error) {
	params.Validate()
	if params.Search != "" {
		filter.Search = params.Search
	}
	if filter.Condition != "" && !validConditions[filter.Condition] {
		return nil, ErrInvalidCondition
	}

	patients, total, err := s.repo.ListPatients(ctx, scope.Session(), scope.TenantID, params.Limit, params.CalculateOffset(), filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	if patients == nil {
		patients = []Patient{}
	}

	return &PaginatedPatientListResponse{
		Success:    true,
		Patients:   patients,
		Pagination: params.CalculateMeta(total),
	}, nil
}

func (s *Service) GetPatient(ctx context.Context, scope access.Scope, id string) (*Patient, error) {
	return s.repo.GetPatient(ctx, scope.Session(), scope.TenantID, id)
}

// LookupByCode resolves a scanned wristband code to a patient.
func (s *Service) LookupByCode(ctx context.Context, scope access.Scope, code string) (*Patient, error) {
	recordNumber, err := NormalizeRecordNumber(code)
	if err != nil {
		return nil, err
	}
	return s.repo.GetByRecordNumber(ctx, scope.Session(), scope.TenantID, recordNumber)
}

func (s *Service) UpdatePatient(ctx context.Context, scope access.Scope, id string, req UpdatePatientRequest) (*Patient, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := s.authorize("update", scope, scope.TenantID); err != nil {
		return nil, err
	}

	p, err := s.repo.UpdatePatient(ctx, scope.Session(), scope.TenantID, id, req)
	if err != nil {
		return nil, err
	}
	s.afterWrite(ctx, "update", messaging.EventPatientUpdated, p)
	return p, nil
}

func (s *Service) DeletePatient(ctx context.Context, scope access.Scope, id string) error {
	if err := s.authorize("delete", scope, scope.TenantID); err != nil {
		return err
	}

	p, err := s.repo.DeletePatient(ctx, scope.Session(), scope.TenantID, id)
	if err != nil {
		return err
	}
	s.afterWrite(ctx, "delete", messaging.EventPatientDeleted, p)
	return nil
}

// Label renders the patient's wristband barcode as PNG.
func (s *Service) Label(ctx context.Context, scope access.Scope, id string) ([]byte, error) {
	p, err := s.repo.GetPatient(ctx, scope.Session(), scope.TenantID, id)
	if err != nil {
		return nil, err
	}
	return RenderLabel(p.RecordNumber, LabelWidth, LabelHeight)
}

func (s *Service) afterWrite(ctx context.Context, op, eventType string, p *Patient) {
	if s.metrics != nil {
		s.metrics.RecordPatientOperation(ctx, op)
	}
	log.Info().
		Str("patient_id", p.ID).
		Str("tenant_id", p.TenantID).
		Str("record_number", p.RecordNumber).
		Msgf("patient %s", op)

	if s.publisher == nil {
		return
	}
	event := messaging.PatientEvent{
		BaseEvent: messaging.NewBaseEvent(eventType, p.TenantID),
		Data: messaging.PatientEventData{
			PatientID:    p.ID,
			RecordNumber: p.RecordNumber,
			FirstName:    p.FirstName,
			LastName:     p.LastName,
			Condition:    p.Condition,
			OccurredAt:   time.Now().UTC(),
		},
	}
	if err := s.publisher.Publish(ctx, eventType, event); err != nil {
		log.Warn().Err(err).Str("patient_id", p.ID).Msgf("failed to publish %s event", eventType)
	}
}
