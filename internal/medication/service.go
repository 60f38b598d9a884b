package medication

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/haccare/emr-service/internal/access"
	"github.com/haccare/emr-service/internal/auth"
	"github.com/haccare/emr-service/internal/messaging"
	"github.com/haccare/emr-service/internal/patient"
	"github.com/rs/zerolog/log"
)

// historyLimit caps the administration history returned per medication.
const historyLimit = 100

// Administration outcomes reported to metrics.
const (
	OutcomeSuccess            = "recorded"
	OutcomePatientMismatch    = "patient_mismatch"
	OutcomeMedicationMismatch = "medication_mismatch"
	OutcomeWrongPatient       = "wrong_patient"
	OutcomeInactive           = "inactive"
)

type MetricsRecorder interface {
	RecordAdministration(ctx context.Context, tenantID, outcome string)
}

type Service struct {
	repo      RepositoryInterface
	policy    access.Authorizer
	publisher messaging.PublisherInterface
	metrics   MetricsRecorder
	now       func() time.Time
}

var _ ServiceInterface = (*Service)(nil)

func NewService(repo RepositoryInterface, policy access.Authorizer, publisher messaging.PublisherInterface) *Service {
	return &Service{repo: repo, policy: policy, publisher: publisher, now: time.Now}
}

func (s *Service) WithMetrics(m MetricsRecorder) *Service {
	s.metrics = m
	return s
}

func (s *Service) authorize(op string, scope access.Scope, m *Medication) error {
	if err := s.policy.Authorize("medications", op, scope, m.PolicyRow()); err != nil {
		return ErrForbidden
	}
	return nil
}

// GenerateBarcode returns a fresh medication barcode value.
func GenerateBarcode() string {
	return "MED-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}

func (s *Service) CreateMedication(ctx context.Context, scope access.Scope, patientID string, req CreateMedicationRequest) (*Medication, error) {
	m := req.toMedication(scope.TenantID, patientID)
	if err := m.validate(); err != nil {
		return nil, err
	}
	if m.Barcode == "" {
		m.Barcode = GenerateBarcode()
	}
	if err := s.authorize("insert", scope, m); err != nil {
		return nil, err
	}

	created, err := s.repo.CreateMedication(ctx, scope.Session(), m)
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("medication_id", created.ID).
		Str("patient_id", created.PatientID).
		Str("tenant_id", created.TenantID).
		Str("category", created.Category).
		Msg("medication created")
	return created, nil
}

func (s *Service) ListMedications(ctx context.Context, scope access.Scope, patientID, status string) ([]Medication, error) {
	if status != "" && !validStatuses[status] {
		return nil, ErrInvalidStatus
	}
	meds, err := s.repo.ListByPatient(ctx, scope.Session(), scope.TenantID, patientID, status)
	if err != nil {
		return nil, err
	}
	if meds == nil {
		meds = []Medication{}
	}
	return meds, nil
}

func (s *Service) GetMedication(ctx context.Context, scope access.Scope, id string) (*Medication, error) {
	return s.repo.GetMedication(ctx, scope.Session(), scope.TenantID, id)
}

func (s *Service) UpdateMedication(ctx context.Context, scope access.Scope, id string, req UpdateMedicationRequest) (*Medication, error) {
	if req.empty() {
		return nil, ErrNoFieldsToUpdate
	}

	current, err := s.repo.GetMedication(ctx, scope.Session(), scope.TenantID, id)
	if err != nil {
		return nil, err
	}

	m := req.apply(*current)
	if err := m.validate(); err != nil {
		return nil, err
	}
	if err := s.authorize("update", scope, m); err != nil {
		return nil, err
	}

	updated, err := s.repo.UpdateMedication(ctx, scope.Session(), m)
	if err != nil {
		return nil, err
	}
	log.Info().Str("medication_id", id).Str("status", updated.Status).Msg("medication updated")
	return updated, nil
}

func (s *Service) DeleteMedication(ctx context.Context, scope access.Scope, id string) error {
	m, err := s.repo.GetMedication(ctx, scope.Session(), scope.TenantID, id)
	if err != nil {
		return err
	}
	if err := s.authorize("delete", scope, m); err != nil {
		return err
	}
	if err := s.repo.DeleteMedication(ctx, scope.Session(), scope.TenantID, id); err != nil {
		return err
	}
	log.Info().Str("medication_id", id).Str("tenant_id", scope.TenantID).Msg("medication deleted")
	return nil
}

// DueList classifies the patient's active medications as of now.
func (s *Service) DueList(ctx context.Context, scope access.Scope, patientID string) (*DueListResponse, error) {
	meds, err := s.repo.ListByPatient(ctx, scope.Session(), scope.TenantID, patientID, StatusActive)
	if err != nil {
		return nil, err
	}

	now := s.now()
	c := Classify(meds, now)
	return &DueListResponse{
		Success: true,
		Due:     nonNil(c.DueSoon),
		Overdue: nonNil(c.Overdue),
		PRN:     nonNil(c.PRN),
		AsOf:    now.UTC(),
	}, nil
}

func nonNil(meds []Medication) []Medication {
	if meds == nil {
		return []Medication{}
	}
	return meds
}

// Administer records a barcode-verified dose. The wristband must match the
// patient, the scanned package must match the order, and the order must be
// active and belong to that patient.
func (s *Service) Administer(ctx context.Context, scope access.Scope, medicationID string, req AdministerRequest) (*AdministerResult, error) {
	m, err := s.repo.GetMedication(ctx, scope.Session(), scope.TenantID, medicationID)
	if err != nil {
		return nil, err
	}
	recordNumber, err := s.repo.PatientRecordNumber(ctx, scope.Session(), scope.TenantID, req.PatientID)
	if err != nil {
		return nil, err
	}

	if scanned, err := patient.NormalizeRecordNumber(req.PatientBarcode); err != nil || scanned != recordNumber {
		return nil, s.rejectAdministration(ctx, scope, m, OutcomePatientMismatch, ErrPatientBarcodeMismatch)
	}
	if !strings.EqualFold(strings.TrimSpace(req.MedicationBarcode), m.Barcode) {
		return nil, s.rejectAdministration(ctx, scope, m, OutcomeMedicationMismatch, ErrMedicationBarcodeMismatch)
	}
	if m.Status != StatusActive {
		return nil, s.rejectAdministration(ctx, scope, m, OutcomeInactive, ErrMedicationInactive)
	}
	if m.PatientID != req.PatientID {
		return nil, s.rejectAdministration(ctx, scope, m, OutcomeWrongPatient, ErrWrongPatient)
	}
	if err := s.authorize("administer", scope, m); err != nil {
		return nil, err
	}

	at := s.now().UTC()
	if req.AdministeredAt != nil && !req.AdministeredAt.After(at) {
		at = req.AdministeredAt.UTC()
	}
	nextDue, status := advance(*m, at)

	admin := &Administration{
		TenantID:           m.TenantID,
		MedicationID:       m.ID,
		PatientID:          m.PatientID,
		AdministeredBy:     scope.UserID,
		AdministeredByName: principalName(ctx),
		AdministeredAt:     at,
		Dose:               strings.TrimSpace(req.Dose),
		Notes:              strings.TrimSpace(req.Notes),
	}
	saved, updated, err := s.repo.RecordAdministration(ctx, scope.Session(), admin, nextDue, status)
	if err != nil {
		if errors.Is(err, ErrMedicationInactive) {
			s.recordOutcome(ctx, scope.TenantID, OutcomeInactive)
		}
		return nil, err
	}
	s.recordOutcome(ctx, scope.TenantID, OutcomeSuccess)

	log.Info().
		Str("medication_id", m.ID).
		Str("patient_id", m.PatientID).
		Str("administered_by", scope.UserID).
		Str("status", updated.Status).
		Msg("medication administered")

	s.publishAdministered(ctx, saved, updated)
	return &AdministerResult{Administration: saved, Medication: updated}, nil
}

func principalName(ctx context.Context) string {
	p, _ := auth.FromContext(ctx)
	return p.DisplayName()
}

func (s *Service) rejectAdministration(ctx context.Context, scope access.Scope, m *Medication, outcome string, err error) error {
	s.recordOutcome(ctx, scope.TenantID, outcome)
	log.Warn().
		Str("medication_id", m.ID).
		Str("user_id", scope.UserID).
		Str("outcome", outcome).
		Msg("administration rejected")
	return err
}

func (s *Service) recordOutcome(ctx context.Context, tenantID, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordAdministration(ctx, tenantID, outcome)
	}
}

func (s *Service) publishAdministered(ctx context.Context, a *Administration, m *Medication) {
	if s.publisher == nil {
		return
	}
	event := messaging.MedicationAdministeredEvent{
		BaseEvent: messaging.NewBaseEvent(messaging.EventMedicationAdministered, a.TenantID),
		Data: messaging.MedicationAdministeredData{
			AdministrationID: a.ID,
			MedicationID:     a.MedicationID,
			PatientID:        a.PatientID,
			AdministeredBy:   a.AdministeredBy,
			AdministeredAt:   a.AdministeredAt,
			NextDue:          m.NextDue,
			Status:           m.Status,
		},
	}
	if err := s.publisher.Publish(ctx, messaging.EventMedicationAdministered, event); err != nil {
		log.Warn().Err(err).Str("medication_id", a.MedicationID).Msg("failed to publish medication.administered event")
	}
}

func (s *Service) ListAdministrations(ctx context.Context, scope access.Scope, medicationID string) ([]Administration, error) {
	if _, err := s.repo.GetMedication(ctx, scope.Session(), scope.TenantID, medicationID); err != nil {
		return nil, err
	}
	out, err := s.repo.ListAdministrations(ctx, scope.Session(), scope.TenantID, medicationID, historyLimit)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []Administration{}
	}
	return out, nil
}

// Label renders the medication barcode as PNG for printing.
func (s *Service) Label(ctx context.Context, scope access.Scope, id string) ([]byte, error) {
	m, err := s.repo.GetMedication(ctx, scope.Session(), scope.TenantID, id)
	if err != nil {
		return nil, err
	}
	return patient.RenderLabel(m.Barcode, patient.LabelWidth, patient.LabelHeight)
}
