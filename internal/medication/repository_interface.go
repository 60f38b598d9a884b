package medication

import (
	"context"
	"time"

	"github.com/haccare/emr-service/internal/db"
)

// RepositoryInterface defines the contract for medication data access
type RepositoryInterface interface {
	CreateMedication(ctx context.Context, sess db.Session, m *Medication) (*Medication, error)
	ListByPatient(ctx context.Context, sess db.Session, tenantID, patientID, status string) ([]Medication, error)
	GetMedication(ctx context.Context, sess db.Session, tenantID, id string) (*Medication, error)
	UpdateMedication(ctx context.Context, sess db.Session, m *Medication) (*Medication, error)
	DeleteMedication(ctx context.Context, sess db.Session, tenantID, id string) error

	PatientRecordNumber(ctx context.Context, sess db.Session, tenantID, patientID string) (string, error)
	RecordAdministration(ctx context.Context, sess db.Session, a *Administration, nextDue *time.Time, status string) (*Administration, *Medication, error)
	ListAdministrations(ctx context.Context, sess db.Session, tenantID, medicationID string, limit int) ([]Administration, error)

	ListActiveByTenant(ctx context.Context, sess db.Session, tenantID string) ([]DueMedication, error)
}
