package patient

import (
	"context"

	"github.com/haccare/emr-service/internal/db"
)

// RepositoryInterface defines the contract for patient data access. Every
// lookup is confined to tenantID.
type RepositoryInterface interface {
	CreatePatient(ctx context.Context, sess db.Session, tenantID string, req CreatePatientRequest) (*Patient, error)
	ListPatients(ctx context.Context, sess db.Session, tenantID string, limit, offset int, filter ListFilter) ([]Patient, int, error)
	GetPatient(ctx context.Context, sess db.Session, tenantID, id string) (*Patient, error)
	GetByRecordNumber(ctx context.Context, sess db.Session, tenantID, recordNumber string) (*Patient, error)
	UpdatePatient(ctx context.Context, sess db.Session, tenantID, id string, req UpdatePatientRequest) (*Patient, error)
	DeletePatient(ctx context.Context, sess db.Session, tenantID, id string) (*Patient, error)
}

var _ RepositoryInterface = (*Repository)(nil)
