package vitals

import (
	"context"

	"github.com/haccare/emr-service/internal/db"
)

type RepositoryInterface interface {
	// Insert stores v and returns it with the patient's display name.
	Insert(ctx context.Context, sess db.Session, v *VitalSigns) (*VitalSigns, string, error)
	ListByPatient(ctx context.Context, sess db.Session, tenantID, patientID string, limit int) ([]VitalSigns, error)
	GetVitals(ctx context.Context, sess db.Session, tenantID, id string) (*VitalSigns, error)
	DeleteVitals(ctx context.Context, sess db.Session, tenantID, id string) error
}
