package medication

import (
	"context"

	"github.com/haccare/emr-service/internal/access"
)

// ServiceInterface defines the contract for medication business logic operations
type ServiceInterface interface {
	CreateMedication(ctx context.Context, scope access.Scope, patientID string, req CreateMedicationRequest) (*Medication, error)
	ListMedications(ctx context.Context, scope access.Scope, patientID, status string) ([]Medication, error)
	GetMedication(ctx context.Context, scope access.Scope, id string) (*Medication, error)
	UpdateMedication(ctx context.Context, scope access.Scope, id string, req UpdateMedicationRequest) (*Medication, error)
	DeleteMedication(ctx context.Context, scope access.Scope, id string) error

	DueList(ctx context.Context, scope access.Scope, patientID string) (*DueListResponse, error)
	Administer(ctx context.Context, scope access.Scope, medicationID string, req AdministerRequest) (*AdministerResult, error)
	ListAdministrations(ctx context.Context, scope access.Scope, medicationID string) ([]Administration, error)
	Label(ctx context.Context, scope access.Scope, id string) ([]byte, error)
}
