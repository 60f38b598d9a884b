package patient

import (
	"context"

	"github.com/haccare/emr-service/internal/access"
	"github.com/haccare/emr-service/internal/pagination"
)

// ServiceInterface defines the contract for patient business logic operations
type ServiceInterface interface {
	CreatePatient(ctx context.Context, scope access.Scope, req CreatePatientRequest) (*Patient, error)
	ListPatients(ctx context.Context, scope access.Scope, params pagination.Params, filter ListFilter) (*PaginatedPatientListResponse, error)
	GetPatient(ctx context.Context, scope access.Scope, id string) (*Patient, error)
	LookupByCode(ctx context.Context, scope access.Scope, code string) (*Patient, error)
	UpdatePatient(ctx context.Context, scope access.Scope, id string, req UpdatePatientRequest) (*Patient, error)
	DeletePatient(ctx context.Context, scope access.Scope, id string) error
	Label(ctx context.Context, scope access.Scope, id string) ([]byte, error)
}
