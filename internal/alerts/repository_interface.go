package alerts

import (
	"context"
	"time"

	"github.com/haccare/emr-service/internal/db"
)

// RepositoryInterface defines the contract for alert data access
type RepositoryInterface interface {
	// Insert stores a unless an alert with the same tenant, type and source
	// exists, acknowledged or not; created reports which happened.
	Insert(ctx context.Context, sess db.Session, a *Alert) (saved *Alert, created bool, err error)
	ListActive(ctx context.Context, sess db.Session, tenantID, patientID string, now time.Time) ([]Alert, error)
	GetAlert(ctx context.Context, sess db.Session, tenantID, id string) (*Alert, error)
	Acknowledge(ctx context.Context, sess db.Session, tenantID, id, userID string) (*Alert, error)
	DeleteAcknowledgedBefore(ctx context.Context, sess db.Session, before time.Time) (int64, error)
}
