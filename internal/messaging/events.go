package messaging

import (
	"time"

	"github.com/google/uuid"
)

// Event routing keys as constants
const (
	// Patient events
	EventPatientCreated = "patient.created"
	EventPatientUpdated = "patient.updated"
	EventPatientDeleted = "patient.deleted"

	// Clinical events
	EventMedicationAdministered = "medication.administered"
	EventAlertCreated           = "alert.created"
	EventAlertAcknowledged      = "alert.acknowledged"

	// Tenant events
	EventTenantDeleted        = "tenant.deleted"
	EventUserAssignedToTenant = "user.assigned_to_tenant"
	EventSimulationRunReset   = "simulation.run_reset"
)

const ServiceName = "emr-service"

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventType   string    `json:"event_type"`
	EventID     string    `json:"event_id"`
	Timestamp   time.Time `json:"timestamp"`
	ServiceName string    `json:"service_name"`
	TenantID    string    `json:"tenant_id"`
}

type PatientEvent struct {
	BaseEvent
	Data PatientEventData `json:"data"`
}

type PatientEventData struct {
	PatientID    string    `json:"patient_id"`
	RecordNumber string    `json:"record_number"`
	FirstName    string    `json:"first_name,omitempty"`
	LastName     string    `json:"last_name,omitempty"`
	Condition    string    `json:"condition,omitempty"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// MedicationAdministeredEvent is published after a successful barcode-verified administration.
type MedicationAdministeredEvent struct {
	BaseEvent
	Data MedicationAdministeredData `json:"data"`
}

type MedicationAdministeredData struct {
	AdministrationID string     `json:"administration_id"`
	MedicationID     string     `json:"medication_id"`
	PatientID        string     `json:"patient_id"`
	AdministeredBy   string     `json:"administered_by"`
	AdministeredAt   time.Time  `json:"administered_at"`
	NextDue          *time.Time `json:"next_due,omitempty"`
	Status           string     `json:"status"`
}

type AlertEvent struct {
	BaseEvent
	Data AlertEventData `json:"data"`
}

type AlertEventData struct {
	AlertID   string    `json:"alert_id"`
	PatientID string    `json:"patient_id,omitempty"`
	Type      string    `json:"type"`
	Priority  string    `json:"priority"`
	Message   string    `json:"message,omitempty"`
	ActorID   string    `json:"actor_id,omitempty"`
	At        time.Time `json:"at"`
}

// TenantDeletedEvent represents a tenant soft deletion
type TenantDeletedEvent struct {
	BaseEvent
	Data TenantDeletedData `json:"data"`
}

type TenantDeletedData struct {
	TenantName string    `json:"tenant_name"`
	Subdomain  string    `json:"subdomain"`
	DeletedAt  time.Time `json:"deleted_at"`
}

type UserAssignedEvent struct {
	BaseEvent
	Data UserAssignedData `json:"data"`
}

type UserAssignedData struct {
	UserID     string    `json:"user_id"`
	Role       string    `json:"role"`
	AssignedBy string    `json:"assigned_by"`
	AssignedAt time.Time `json:"assigned_at"`
}

// SimulationRunResetEvent marks the start of a new simulation run.
type SimulationRunResetEvent struct {
	BaseEvent
	Data SimulationRunResetData `json:"data"`
}

type SimulationRunResetData struct {
	RunNumber           int       `json:"run_number"`
	MedicationsRestored int       `json:"medications_restored"`
	ResetBy             string    `json:"reset_by"`
	ResetAt             time.Time `json:"reset_at"`
}

// NewBaseEvent creates a base event with common fields
func NewBaseEvent(eventType, tenantID string) BaseEvent {
	return BaseEvent{
		EventType:   eventType,
		EventID:     uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		ServiceName: ServiceName,
		TenantID:    tenantID,
	}
}
