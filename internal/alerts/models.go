package alerts

import "time"

const (
	TypeMedicationDue     = "medication_due"
	TypeMedicationOverdue = "medication_overdue"
	TypeVitalSigns        = "vital_signs"
	TypeSystem            = "system"
)

var validTypes = map[string]bool{
	TypeMedicationDue:     true,
	TypeMedicationOverdue: true,
	TypeVitalSigns:        true,
	TypeSystem:            true,
}

const (
	PriorityLow      = "low"
	PriorityMedium   = "medium"
	PriorityHigh     = "high"
	PriorityCritical = "critical"
)

var validPriorities = map[string]bool{
	PriorityLow:      true,
	PriorityMedium:   true,
	PriorityHigh:     true,
	PriorityCritical: true,
}

type Alert struct {
	ID             string     `json:"id"`
	TenantID       string     `json:"tenant_id"`
	PatientID      string     `json:"patient_id,omitempty"`
	PatientName    string     `json:"patient_name,omitempty"`
	Type           string     `json:"type"`
	SourceID       string     `json:"source_id,omitempty"`
	Message        string     `json:"message"`
	Priority       string     `json:"priority"`
	Acknowledged   bool       `json:"acknowledged"`
	AcknowledgedBy string     `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *time.Time `json:"acknowledged_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type AlertListResponse struct {
	Success bool    `json:"success"`
	Alerts  []Alert `json:"alerts"`
	Count   int     `json:"count"`
}

// ScanSummary reports one pass of the scanner over all tenants.
type ScanSummary struct {
	Tenants int           `json:"tenants"`
	Created int           `json:"created"`
	Failed  int           `json:"failed"`
	Retried int64         `json:"retried"`
	Elapsed time.Duration `json:"elapsed"`
}
