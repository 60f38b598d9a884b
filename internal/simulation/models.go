package simulation

import "time"

// ResetSummary reports what a reset removed and restored.
type ResetSummary struct {
	TenantID               string    `json:"tenant_id"`
	RunNumber              int       `json:"run_number"`
	MedicationsRestored    int       `json:"medications_restored"`
	AlertsCleared          int       `json:"alerts_cleared"`
	NotesCleared           int       `json:"notes_cleared"`
	VitalsCleared          int       `json:"vitals_cleared"`
	AdministrationsCleared int       `json:"administrations_cleared"`
	ResetAt                time.Time `json:"reset_at"`
}

type BaselineSummary struct {
	TenantID    string    `json:"tenant_id"`
	Medications int       `json:"medications"`
	CapturedAt  time.Time `json:"captured_at"`
}

// TenantRequest is the body of the simulation RPCs.
type TenantRequest struct {
	TenantID string `json:"tenant_id"`
}
