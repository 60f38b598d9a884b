package notes

import (
	"strings"
	"time"
)

const (
	PriorityLow    = "Low"
	PriorityMedium = "Medium"
	PriorityHigh   = "High"
)

var validPriorities = map[string]bool{PriorityLow: true, PriorityMedium: true, PriorityHigh: true}

var validTypes = map[string]bool{
	"General":     true,
	"Assessment":  true,
	"Medication":  true,
	"Vital Signs": true,
	"Incident":    true,
	"Handoff":     true,
}

type PatientNote struct {
	ID        string    `json:"id"`
	TenantID  string    `json:"tenant_id"`
	PatientID string    `json:"patient_id"`
	NurseID   string    `json:"nurse_id,omitempty"`
	NurseName string    `json:"nurse_name,omitempty"`
	Type      string    `json:"type"`
	Content   string    `json:"content"`
	Priority  string    `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// PolicyRow is what the patient_notes policies see.
func (n *PatientNote) PolicyRow() map[string]any {
	return map[string]any{"tenant_id": n.TenantID, "nurse_id": n.NurseID}
}

type CreateNoteRequest struct {
	Type     string `json:"type"`
	Content  string `json:"content"`
	Priority string `json:"priority"`
}

func (r *CreateNoteRequest) normalize() error {
	r.Type = strings.TrimSpace(r.Type)
	r.Content = strings.TrimSpace(r.Content)
	if r.Priority == "" {
		r.Priority = PriorityMedium
	}

	if r.Content == "" {
		return ErrContentRequired
	}
	if !validTypes[r.Type] {
		return ErrInvalidType
	}
	if !validPriorities[r.Priority] {
		return ErrInvalidPriority
	}
	return nil
}

type NoteListResponse struct {
	Success bool          `json:"success"`
	Notes   []PatientNote `json:"notes"`
	Count   int           `json:"count"`
}
