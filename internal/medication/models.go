package medication

import (
	"strings"
	"time"
)

const (
	CategoryScheduled  = "scheduled"
	CategoryPRN        = "prn"
	CategoryContinuous = "continuous"
)

var validCategories = map[string]bool{
	CategoryScheduled:  true,
	CategoryPRN:        true,
	CategoryContinuous: true,
}

const (
	StatusActive       = "active"
	StatusDiscontinued = "discontinued"
	StatusCompleted    = "completed"
)

var validStatuses = map[string]bool{
	StatusActive:       true,
	StatusDiscontinued: true,
	StatusCompleted:    true,
}

const dateLayout = "2006-01-02"

type Medication struct {
	ID                 string     `json:"id"`
	TenantID           string     `json:"tenant_id"`
	PatientID          string     `json:"patient_id"`
	Name               string     `json:"name"`
	Dosage             string     `json:"dosage"`
	Route              string     `json:"route"`
	Frequency          string     `json:"frequency"`
	Category           string     `json:"category"`
	Status             string     `json:"status"`
	Rate               string     `json:"rate,omitempty"`
	StartDate          *string    `json:"start_date,omitempty"`
	EndDate            *string    `json:"end_date,omitempty"`
	NextDue            *time.Time `json:"next_due,omitempty"`
	LastAdministeredAt *time.Time `json:"last_administered_at,omitempty"`
	PrescribedBy       string     `json:"prescribed_by,omitempty"`
	Barcode            string     `json:"barcode"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          *time.Time `json:"updated_at,omitempty"`
}

// PolicyRow is the view of m the write policies evaluate.
func (m *Medication) PolicyRow() map[string]any {
	row := map[string]any{
		"tenant_id": m.TenantID,
		"category":  m.Category,
		"status":    m.Status,
	}
	if m.NextDue != nil {
		row["next_due"] = m.NextDue.UTC().Format(time.RFC3339)
	}
	return row
}

// validate checks the invariants every stored medication satisfies.
func (m *Medication) validate() error {
	if m.Name == "" {
		return ErrNameRequired
	}
	if m.Dosage == "" {
		return ErrDosageRequired
	}
	if m.Route == "" {
		return ErrRouteRequired
	}
	if !validCategories[m.Category] {
		return ErrInvalidCategory
	}
	if !validStatuses[m.Status] {
		return ErrInvalidStatus
	}
	if m.Frequency == "" {
		return ErrInvalidFrequency
	}
	switch m.Category {
	case CategoryPRN:
		if m.NextDue != nil {
			return ErrPRNNextDue
		}
	case CategoryScheduled:
		if _, err := ParseFrequency(m.Frequency); err != nil {
			return err
		}
	}
	for _, d := range []*string{m.StartDate, m.EndDate} {
		if d == nil {
			continue
		}
		if _, err := time.Parse(dateLayout, *d); err != nil {
			return ErrInvalidDate
		}
	}
	return nil
}

// DueMedication is an active medication together with its patient, as the
// alert scanner sees it.
type DueMedication struct {
	Medication
	PatientName string `json:"patient_name"`
}

type CreateMedicationRequest struct {
	Name         string     `json:"name"`
	Dosage       string     `json:"dosage"`
	Route        string     `json:"route"`
	Frequency    string     `json:"frequency"`
	Category     string     `json:"category"`
	Rate         string     `json:"rate"`
	StartDate    *string    `json:"start_date"`
	EndDate      *string    `json:"end_date"`
	NextDue      *time.Time `json:"next_due"`
	PrescribedBy string     `json:"prescribed_by"`
	Barcode      string     `json:"barcode"`
}

// toMedication builds the medication to insert. Missing categories default
// to scheduled.
func (r CreateMedicationRequest) toMedication(tenantID, patientID string) *Medication {
	m := &Medication{
		TenantID:     tenantID,
		PatientID:    patientID,
		Name:         strings.TrimSpace(r.Name),
		Dosage:       strings.TrimSpace(r.Dosage),
		Route:        strings.TrimSpace(r.Route),
		Frequency:    strings.TrimSpace(r.Frequency),
		Category:     strings.ToLower(strings.TrimSpace(r.Category)),
		Status:       StatusActive,
		Rate:         strings.TrimSpace(r.Rate),
		StartDate:    r.StartDate,
		EndDate:      r.EndDate,
		NextDue:      r.NextDue,
		PrescribedBy: strings.TrimSpace(r.PrescribedBy),
		Barcode:      strings.TrimSpace(r.Barcode),
	}
	if m.Category == "" {
		m.Category = CategoryScheduled
	}
	return m
}

// UpdateMedicationRequest holds changed fields; nil means unchanged.
// ClearNextDue removes the stored due time.
type UpdateMedicationRequest struct {
	Name         *string    `json:"name,omitempty"`
	Dosage       *string    `json:"dosage,omitempty"`
	Route        *string    `json:"route,omitempty"`
	Frequency    *string    `json:"frequency,omitempty"`
	Category     *string    `json:"category,omitempty"`
	Status       *string    `json:"status,omitempty"`
	Rate         *string    `json:"rate,omitempty"`
	StartDate    *string    `json:"start_date,omitempty"`
	EndDate      *string    `json:"end_date,omitempty"`
	NextDue      *time.Time `json:"next_due,omitempty"`
	ClearNextDue bool       `json:"clear_next_due,omitempty"`
	PrescribedBy *string    `json:"prescribed_by,omitempty"`
}

func (r UpdateMedicationRequest) empty() bool {
	return r.Name == nil && r.Dosage == nil && r.Route == nil && r.Frequency == nil &&
		r.Category == nil && r.Status == nil && r.Rate == nil && r.StartDate == nil &&
		r.EndDate == nil && r.NextDue == nil && !r.ClearNextDue && r.PrescribedBy == nil
}

// apply merges r into a copy of m. Switching to PRN drops next_due.
func (r UpdateMedicationRequest) apply(m Medication) *Medication {
	trim := func(dst *string, v *string) {
		if v != nil {
			*dst = strings.TrimSpace(*v)
		}
	}
	trim(&m.Name, r.Name)
	trim(&m.Dosage, r.Dosage)
	trim(&m.Route, r.Route)
	trim(&m.Frequency, r.Frequency)
	trim(&m.Rate, r.Rate)
	trim(&m.PrescribedBy, r.PrescribedBy)
	if r.Category != nil {
		m.Category = strings.ToLower(strings.TrimSpace(*r.Category))
		if m.Category == CategoryPRN && r.NextDue == nil {
			m.NextDue = nil
		}
	}
	if r.Status != nil {
		m.Status = strings.ToLower(strings.TrimSpace(*r.Status))
	}
	if r.StartDate != nil {
		m.StartDate = r.StartDate
	}
	if r.EndDate != nil {
		m.EndDate = r.EndDate
	}
	if r.ClearNextDue {
		m.NextDue = nil
	}
	if r.NextDue != nil {
		m.NextDue = r.NextDue
	}
	return &m
}

// AdministerRequest carries what the nurse scanned at the bedside.
type AdministerRequest struct {
	PatientID         string     `json:"patient_id"`
	PatientBarcode    string     `json:"patient_barcode"`
	MedicationBarcode string     `json:"medication_barcode"`
	Dose              string     `json:"dose"`
	Notes             string     `json:"notes"`
	AdministeredAt    *time.Time `json:"administered_at,omitempty"`
}

type Administration struct {
	ID                 string    `json:"id"`
	TenantID           string    `json:"tenant_id"`
	MedicationID       string    `json:"medication_id"`
	PatientID          string    `json:"patient_id"`
	AdministeredBy     string    `json:"administered_by"`
	AdministeredByName string    `json:"administered_by_name,omitempty"`
	AdministeredAt     time.Time `json:"administered_at"`
	Dose               string    `json:"dose,omitempty"`
	Notes              string    `json:"notes,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
}

// AdministerResult is the administration plus the medication as it stands
// afterwards.
type AdministerResult struct {
	Administration *Administration `json:"administration"`
	Medication     *Medication     `json:"medication"`
}

type DueListResponse struct {
	Success bool         `json:"success"`
	Due     []Medication `json:"due"`
	Overdue []Medication `json:"overdue"`
	PRN     []Medication `json:"prn"`
	AsOf    time.Time    `json:"as_of"`
}
