package patient

import (
	"strings"
	"time"

	"github.com/haccare/emr-service/internal/pagination"
)

const (
	ConditionCritical   = "Critical"
	ConditionStable     = "Stable"
	ConditionImproving  = "Improving"
	ConditionDischarged = "Discharged"
)

var validConditions = map[string]bool{
	ConditionCritical:   true,
	ConditionStable:     true,
	ConditionImproving:  true,
	ConditionDischarged: true,
}

const dateLayout = "2006-01-02"

// Patient is a charted patient. RecordNumber doubles as the wristband
// barcode payload.
type Patient struct {
	ID                    string     `json:"id"`
	TenantID              string     `json:"tenant_id"`
	RecordNumber          string     `json:"record_number"`
	FirstName             string     `json:"first_name"`
	LastName              string     `json:"last_name"`
	DateOfBirth           *string    `json:"date_of_birth,omitempty"`
	Gender                string     `json:"gender,omitempty"`
	RoomNumber            string     `json:"room_number,omitempty"`
	BedNumber             string     `json:"bed_number,omitempty"`
	AdmissionDate         *string    `json:"admission_date,omitempty"`
	AttendingPhysician    string     `json:"attending_physician,omitempty"`
	Diagnosis             string     `json:"diagnosis,omitempty"`
	Allergies             []string   `json:"allergies"`
	BloodType             string     `json:"blood_type,omitempty"`
	Condition             string     `json:"condition"`
	EmergencyContactName  string     `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone string     `json:"emergency_contact_phone,omitempty"`
	Notes                 string     `json:"notes,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             *time.Time `json:"updated_at,omitempty"`
}

func (p *Patient) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

type CreatePatientRequest struct {
	FirstName             string   `json:"first_name"`
	LastName              string   `json:"last_name"`
	DateOfBirth           string   `json:"date_of_birth"` // YYYY-MM-DD
	Gender                string   `json:"gender"`
	RoomNumber            string   `json:"room_number"`
	BedNumber             string   `json:"bed_number"`
	AdmissionDate         string   `json:"admission_date"` // YYYY-MM-DD
	AttendingPhysician    string   `json:"attending_physician"`
	Diagnosis             string   `json:"diagnosis"`
	Allergies             []string `json:"allergies"`
	BloodType             string   `json:"blood_type"`
	Condition             string   `json:"condition"`
	EmergencyContactName  string   `json:"emergency_contact_name"`
	EmergencyContactPhone string   `json:"emergency_contact_phone"`
	Notes                 string   `json:"notes"`
}

func (r *CreatePatientRequest) Validate() error {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	if r.FirstName == "" {
		return ErrFirstNameRequired
	}
	if r.LastName == "" {
		return ErrLastNameRequired
	}
	if r.Condition == "" {
		r.Condition = ConditionStable
	}
	if !validConditions[r.Condition] {
		return ErrInvalidCondition
	}
	for _, d := range []string{r.DateOfBirth, r.AdmissionDate} {
		if d == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, d); err != nil {
			return ErrInvalidDate
		}
	}
	r.Allergies = cleanAllergies(r.Allergies)
	return nil
}

// UpdatePatientRequest holds the fields that may change; nil means unchanged.
type UpdatePatientRequest struct {
	FirstName             *string   `json:"first_name,omitempty"`
	LastName              *string   `json:"last_name,omitempty"`
	DateOfBirth           *string   `json:"date_of_birth,omitempty"`
	Gender                *string   `json:"gender,omitempty"`
	RoomNumber            *string   `json:"room_number,omitempty"`
	BedNumber             *string   `json:"bed_number,omitempty"`
	AdmissionDate         *string   `json:"admission_date,omitempty"`
	AttendingPhysician    *string   `json:"attending_physician,omitempty"`
	Diagnosis             *string   `json:"diagnosis,omitempty"`
	Allergies             *[]string `json:"allergies,omitempty"`
	BloodType             *string   `json:"blood_type,omitempty"`
	Condition             *string   `json:"condition,omitempty"`
	EmergencyContactName  *string   `json:"emergency_contact_name,omitempty"`
	EmergencyContactPhone *string   `json:"emergency_contact_phone,omitempty"`
	Notes                 *string   `json:"notes,omitempty"`
}

func (r *UpdatePatientRequest) Validate() error {
	if r.FirstName != nil && strings.TrimSpace(*r.FirstName) == "" {
		return ErrFirstNameRequired
	}
	if r.LastName != nil && strings.TrimSpace(*r.LastName) == "" {
		return ErrLastNameRequired
	}
	if r.Condition != nil && !validConditions[*r.Condition] {
		return ErrInvalidCondition
	}
	for _, d := range []*string{r.DateOfBirth, r.AdmissionDate} {
		if d == nil || *d == "" {
			continue
		}
		if _, err := time.Parse(dateLayout, *d); err != nil {
			return ErrInvalidDate
		}
	}
	if r.Allergies != nil {
		cleaned := cleanAllergies(*r.Allergies)
		r.Allergies = &cleaned
	}
	return nil
}

func cleanAllergies(in []string) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

type ListFilter struct {
	Search    string
	Condition string
}

type PaginatedPatientListResponse struct {
	Success    bool            `json:"success"`
	Patients   []Patient       `json:"patients"`
	Pagination pagination.Meta `json:"pagination"`
}
