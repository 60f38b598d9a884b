package medication

import "errors"

var (
	ErrMedicationNotFound = errors.New("medication not found")
	ErrPatientNotFound    = errors.New("patient not found")
	ErrNameRequired       = errors.New("medication name is required")
	ErrDosageRequired     = errors.New("dosage is required")
	ErrRouteRequired      = errors.New("route is required")
	ErrInvalidCategory    = errors.New("category must be scheduled, prn or continuous")
	ErrInvalidStatus      = errors.New("status must be active, discontinued or completed")
	ErrInvalidFrequency   = errors.New("unrecognised frequency")
	ErrInvalidDate        = errors.New("dates must be formatted YYYY-MM-DD")
	ErrPRNNextDue         = errors.New("prn medications cannot have a next due time")
	ErrNoFieldsToUpdate   = errors.New("no fields to update")
	ErrBarcodeTaken       = errors.New("medication barcode already in use")
	ErrForbidden          = errors.New("not allowed to modify this medication")

	// Bedside verification failures.
	ErrPatientBarcodeMismatch    = errors.New("scanned wristband does not match the patient")
	ErrMedicationBarcodeMismatch = errors.New("scanned medication does not match the order")
	ErrWrongPatient              = errors.New("medication is ordered for a different patient")
	ErrMedicationInactive        = errors.New("medication is not active")
)
