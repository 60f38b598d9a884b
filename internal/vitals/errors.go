package vitals

import "errors"

var (
	ErrVitalsNotFound          = errors.New("vital signs not found")
	ErrPatientNotFound         = errors.New("patient not found")
	ErrNoReadings              = errors.New("at least one reading is required")
	ErrIncompleteBloodPressure = errors.New("systolic and diastolic must be recorded together")
	ErrImplausibleReading      = errors.New("reading outside plausible range")
	ErrForbidden               = errors.New("not allowed to modify these vital signs")
)
