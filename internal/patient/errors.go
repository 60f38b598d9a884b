package patient

import "errors"

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrFirstNameRequired   = errors.New("first name is required")
	ErrLastNameRequired    = errors.New("last name is required")
	ErrInvalidCondition    = errors.New("condition must be one of Critical, Stable, Improving, Discharged")
	ErrInvalidDate         = errors.New("dates must use YYYY-MM-DD")
	ErrNoFieldsToUpdate    = errors.New("no fields to update")
	ErrRecordNumberTaken   = errors.New("record number already assigned")
	ErrInvalidRecordNumber = errors.New("scanned code is not a record number")
	ErrForbidden           = errors.New("forbidden - insufficient permissions")
)
