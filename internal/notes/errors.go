package notes

import "errors"

var (
	ErrNoteNotFound    = errors.New("note not found")
	ErrPatientNotFound = errors.New("patient not found")
	ErrContentRequired = errors.New("content is required")
	ErrInvalidType     = errors.New("invalid note type")
	ErrInvalidPriority = errors.New("priority must be Low, Medium or High")
	ErrForbidden       = errors.New("not allowed to modify this note")
)
