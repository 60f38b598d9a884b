package alerts

import "errors"

var (
	ErrMissingTenant       = errors.New("alert tenant_id is required")
	ErrAlertNotFound       = errors.New("alert not found")
	ErrInvalidType         = errors.New("invalid alert type")
	ErrInvalidPriority     = errors.New("invalid alert priority")
	ErrMessageRequired     = errors.New("alert message is required")
	ErrAlreadyAcknowledged = errors.New("alert already acknowledged")
	ErrForbidden           = errors.New("not allowed to modify this alert")
)
