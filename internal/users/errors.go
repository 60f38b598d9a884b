package users

import "errors"

var (
	ErrMissingUserID      = errors.New("user_id is required")
	ErrMissingTenantID    = errors.New("tenant_id is required")
	ErrInvalidRole        = errors.New("role must be one of ADMIN, INSTRUCTOR, NURSE, STUDENT")
	ErrUserNotFound       = errors.New("user not found")
	ErrTenantNotFound     = errors.New("tenant not found")
	ErrTenantInactive     = errors.New("tenant is not active")
	ErrMembershipNotFound = errors.New("membership not found")
	ErrNoFieldsToUpdate   = errors.New("no fields to update")
	ErrForbidden          = errors.New("forbidden - insufficient permissions")
)
