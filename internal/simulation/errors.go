package simulation

import "errors"

var (
	ErrNotSimulation  = errors.New("tenant is not a simulation tenant")
	ErrTenantNotFound = errors.New("tenant not found")
	ErrForbidden      = errors.New("not allowed to manage this simulation")
	ErrNoBaseline     = errors.New("no baseline captured for this simulation")
)
