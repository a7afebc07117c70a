package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("conflict")
	ErrInvalid           = errors.New("invalid")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrPrecondition      = errors.New("precondition failed")
	ErrWeightExceeded    = fmt.Errorf("weight exceeds %.1f kg: %w", MaxOrderWeightKg, ErrInvalid)
	ErrUnknownDrone      = errors.New("plan references unknown drone")
	ErrUnknownOrder      = errors.New("route references unknown order")
	ErrStepLimit         = errors.New("simulation step limit reached")
	ErrSimulationRunning = fmt.Errorf("simulation already running: %w", ErrConflict)
)
