package service

import (
	"errors"
	"fmt"

	"github.com/rongwang/staff-scheduler/internal/models"
)

// Sentinel errors returned by the service layer. Callers match them with errors.Is.
var (
	ErrValidation          = errors.New("validation failed")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrInsufficientBalance = errors.New("insufficient leave balance")
	ErrConflict            = errors.New("schedule conflict")
	ErrInvalidTransition   = errors.New("invalid status transition")
	ErrNotFound            = errors.New("not found")
	ErrUnauthorized        = errors.New("invalid credentials")
	ErrAlreadyExists       = errors.New("already exists")
)

func validationError(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func notFound(what string) error {
	return fmt.Errorf("%w: %s", ErrNotFound, what)
}

func permissionDenied(perm models.Permission) error {
	return fmt.Errorf("%w: requires %s", ErrPermissionDenied, perm)
}

func invalidTransition(from, to string) error {
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// ConflictKind names the rule a proposed shift violates
type ConflictKind string

const (
	ConflictApprovedLeave           ConflictKind = "approved_leave"
	ConflictUnavailability          ConflictKind = "unavailability"
	ConflictRestrictedDayNotCleared ConflictKind = "restricted_day_not_cleared"
)

// ConflictError is returned by the conflict checker. It matches ErrConflict.
type ConflictError struct {
	Kind    ConflictKind
	Date    models.Date
	Details string
}

func (e *ConflictError) Error() string {
	if e.Details == "" {
		return fmt.Sprintf("schedule conflict on %s: %s", e.Date, e.Kind)
	}
	return fmt.Sprintf("schedule conflict on %s: %s (%s)", e.Date, e.Kind, e.Details)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// InsufficientBalanceError carries the shortfall of a failed reservation
type InsufficientBalanceError struct {
	Dimension string // "days" or "hours"
	Requested float64
	Remaining float64
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient leave balance: requested %.2f %s, %.2f remaining",
		e.Requested, e.Dimension, e.Remaining)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }
