package service

import "errors"

// Common service errors
var (
	// ErrPermissionDenied is returned when a user doesn't have permission for an action
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned when a resource is not found
	ErrNotFound = errors.New("resource not found")

	// ErrInvalidInput is returned when input validation fails
	ErrInvalidInput = errors.New("invalid input")

	// ErrConflict is returned when there's a conflict (e.g., duplicate)
	ErrConflict = errors.New("resource conflict")

	// ErrUnauthorized is returned when user is not authenticated
	ErrUnauthorized = errors.New("unauthorized")

	// ErrMilestoneNotFound is returned when a milestone id does not belong to the lead
	ErrMilestoneNotFound = errors.New("milestone not found on lead")

	// ErrInvalidStatus is returned when a lead status value is not recognized
	ErrInvalidStatus = errors.New("invalid lead status")

	// ErrAlreadyConverted is returned when conversion is attempted on a lead
	// that already has a linked project
	ErrAlreadyConverted = errors.New("lead already converted")
)
