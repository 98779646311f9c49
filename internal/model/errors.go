package model

import "errors"

var (
	// ErrNotFound is returned when a referenced aggregate does not resolve.
	ErrNotFound = errors.New("not found")
	// ErrInvalidArgument is returned for malformed command input.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrConflict is returned when an aggregate is not in a state that allows the change.
	ErrConflict = errors.New("conflict")
	// ErrForbidden is returned when the acting user may not change the aggregate.
	ErrForbidden = errors.New("forbidden")
)
