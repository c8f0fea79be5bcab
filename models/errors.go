package models

import "errors"

var (
	// ErrNotFound is returned when a grant, category, package, exception, award or log id is unknown
	ErrNotFound = errors.New("not found")

	// ErrConfigurationConflict is returned when a category is already bound to another active package,
	// or an exception names a category its package does not cover
	ErrConfigurationConflict = errors.New("configuration conflict")

	// ErrInUseConflict is returned when deleting or archiving something that history or registration items still reference
	ErrInUseConflict = errors.New("in use")

	// ErrDuplicateAward signals that the (contestant, session, category) triple was already awarded.
	// The executor swallows it; it never reaches callers.
	ErrDuplicateAward = errors.New("duplicate award")

	// ErrGrantBusy is returned when another execution of the same grant holds its lease
	ErrGrantBusy = errors.New("grant execution already in progress")

	// ErrInvalidInput wraps validation failures on administrator input
	ErrInvalidInput = errors.New("invalid input")
)
