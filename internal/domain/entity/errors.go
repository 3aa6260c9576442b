package entity

import "errors"

var (
	// ErrNotFound indicates that a referenced entity does not exist.
	ErrNotFound = errors.New("entity not found")
	// ErrConflict indicates an invariant violation: wrong source state,
	// duplicate offer/review/report, or a listing that is no longer available.
	ErrConflict = errors.New("conflicting state change")
	// ErrValidation indicates malformed input data.
	ErrValidation = errors.New("invalid input data")
	// ErrForbidden indicates that the acting user is not a party to the entity.
	ErrForbidden = errors.New("action forbidden")
)
