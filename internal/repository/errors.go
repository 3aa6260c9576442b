package repository

import "errors"

var (
	ErrNotFound       = errors.New("entity not found")
	ErrAlreadyExists  = errors.New("entity already exists")
	ErrUpdateFailed   = errors.New("update failed")
	ErrOptimisticLock = errors.New("optimistic lock conflict: data was modified by another process")
	// ErrStateConflict is returned by status-guarded compare-and-set writes
	// when the entity is no longer in the expected source state.
	ErrStateConflict = errors.New("entity is not in the expected state")
)
