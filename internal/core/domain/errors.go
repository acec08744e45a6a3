package domain

import "errors"

// Error taxonomy crossing the core boundary. Business failures wrap one of
// these sentinels; adapters match them with errors.Is and never see raw
// infrastructure errors outside ErrInternal.
var (
	// ErrUnauthorized is returned when a signature fails verification.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrForbidden is returned when the authenticated identity does not
	// match the required role.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidRequest is returned when a request is structurally valid
	// but semantically wrong.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrNotFound is returned when a referenced task or response is absent.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when the current state forbids the transition.
	ErrConflict = errors.New("conflict")
	// ErrInternal is returned on persistence or signer failure after all
	// business checks passed.
	ErrInternal = errors.New("internal error")
)
