package interfaces

import "errors"

// Shared collaborator error types. REST implementations map status codes onto
// these so the store can classify failures without knowing the wire format.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrConflict     = errors.New("resource conflict")
	ErrUnauthorized = errors.New("not authorized")
	ErrNoSnapshot   = errors.New("no snapshot stored")
)
