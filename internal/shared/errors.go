package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrMissingToken occurs when a request carries no bearer token.
	ErrMissingToken = errors.New("missing bearer token")
	// ErrInvalidToken occurs when a bearer token fails verification.
	ErrInvalidToken = errors.New("invalid bearer token")
)
