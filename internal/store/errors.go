package store

import "errors"

// Predefined errors for the store layer.
var (
	// ErrNotFound indicates that a requested form session does not exist or has expired.
	ErrNotFound = errors.New("resource not found")
)
