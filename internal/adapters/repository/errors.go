package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound     = errors.New("job not found")
	ErrExists       = errors.New("job already exists")
	ErrInvalidState = errors.New("invalid job state transition")
	ErrInterrupted  = errors.New("job interrupted by restart")
)
