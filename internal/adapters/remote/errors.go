package remote

import "errors"

// Sentinel kinds for remote pipeline errors.
var (
	ErrRemoteFailed = errors.New("remote analysis failed")
	ErrNoEndpoint   = errors.New("remote endpoint not configured")
)
