package analysis

import "errors"

// ErrNoProviders reports a Fallback with nothing to try.
var ErrNoProviders = errors.New("no analysis providers configured")
