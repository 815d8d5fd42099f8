package motion

import "errors"

// Sentinel kinds for motion extraction errors.
var (
	ErrNilFrame  = errors.New("nil frame")
	ErrFrameSize = errors.New("frame size mismatch")
)
