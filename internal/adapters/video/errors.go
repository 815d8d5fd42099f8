package video

import "errors"

// Sentinel kinds for video source errors.
var (
	ErrUnsupportedFormat = errors.New("unsupported video format")
	ErrNoFrames          = errors.New("video has no frames")
	ErrInvalidSize       = errors.New("invalid frame size")
	ErrInvalidRate       = errors.New("invalid frame rate")
	ErrTooLarge          = errors.New("video exceeds decode limits")
)
