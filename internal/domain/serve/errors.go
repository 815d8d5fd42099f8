package serve

import "errors"

// Sentinel kinds for analysis errors.
var (
	// ErrSourceNotReady reports a video source that never became seekable.
	ErrSourceNotReady = errors.New("video source not ready")
	// ErrEmptySignal reports an analysis with zero sampled frames.
	ErrEmptySignal = errors.New("empty motion signal")
	// ErrUnknownProfile reports a player missing from the profile table.
	ErrUnknownProfile = errors.New("unknown player profile")
	// ErrNoSimilarities reports a result without any scored profile.
	ErrNoSimilarities = errors.New("no similarity results")
)
