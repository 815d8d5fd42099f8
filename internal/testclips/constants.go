package testclips

import "time"

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Runner configuration constants.
const (
	PollInterval         = 250 * time.Millisecond
	PercentageMultiplier = 100
)
