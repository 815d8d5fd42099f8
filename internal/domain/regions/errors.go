package regions

import "errors"

// ErrLengthMismatch reports energy and centroid sequences of different length.
var ErrLengthMismatch = errors.New("energy/centroid length mismatch")
