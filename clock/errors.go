package clock

import "errors"

// ErrClockSamplingFreq is returned when the host clock cannot be queried, or
// the requested sampling resolution exceeds the host's timer capability.
// The clock still applies the setting best-effort; this is a warning, not a
// hard failure.
var ErrClockSamplingFreq = errors.New("clock: sampling frequency unavailable at requested resolution")
