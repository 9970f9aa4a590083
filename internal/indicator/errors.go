package indicator

import "errors"

// ErrInsufficientData is returned when a series is shorter than the
// indicator's minimum window. Callers that compute full snapshots treat
// it as a warm-up condition rather than a failure.
var ErrInsufficientData = errors.New("indicator: insufficient data for window")
