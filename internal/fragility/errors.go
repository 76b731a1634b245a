package fragility

import "errors"

var (
	// ErrInsufficientData is returned when a series is too short for a hard-coded
	// lookback or its final value is undefined.
	ErrInsufficientData = errors.New("fragility: insufficient data")

	// ErrInvalidConfiguration is returned when thresholds are missing or out of order.
	ErrInvalidConfiguration = errors.New("fragility: invalid configuration")

	// ErrMalformedSeries is returned for empty series, duplicate or non-monotonic dates.
	ErrMalformedSeries = errors.New("fragility: malformed series")
)
