package indicators

import "errors"

var (
	// ErrInsufficientData means a required window is shorter than the
	// indicator's documented minimum. Screening treats it as a failed
	// filter, never as a fault.
	ErrInsufficientData = errors.New("indicators: insufficient data")

	// ErrDegenerateSeries means the input is constant, contains
	// non-finite values, or produces a zero denominator where the
	// indicator has no defined value.
	ErrDegenerateSeries = errors.New("indicators: degenerate series")
)
