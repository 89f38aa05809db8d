package curve

import "errors"

var (
	// ErrInsufficientData: a stage got fewer samples than its minimum
	// (2 for interpolation and fitting, 3 for phase discrimination).
	ErrInsufficientData = errors.New("insufficient data")

	// ErrAlignmentAmbiguous: both phase hypotheses scored the same and the
	// data has too little dynamic range to tell them apart. Re-run the
	// acquisition with more motion.
	ErrAlignmentAmbiguous = errors.New("phase alignment ambiguous")

	// ErrEmptyWindow: no REF sample exceeded the active-load threshold.
	ErrEmptyWindow = errors.New("empty active window")

	// ErrDegenerateFit: the fit's independent variable has zero variance.
	ErrDegenerateFit = errors.New("degenerate line fit")
)
