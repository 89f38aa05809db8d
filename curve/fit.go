package curve

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// Fit is an ordinary least-squares line y = Slope*x + Intercept.
type Fit struct {
	Slope     float64
	Intercept float64
	// Residual is the minimized sum of squared errors, not normalized.
	Residual float64
}

// FitLine fits y as a linear function of x, unweighted, double precision,
// no regularization. x with zero variance is a singular system.
func FitLine(x, y Series) (Fit, error) {
	if len(x) != len(y) {
		return Fit{}, fmt.Errorf("fit: length mismatch %d vs %d: %w", len(x), len(y), ErrInsufficientData)
	}
	if len(x) < 2 {
		return Fit{}, fmt.Errorf("fit: need at least 2 points, got %d: %w", len(x), ErrInsufficientData)
	}
	constant := true
	for i := 1; i < len(x); i++ {
		if x[i] != x[0] {
			constant = false
			break
		}
	}
	if constant {
		return Fit{}, fmt.Errorf("fit: x has zero variance: %w", ErrDegenerateFit)
	}

	alpha, beta := stat.LinearRegression(x, y, nil, false)
	sse := 0.0
	for i := range x {
		r := y[i] - (beta*x[i] + alpha)
		sse += r * r
	}
	return Fit{Slope: beta, Intercept: alpha, Residual: sse}, nil
}
