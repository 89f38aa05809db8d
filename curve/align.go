package curve

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Leader says which channel the converter sampled first.
type Leader int

const (
	// DUTLeads: the DUT reading precedes its REF reading by half a sample.
	// Compensated by dropping the first DUT and last REF virtual samples.
	DUTLeads Leader = iota
	// REFLeads is the opposite shift.
	REFLeads
)

func (l Leader) String() string {
	if l == REFLeads {
		return "ref"
	}
	return "dut"
}

// Residuals closer than this (relative to their magnitude) count as a tie.
const alignTieEps = 1e-12

// Align resolves the half-sample phase offset between the two resampled
// series. Acquisition start order is uncontrolled, so the shift direction
// differs between runs; both directions are tried and whichever makes the
// DUT-vs-REF scatter fit a straight line better wins. Ties resolve to
// DUTLeads so the choice is deterministic.
//
// Requires the recording to traverse both an increasing and a decreasing
// load phase: a time offset then smears the scatter to both sides of the
// line, which is what the residual can discriminate.
//
// The returned pair has length min(len(refInterp), len(dutInterp)) - 1.
func Align(refInterp, dutInterp Series) (cutRef, cutDut Series, leader Leader, err error) {
	m := len(refInterp)
	if len(dutInterp) < m {
		m = len(dutInterp)
	}
	if m < 3 {
		return nil, nil, 0, fmt.Errorf("align: %d overlapping samples cannot discriminate phase: %w", m, ErrInsufficientData)
	}

	// Candidate A: DUT leads, advance DUT by one virtual sample.
	aDut, aRef := dutInterp[1:m], refInterp[:m-1]
	// Candidate B: REF leads, advance REF instead.
	bDut, bRef := dutInterp[:m-1], refInterp[1:m]

	aFit, aErr := FitLine(aDut, aRef)
	bFit, bErr := FitLine(bDut, bRef)
	switch {
	case aErr != nil && bErr != nil:
		// Constant DUT either way: nothing to align against. If REF never
		// saw load either, fall through and let the window selector report
		// that instead; it is the more actionable diagnostic.
		if nearlyConstant(refInterp[:m]) {
			return aRef, aDut, DUTLeads, nil
		}
		return nil, nil, 0, fmt.Errorf("align: both phase candidates degenerate: %w", ErrAlignmentAmbiguous)
	case aErr != nil:
		return bRef, bDut, REFLeads, nil
	case bErr != nil:
		return aRef, aDut, DUTLeads, nil
	}

	ra, rb := aFit.Residual, bFit.Residual
	if tie := math.Abs(ra-rb) <= alignTieEps*math.Max(1, math.Max(ra, rb)); tie {
		if nearlyConstant(dutInterp[:m]) && !nearlyConstant(refInterp[:m]) {
			return nil, nil, 0, fmt.Errorf("align: candidates indistinguishable on near-constant data: %w", ErrAlignmentAmbiguous)
		}
		return aRef, aDut, DUTLeads, nil
	}
	if rb < ra {
		return bRef, bDut, REFLeads, nil
	}
	return aRef, aDut, DUTLeads, nil
}

func nearlyConstant(s Series) bool {
	max, min := floats.Max(s), floats.Min(s)
	scale := math.Max(math.Abs(max), math.Abs(min))
	return max-min <= 1e-9*math.Max(1, scale)
}
