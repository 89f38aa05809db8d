// Package curve derives a load cell scale factor from two co-loaded sensor
// recordings. The reference channel (REF) has a known physical scale; the
// device under test (DUT) does not. Both are sampled by one multiplexed
// bridge converter, so their sample instants are offset by half the combined
// sampling period in an unknown direction. The pipeline upsamples both
// series 2x through a cubic spline, picks whichever half-sample shift fits a
// straight line better, restricts the data to the active load window, and
// fits REF against DUT to get the slope that converts DUT readings into REF
// units.
package curve

import (
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Series is one channel's raw readings in arrival order.
type Series []float64

// DefaultWindowFraction is the fraction of the REF span a sample must exceed
// above the minimum to count as active load. Untuned beyond bench testing.
const DefaultWindowFraction = 0.1

// Options tunes the pipeline. The 2x resample factor is not an option: it
// encodes the half-sample mux offset of a two-channel bridge converter.
type Options struct {
	// WindowFraction overrides DefaultWindowFraction when > 0.
	WindowFraction float64

	// FitSlice, when set, is an explicit inclusive [start, end] index range
	// into the aligned series, bypassing the automatic window selection.
	// Diagnostic use only.
	FitSlice *[2]int
}

// Outcome is the calibration artifact plus the intermediates worth plotting.
type Outcome struct {
	// ScaleDUT converts a raw DUT reading into the same physical units as
	// scaleRef * REF reading (e.g. kg per V/V).
	ScaleDUT float64
	// Residual is the fit's sum of squared errors, the quality signal.
	Residual float64

	Fit    Fit
	Leader Leader
	Window [2]int
	CutRef Series
	CutDut Series
}

// Resolve combines a line fit with the known REF scale.
//
// For the same applied load at every instant, scaleRef*ref = scaleDut*dut,
// so scaleDut = scaleRef * d(ref)/d(dut) = scaleRef * slope.
func Resolve(fit Fit, scaleRef float64) Outcome {
	return Outcome{
		ScaleDUT: fit.Slope * scaleRef,
		Residual: fit.Residual,
		Fit:      fit,
	}
}

// Calibrate runs the full pipeline over two raw series. scaleRef must be
// positive (caller contract). Errors are terminal for the attempt; the fix
// is re-acquiring data, not retrying the math.
func Calibrate(ref, dut Series, scaleRef float64, opts Options) (*Outcome, error) {
	var refInterp, dutInterp Series

	// The two resamples are independent; run them concurrently.
	var g errgroup.Group
	g.Go(func() error {
		var err error
		if refInterp, err = Resample(ref); err != nil {
			return fmt.Errorf("ref: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		if dutInterp, err = Resample(dut); err != nil {
			return fmt.Errorf("dut: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	cutRef, cutDut, leader, err := Align(refInterp, dutInterp)
	if err != nil {
		return nil, err
	}

	var start, end int
	if opts.FitSlice != nil {
		start, end = opts.FitSlice[0], opts.FitSlice[1]
		if start < 0 || end >= len(cutRef) || start > end {
			return nil, fmt.Errorf("fit slice [%d, %d] out of range for %d aligned samples", start, end, len(cutRef))
		}
	} else {
		fraction := opts.WindowFraction
		if fraction <= 0 {
			fraction = DefaultWindowFraction
		}
		start, end, err = SelectWindow(cutRef, fraction)
		if err != nil {
			return nil, err
		}
	}

	fit, err := FitLine(cutDut[start:end+1], cutRef[start:end+1])
	if err != nil {
		return nil, err
	}

	out := Resolve(fit, scaleRef)
	out.Leader = leader
	out.Window = [2]int{start, end}
	out.CutRef = cutRef
	out.CutDut = cutDut
	return &out, nil
}
