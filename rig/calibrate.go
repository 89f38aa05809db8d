package rig

import (
	"fmt"

	"github.com/CK6170/Loadcurve-go/curve"
	"github.com/CK6170/Loadcurve-go/models"
)

// CalibrateRecording runs the curve pipeline over a recording with the rig's
// configured window fraction and known REF scale.
func CalibrateRecording(rec *Recording, p *models.PARAMETERS) (*curve.Outcome, error) {
	if rec == nil || len(rec.Ref) == 0 || len(rec.Dut) == 0 {
		return nil, fmt.Errorf("empty recording")
	}
	if p == nil || p.REF == nil || p.REF.SCALE <= 0 {
		return nil, fmt.Errorf("REF.SCALE must be > 0")
	}
	opts := curve.Options{WindowFraction: p.WINDOW}
	out, err := curve.Calibrate(rec.Ref, rec.Dut, p.REF.SCALE, opts)
	if err != nil {
		return nil, fmt.Errorf("calibrate: %w", err)
	}
	return out, nil
}
