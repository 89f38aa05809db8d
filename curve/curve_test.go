package curve

import (
	"errors"
	"math"
	"testing"
)

func TestResolve(t *testing.T) {
	out := Resolve(Fit{Slope: 1.5, Intercept: 0.002, Residual: 4.2e-8}, 100000)
	if out.ScaleDUT != 150000 {
		t.Errorf("ScaleDUT: got %v, want 150000", out.ScaleDUT)
	}
	if out.Residual != 4.2e-8 {
		t.Errorf("Residual: got %v, want fit residual", out.Residual)
	}
}

// loadRamp builds a push/hold/release REF profile and a DUT reading the same
// load at scale 1/k, delayed by one raw sample (the mux offset, worst case).
func loadRamp(k float64) (ref, dut Series) {
	ref = triangle(20, 100)
	// hold at peak for a few samples
	peak := ref[:21]
	ref = append(append(append(Series{0, 0}, peak...), 100, 100, 100), ref[21:]...)
	ref = append(ref, 0, 0)
	dut = make(Series, len(ref))
	for i := 1; i < len(ref); i++ {
		dut[i] = k * ref[i-1]
	}
	return ref, dut
}

func TestCalibrateEndToEnd(t *testing.T) {
	const k = 0.5
	ref, dut := loadRamp(k)
	out, err := Calibrate(ref, dut, 1.0, Options{})
	if err != nil {
		t.Fatal(err)
	}
	want := 1 / k
	if math.Abs(out.ScaleDUT-want) > 0.05*want {
		t.Errorf("ScaleDUT: got %v, want %v within 5%%", out.ScaleDUT, want)
	}
	if out.Leader != DUTLeads {
		t.Errorf("leader: got %v, want dut (the delayed channel is advanced)", out.Leader)
	}
	if len(out.CutRef) != len(out.CutDut) {
		t.Fatalf("aligned pair lengths differ: %d vs %d", len(out.CutRef), len(out.CutDut))
	}
	wantLen := 2*len(ref) - 1 - 1
	if len(out.CutRef) != wantLen {
		t.Errorf("aligned length: got %d, want %d", len(out.CutRef), wantLen)
	}
	if out.Window[0] > out.Window[1] {
		t.Errorf("window [%d, %d] inverted", out.Window[0], out.Window[1])
	}
	if out.Residual < 0 {
		t.Errorf("residual negative: %v", out.Residual)
	}
}

func TestCalibrateScaleRefPropagates(t *testing.T) {
	ref, dut := loadRamp(0.5)
	base, err := Calibrate(ref, dut, 1.0, Options{})
	if err != nil {
		t.Fatal(err)
	}
	scaled, err := Calibrate(ref, dut, 100000, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(scaled.ScaleDUT-100000*base.ScaleDUT) > 1e-6*scaled.ScaleDUT {
		t.Errorf("got %v, want %v", scaled.ScaleDUT, 100000*base.ScaleDUT)
	}
}

func TestCalibrateFlatRef(t *testing.T) {
	ref := make(Series, 40)
	dut := triangle(20, 50)[:40]
	if _, err := Calibrate(ref, dut, 1.0, Options{}); !errors.Is(err, ErrEmptyWindow) {
		t.Fatalf("got %v, want ErrEmptyWindow", err)
	}
}

func TestCalibrateFitSliceOverride(t *testing.T) {
	ref, dut := loadRamp(0.5)
	slice := [2]int{10, 60}
	out, err := Calibrate(ref, dut, 1.0, Options{FitSlice: &slice})
	if err != nil {
		t.Fatal(err)
	}
	if out.Window != slice {
		t.Errorf("window: got %v, want explicit %v", out.Window, slice)
	}

	bad := [2]int{-1, 5}
	if _, err := Calibrate(ref, dut, 1.0, Options{FitSlice: &bad}); err == nil {
		t.Error("negative slice start accepted")
	}
	huge := [2]int{0, 100000}
	if _, err := Calibrate(ref, dut, 1.0, Options{FitSlice: &huge}); err == nil {
		t.Error("out-of-range slice end accepted")
	}
}

func TestCalibrateWindowFraction(t *testing.T) {
	ref, dut := loadRamp(0.5)
	narrow, err := Calibrate(ref, dut, 1.0, Options{WindowFraction: 0.5})
	if err != nil {
		t.Fatal(err)
	}
	wide, err := Calibrate(ref, dut, 1.0, Options{WindowFraction: 0.05})
	if err != nil {
		t.Fatal(err)
	}
	nw := narrow.Window[1] - narrow.Window[0]
	ww := wide.Window[1] - wide.Window[0]
	if nw >= ww {
		t.Errorf("fraction 0.5 window (%d) not narrower than 0.05 window (%d)", nw, ww)
	}
}

func TestCalibrateTooShort(t *testing.T) {
	if _, err := Calibrate(Series{1}, Series{1, 2, 3, 4}, 1.0, Options{}); !errors.Is(err, ErrInsufficientData) {
		t.Fatalf("got %v, want ErrInsufficientData", err)
	}
}
