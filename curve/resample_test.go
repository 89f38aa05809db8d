package curve

import (
	"errors"
	"math"
	"testing"
)

func TestResampleLength(t *testing.T) {
	for _, n := range []int{2, 3, 5, 8, 100} {
		s := make(Series, n)
		for i := range s {
			s[i] = float64(i * i)
		}
		out, err := Resample(s)
		if err != nil {
			t.Fatalf("n=%d: %v", n, err)
		}
		if len(out) != 2*n-1 {
			t.Errorf("n=%d: got length %d, want %d", n, len(out), 2*n-1)
		}
	}
}

func TestResamplePassesThroughKnots(t *testing.T) {
	s := Series{0, 10, 40, 90, 90, 40, 10, 0}
	out, err := Resample(s)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range s {
		if out[2*i] != v {
			t.Errorf("virtual index %d: got %v, want raw value %v", 2*i, out[2*i], v)
		}
	}
}

func TestResampleLinearMidpoints(t *testing.T) {
	// A natural cubic spline through collinear points is the line itself,
	// so midpoints land on the averages of their neighbors.
	s := Series{0, 2, 4, 6, 8, 10}
	out, err := Resample(s)
	if err != nil {
		t.Fatal(err)
	}
	for i := 1; i < len(out); i += 2 {
		want := (out[i-1] + out[i+1]) / 2
		if math.Abs(out[i]-want) > 1e-9 {
			t.Errorf("midpoint %d: got %v, want %v", i, out[i], want)
		}
	}
}

func TestResampleTooShort(t *testing.T) {
	for _, s := range []Series{nil, {}, {1.5}} {
		if _, err := Resample(s); !errors.Is(err, ErrInsufficientData) {
			t.Errorf("len=%d: got %v, want ErrInsufficientData", len(s), err)
		}
	}
}
