package curve

import (
	"errors"
	"testing"
)

func TestSelectWindowMonotonicRamp(t *testing.T) {
	// 0..100 in unit steps, fraction 0.1: threshold 10, so the window is
	// exactly the indices with value > 10.
	s := make(Series, 101)
	for i := range s {
		s[i] = float64(i)
	}
	start, end, err := SelectWindow(s, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if start != 11 {
		t.Errorf("start: got %d, want 11", start)
	}
	if end != 100 {
		t.Errorf("end: got %d, want 100", end)
	}
}

func TestSelectWindowTriangle(t *testing.T) {
	s := triangle(10, 100) // 0..100..0, step 10
	start, end, err := SelectWindow(s, 0.1)
	if err != nil {
		t.Fatal(err)
	}
	if start != 2 || end != 18 {
		t.Errorf("got [%d, %d], want [2, 18]", start, end)
	}
	if start > end {
		t.Errorf("start %d > end %d", start, end)
	}
}

func TestSelectWindowEmpty(t *testing.T) {
	cases := []struct {
		name string
		s    Series
	}{
		{"flat zero", make(Series, 50)},
		{"flat nonzero", Series{3, 3, 3, 3}},
		{"empty", Series{}},
	}
	for _, c := range cases {
		if _, _, err := SelectWindow(c.s, 0.1); !errors.Is(err, ErrEmptyWindow) {
			t.Errorf("%s: got %v, want ErrEmptyWindow", c.name, err)
		}
	}
}
