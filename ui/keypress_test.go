package ui

import "testing"

func TestDrainKeys(t *testing.T) {
	ch := make(chan rune, 8)
	ch <- 'a'
	ch <- 27
	DrainKeys(ch)
	select {
	case k := <-ch:
		t.Fatalf("key %q left after drain", k)
	default:
	}
}
