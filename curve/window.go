package curve

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// SelectWindow returns the inclusive index range of cutRef holding
// substantial load: the first through last sample exceeding
// min + fraction*(max-min). The acquisition dwells near zero before contact
// and after release; fitting only the loaded region keeps the linearity
// assumption honest.
func SelectWindow(cutRef Series, fraction float64) (start, end int, err error) {
	if len(cutRef) == 0 {
		return 0, 0, fmt.Errorf("window: empty series: %w", ErrEmptyWindow)
	}
	max, min := floats.Max(cutRef), floats.Min(cutRef)
	threshold := min + fraction*(max-min)

	start, end = -1, -1
	for i, v := range cutRef {
		if v > threshold {
			if start < 0 {
				start = i
			}
			end = i
		}
	}
	if start < 0 {
		return 0, 0, fmt.Errorf("window: no sample above %g (span %g): %w", threshold, max-min, ErrEmptyWindow)
	}
	return start, end, nil
}
