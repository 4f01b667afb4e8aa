// Package forecast estimates the next close from a linear trend of recent closes.
package forecast

import (
	"github.com/moznion/go-optional"

	"MacoPull/internal/services/features"
)

const (
	DefaultLookback = 20
	minPoints       = 3
)

// NextClose fits a degree-1 least squares line over the last lookback finite
// closes and evaluates it one step past the final index. Fewer than three usable
// closes yield None.
func NextClose(closes []float64, lookback int) optional.Option[float64] {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	y := features.FiniteTail(closes, lookback)
	if len(y) < minPoints {
		return optional.None[float64]()
	}
	slope, intercept, ok := features.LinearFit(y)
	if !ok {
		return optional.None[float64]()
	}
	return optional.Some(slope*float64(len(y)) + intercept)
}
