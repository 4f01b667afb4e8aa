package features

import (
	"math"

	"github.com/moznion/go-optional"
)

// TrailingSMA computes the simple moving average over the last `window` values at
// every index. The first window-1 entries are None, as is any index whose window
// holds a NaN or Inf. A running sum over the finite values keeps it O(n).
func TrailingSMA(values []float64, window int) []optional.Option[float64] {
	out := make([]optional.Option[float64], len(values))
	if window <= 0 {
		for i := range out {
			out[i] = optional.None[float64]()
		}
		return out
	}
	sum, bad := 0.0, 0
	for i, v := range values {
		if finite(v) {
			sum += v
		} else {
			bad++
		}
		if i >= window {
			if old := values[i-window]; finite(old) {
				sum -= old
			} else {
				bad--
			}
		}
		if i < window-1 || bad > 0 {
			out[i] = optional.None[float64]()
			continue
		}
		out[i] = optional.Some(sum / float64(window))
	}
	return out
}

// FiniteTail returns up to n trailing values, skipping NaN and ±Inf entries.
func FiniteTail(values []float64, n int) []float64 {
	out := make([]float64, 0, n)
	for i := len(values) - 1; i >= 0 && len(out) < n; i-- {
		v := values[i]
		if !finite(v) {
			continue
		}
		out = append(out, v)
	}
	// reverse to chronological order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
