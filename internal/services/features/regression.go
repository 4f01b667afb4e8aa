package features

// LinearFit returns the ordinary least squares slope and intercept of y against
// the indices 0..len(y)-1. ok is false with fewer than two points.
func LinearFit(y []float64) (slope, intercept float64, ok bool) {
	n := float64(len(y))
	if len(y) < 2 {
		return 0, 0, false
	}
	// x is 0..n-1, so its mean and spread are closed-form
	meanX := (n - 1) / 2
	var meanY float64
	for _, v := range y {
		meanY += v
	}
	meanY /= n

	var sxy, sxx float64
	for i, v := range y {
		dx := float64(i) - meanX
		sxy += dx * (v - meanY)
		sxx += dx * dx
	}
	slope = sxy / sxx
	intercept = meanY - slope*meanX
	return slope, intercept, true
}
