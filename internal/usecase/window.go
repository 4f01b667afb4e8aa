package usecase

import (
	"time"

	"MacoPull/internal/domain/models"
)

// DefaultSeedHorizon is how far back an empty series is seeded.
const DefaultSeedHorizon = 365 * 24 * time.Hour

// FetchWindow decides which range to request for a series. An empty series is
// seeded from now-seedHorizon, otherwise the window starts one unit after the
// last stored bar. ok is false when the window would start after now.
func FetchWindow(s models.Series, now time.Time, seedHorizon, unit time.Duration) (from, to time.Time, ok bool) {
	to = now.UTC()
	if last, has := s.Last(); has {
		from = last.Time.UTC().Add(unit)
	} else {
		if seedHorizon <= 0 {
			seedHorizon = DefaultSeedHorizon
		}
		from = to.Add(-seedHorizon)
	}
	if from.After(to) {
		return from, to, false
	}
	return from, to, true
}
