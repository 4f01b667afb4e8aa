// Package merge combines a stored series with freshly fetched bars.
package merge

import (
	"sort"
	"time"

	"MacoPull/internal/domain/models"
)

// Merge unions existing and incoming by bar time. On a duplicate timestamp the
// incoming bar wins; among duplicates inside incoming the last one wins. The result
// is strictly ascending and existing is left untouched. added counts the timestamps
// that existing did not already hold.
func Merge(existing models.Series, incoming []models.Bar) (models.Series, int) {
	if len(incoming) == 0 {
		return existing, 0
	}

	byTime := make(map[time.Time]models.Bar, len(existing.Bars)+len(incoming))
	for _, b := range existing.Bars {
		byTime[b.Time.UTC()] = b
	}
	known := len(byTime)
	for _, b := range incoming {
		byTime[b.Time.UTC()] = b
	}

	bars := make([]models.Bar, 0, len(byTime))
	for t, b := range byTime {
		b.Time = t
		bars = append(bars, b)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Time.Before(bars[j].Time) })

	merged := models.Series{Symbol: existing.Symbol, Bars: bars}
	return merged, len(bars) - known
}

// Equal reports whether two series hold the same bars in the same order.
func Equal(a, b models.Series) bool {
	if len(a.Bars) != len(b.Bars) {
		return false
	}
	for i := range a.Bars {
		x, y := a.Bars[i], b.Bars[i]
		if !x.Time.Equal(y.Time) || x.Open != y.Open || x.High != y.High ||
			x.Low != y.Low || x.Close != y.Close || x.Volume != y.Volume {
			return false
		}
	}
	return true
}
