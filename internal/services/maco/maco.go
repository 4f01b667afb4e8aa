// Package maco derives moving-average crossover signals from a bar series.
package maco

import (
	"github.com/moznion/go-optional"

	"MacoPull/internal/domain/models"
	"MacoPull/internal/services/features"
)

const (
	DefaultShort = 20
	DefaultLong  = 50
)

// Engine computes short/long trailing averages and their crossovers.
type Engine struct {
	Short int
	Long  int
}

// New returns an Engine, falling back to the defaults for non-positive windows.
func New(short, long int) Engine {
	if short <= 0 {
		short = DefaultShort
	}
	if long <= 0 {
		long = DefaultLong
	}
	return Engine{Short: short, Long: long}
}

// Compute annotates every bar of s with its averages and crossover state.
func (e Engine) Compute(s models.Series) []models.SignalRecord {
	closes := s.Closes()
	short := features.TrailingSMA(closes, e.Short)
	long := features.TrailingSMA(closes, e.Long)
	states := Classify(short, long)

	out := make([]models.SignalRecord, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = models.SignalRecord{
			Bar:      b,
			SMAShort: short[i],
			SMALong:  long[i],
			State:    states[i],
		}
	}
	return out
}

// Classify turns aligned short/long averages into per-index crossover states.
// Buy when short-long moves from <=0 to >0, Sell from >=0 to <0, Hold otherwise
// or when any of the four averages involved is undefined.
func Classify(short, long []optional.Option[float64]) []models.SignalState {
	n := len(short)
	if len(long) < n {
		n = len(long)
	}
	out := make([]models.SignalState, n)
	for i := 0; i < n; i++ {
		out[i] = models.SignalHold
		if i == 0 {
			continue
		}
		prev, okPrev := spread(short[i-1], long[i-1])
		cur, okCur := spread(short[i], long[i])
		if !okPrev || !okCur {
			continue
		}
		switch {
		case prev <= 0 && cur > 0:
			out[i] = models.SignalBuy
		case prev >= 0 && cur < 0:
			out[i] = models.SignalSell
		}
	}
	return out
}

// Direction is long when the short average sits above the long one, flat otherwise.
func Direction(rec models.SignalRecord) string {
	if d, ok := spread(rec.SMAShort, rec.SMALong); ok && d > 0 {
		return models.DirectionLong
	}
	return models.DirectionFlat
}

func spread(short, long optional.Option[float64]) (float64, bool) {
	s, err := short.Take()
	if err != nil {
		return 0, false
	}
	l, err := long.Take()
	if err != nil {
		return 0, false
	}
	return s - l, true
}
