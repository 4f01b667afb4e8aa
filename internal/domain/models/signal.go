package models

import "github.com/moznion/go-optional"

// SignalState is the per-bar crossover classification.
type SignalState string

const (
	SignalBuy  SignalState = "Buy"
	SignalSell SignalState = "Sell"
	SignalHold SignalState = "Hold"
)

// Direction values; the coarse long/flat view of the latest averages.
const (
	DirectionLong = "long"
	DirectionFlat = "flat"
)

// SignalRecord is a bar annotated with its trailing averages and crossover state.
// SMAShort and SMALong are None until enough history exists.
type SignalRecord struct {
	Bar
	SMAShort optional.Option[float64]
	SMALong  optional.Option[float64]
	State    SignalState
}
