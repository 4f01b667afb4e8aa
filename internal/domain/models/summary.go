package models

import "time"

// Summary is the persisted per-symbol snapshot read by the dashboard.
type Summary struct {
	Symbol    string      `json:"symbol"`
	LastClose float64     `json:"last_close"`
	NextClose *float64    `json:"next_close"`
	Signal    SignalState `json:"signal"`
	Direction string      `json:"direction"`
	SMAShort  *float64    `json:"sma_short"`
	SMALong   *float64    `json:"sma_long"`
	LastTime  time.Time   `json:"last_time"`
	AsOf      time.Time   `json:"asof"`
	Bars      int         `json:"bars"`
}

// WarehouseRow is one append-only analytical row per symbol per run.
type WarehouseRow struct {
	Symbol     string
	TS         time.Time
	Close      float64
	SMAS       *float64
	SMAL       *float64
	BuySignal  bool
	SellSignal bool
	Direction  string // crossover state of the last bar: Buy, Sell or Hold
	IngestedAt time.Time
}

// SignalEvent is the message published for downstream consumers after a symbol succeeds.
type SignalEvent struct {
	RunID   string  `json:"run_id"`
	Added   int     `json:"added"`
	Summary Summary `json:"summary"`
}
