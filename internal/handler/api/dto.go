package api

import (
	"time"

	"MacoPull/internal/domain/models"
	"MacoPull/internal/usecase"
)

type seriesPoint struct {
	Time     time.Time          `json:"time"`
	Open     float64            `json:"open"`
	High     float64            `json:"high"`
	Low      float64            `json:"low"`
	Close    float64            `json:"close"`
	Volume   float64            `json:"volume"`
	SMAShort *float64           `json:"sma_short"`
	SMALong  *float64           `json:"sma_long"`
	Signal   models.SignalState `json:"signal"`
}

type seriesResponse struct {
	Symbol    string        `json:"symbol"`
	Total     int           `json:"total"`
	Count     int           `json:"count"`
	NextClose *float64      `json:"next_close"`
	Points    []seriesPoint `json:"points"`
}

type warehouseRow struct {
	Symbol     string    `json:"symbol"`
	TS         time.Time `json:"ts"`
	Close      float64   `json:"close"`
	SMAS       *float64  `json:"sma_s"`
	SMAL       *float64  `json:"sma_l"`
	BuySignal  bool      `json:"buy_signal"`
	SellSignal bool      `json:"sell_signal"`
	Direction  string    `json:"direction"`
	IngestedAt time.Time `json:"ingested_at"`
}

func toSeriesResponse(r *usecase.GetSeriesResult) seriesResponse {
	out := seriesResponse{
		Symbol:    r.Symbol,
		Total:     r.Total,
		Count:     r.Count,
		NextClose: r.NextClose,
		Points:    make([]seriesPoint, 0, len(r.Records)),
	}
	for _, rec := range r.Records {
		p := seriesPoint{
			Time:   rec.Time,
			Open:   rec.Open,
			High:   rec.High,
			Low:    rec.Low,
			Close:  rec.Close,
			Volume: rec.Volume,
			Signal: rec.State,
		}
		if v, err := rec.SMAShort.Take(); err == nil {
			p.SMAShort = &v
		}
		if v, err := rec.SMALong.Take(); err == nil {
			p.SMALong = &v
		}
		out.Points = append(out.Points, p)
	}
	return out
}

func toWarehouseRows(rows []models.WarehouseRow) []warehouseRow {
	out := make([]warehouseRow, 0, len(rows))
	for _, r := range rows {
		out = append(out, warehouseRow(r))
	}
	return out
}
