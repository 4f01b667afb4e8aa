package repository

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"MacoPull/internal/domain/models"
	domrepo "MacoPull/internal/domain/repository"
	"MacoPull/internal/service/provider"
	"MacoPull/internal/services/merge"
	"MacoPull/pkg/util"
)

var csvHeader = []string{"time", "o", "h", "l", "c", "v"}

// errSkipRow marks a row with a missing or invalid price. It is dropped, not fatal.
var errSkipRow = errors.New("skip row")

// DecodeStats counts rows that did not survive decoding.
type DecodeStats struct {
	Skipped    int // missing, NaN, Inf or negative price
	Duplicates int // collapsed onto an earlier row of the same UTC day
}

// EncodeSeries renders bars as CSV with a header row. Floats use the shortest
// representation that parses back to the same value.
func EncodeSeries(s models.Series) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, b := range s.Bars {
		rec := []string{
			util.FormatBarTime(b.Time),
			formatFloat(b.Open),
			formatFloat(b.High),
			formatFloat(b.Low),
			formatFloat(b.Close),
			formatFloat(b.Volume),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("encode series: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeSeries parses a stored CSV object. Columns are located by header name so
// older objects with extra or reordered columns still load. Rows without a usable
// price are dropped, and rows that land on the same UTC day collapse to the last
// one, so the result is strictly ascending whatever the object held.
func DecodeSeries(symbol string, data []byte) (models.Series, DecodeStats, error) {
	var stats DecodeStats
	s := models.Series{Symbol: symbol}
	if len(bytes.TrimSpace(data)) == 0 {
		return s, stats, nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		return s, stats, fmt.Errorf("decode series header: %w: %v", domrepo.ErrMalformed, err)
	}
	idx, err := columnIndex(header)
	if err != nil {
		return s, stats, err
	}

	var bars []models.Bar
	line := 1
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return s, stats, fmt.Errorf("decode series line %d: %w: %v", line, domrepo.ErrMalformed, err)
		}
		b, err := parseRow(rec, idx)
		if errors.Is(err, errSkipRow) {
			stats.Skipped++
			continue
		}
		if err != nil {
			return s, stats, fmt.Errorf("decode series line %d: %w", line, err)
		}
		bars = append(bars, b)
	}

	s, _ = merge.Merge(s, bars)
	stats.Duplicates = len(bars) - s.Len()
	return s, stats, nil
}

func columnIndex(header []string) (map[string]int, error) {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range csvHeader {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("decode series: missing column %q: %w", col, domrepo.ErrMalformed)
		}
	}
	return idx, nil
}

func parseRow(rec []string, idx map[string]int) (models.Bar, error) {
	field := func(col string) (string, error) {
		i := idx[col]
		if i >= len(rec) {
			return "", fmt.Errorf("short row: %w", domrepo.ErrMalformed)
		}
		return strings.TrimSpace(rec[i]), nil
	}

	ts, err := field("time")
	if err != nil {
		return models.Bar{}, err
	}
	t, ok := util.ParseBarTime(ts)
	if !ok {
		return models.Bar{}, fmt.Errorf("bad time %q: %w", ts, domrepo.ErrMalformed)
	}

	b := models.Bar{Time: t}
	targets := []struct {
		col string
		dst *float64
	}{
		{"o", &b.Open}, {"h", &b.High}, {"l", &b.Low}, {"c", &b.Close}, {"v", &b.Volume},
	}
	for _, tg := range targets {
		raw, err := field(tg.col)
		if err != nil {
			return models.Bar{}, err
		}
		if raw == "" {
			return models.Bar{}, errSkipRow
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return models.Bar{}, fmt.Errorf("bad %s %q: %w", tg.col, raw, domrepo.ErrMalformed)
		}
		*tg.dst = v
	}
	if !provider.ValidBar(b.Open, b.High, b.Low, b.Close, b.Volume) {
		return models.Bar{}, errSkipRow
	}
	return b, nil
}

func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}
