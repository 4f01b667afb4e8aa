package repository

import (
	"errors"
	"strings"
	"testing"
	"time"

	"MacoPull/internal/domain/models"
	domrepo "MacoPull/internal/domain/repository"
	"MacoPull/internal/services/merge"
)

func sampleSeries() models.Series {
	return models.Series{Symbol: "AAPL", Bars: []models.Bar{
		{Time: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), Open: 179.55, High: 180.53, Low: 177.38, Close: 179.66, Volume: 73488000},
		{Time: time.Date(2024, 3, 4, 0, 0, 0, 0, time.UTC), Open: 176.15, High: 176.9, Low: 173.79, Close: 175.1, Volume: 81510100},
	}}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	in := sampleSeries()
	data, err := EncodeSeries(in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(string(data), "time,o,h,l,c,v\n") {
		t.Fatalf("unexpected header: %q", data)
	}
	out, _, err := DecodeSeries("AAPL", data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Bars) != len(in.Bars) {
		t.Fatalf("len=%d want %d", len(out.Bars), len(in.Bars))
	}
	for i := range in.Bars {
		if out.Bars[i] != in.Bars[i] {
			t.Fatalf("bar %d: got %+v want %+v", i, out.Bars[i], in.Bars[i])
		}
	}
	again, _ := EncodeSeries(out)
	if string(again) != string(data) {
		t.Fatalf("re-encoding changed bytes")
	}
}

func TestDecodeLegacyTimestamps(t *testing.T) {
	data := "time,o,h,l,c,v\n" +
		"2023-01-03 00:00:00+00:00,1,2,0.5,1.5,10\n" +
		"2023-01-04 00:00:00,1,2,0.5,1.6,10\n" +
		"2023-01-05,1,2,0.5,1.7,10\n"
	s, _, err := DecodeSeries("X", []byte(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(s.Bars) != 3 {
		t.Fatalf("len=%d", len(s.Bars))
	}
	if !s.Bars[0].Time.Equal(time.Date(2023, 1, 3, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected time %s", s.Bars[0].Time)
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := []string{
		"time,o,h,l,c\n2024-01-01,1,1,1,1\n",
		"time,o,h,l,c,v\nnot-a-date,1,1,1,1,1\n",
		"time,o,h,l,c,v\n2024-01-01,1,1,x,1,1\n",
	}
	for _, c := range cases {
		if _, _, err := DecodeSeries("X", []byte(c)); !errors.Is(err, domrepo.ErrMalformed) {
			t.Fatalf("%q: expected ErrMalformed, got %v", c, err)
		}
	}
}

func TestDecodeSkipsRowsWithoutUsablePrice(t *testing.T) {
	data := "time,o,h,l,c,v\n" +
		"2024-01-01,1,1,1,1,10\n" +
		"2024-01-02,1,1,1,,10\n" +
		"2024-01-03,1,1,1,NaN,10\n" +
		"2024-01-04,1,1,1,nan,10\n" +
		"2024-01-05,1,1,1,2,10\n"
	s, stats, err := DecodeSeries("X", []byte(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Skipped != 3 {
		t.Fatalf("skipped=%d want 3", stats.Skipped)
	}
	if s.Len() != 2 || s.Bars[1].Close != 2 {
		t.Fatalf("unexpected bars: %+v", s.Bars)
	}
}

func TestDecodeCollapsesSameDayRows(t *testing.T) {
	data := "time,o,h,l,c,v\n" +
		"2024-01-01 05:00:00+00:00,1,1,1,1.5,10\n" +
		"2023-12-29,1,1,1,0.5,10\n" +
		"2024-01-01 00:00:00+00:00,1,1,1,1,10\n"
	s, stats, err := DecodeSeries("X", []byte(data))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if stats.Duplicates != 1 || s.Len() != 2 {
		t.Fatalf("duplicates=%d len=%d, want 1 and 2", stats.Duplicates, s.Len())
	}
	if !s.Bars[0].Time.Before(s.Bars[1].Time) {
		t.Fatalf("decoded series not ascending: %+v", s.Bars)
	}
	if s.Bars[1].Close != 1 {
		t.Fatalf("last row of the day should win, got close %v", s.Bars[1].Close)
	}

	merged, added := merge.Merge(s, []models.Bar{{Time: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), Close: 3}})
	if added != 1 || merged.Len() != 3 {
		t.Fatalf("added=%d len=%d, want 1 and 3", added, merged.Len())
	}
}

func TestDecodeEmpty(t *testing.T) {
	s, _, err := DecodeSeries("X", nil)
	if err != nil || !s.Empty() {
		t.Fatalf("empty data should decode to empty series, err=%v", err)
	}
}
