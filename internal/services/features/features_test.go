package features

import (
	"math"
	"testing"
)

func TestTrailingSMA(t *testing.T) {
	got := TrailingSMA([]float64{1, 2, 3, 4, 5}, 3)
	if got[0].IsSome() || got[1].IsSome() {
		t.Fatalf("first window-1 values must be undefined")
	}
	want := []float64{2, 3, 4}
	for i, w := range want {
		v, err := got[i+2].Take()
		if err != nil {
			t.Fatalf("index %d undefined", i+2)
		}
		if math.Abs(v-w) > 1e-12 {
			t.Fatalf("index %d: got %v want %v", i+2, v, w)
		}
	}
}

func TestTrailingSMARecoversAfterNaN(t *testing.T) {
	got := TrailingSMA([]float64{1, math.NaN(), 3, 4, 5, 6, 7, 8}, 2)
	for _, i := range []int{0, 1, 2} {
		if got[i].IsSome() {
			t.Fatalf("index %d should be undefined", i)
		}
	}
	want := map[int]float64{3: 3.5, 7: 7.5}
	for i, w := range want {
		v, err := got[i].Take()
		if err != nil {
			t.Fatalf("index %d undefined after the NaN left the window", i)
		}
		if math.Abs(v-w) > 1e-12 {
			t.Fatalf("index %d: got %v want %v", i, v, w)
		}
	}
}

func TestTrailingSMAWindowLongerThanInput(t *testing.T) {
	for i, v := range TrailingSMA([]float64{1, 2}, 5) {
		if v.IsSome() {
			t.Fatalf("index %d should be undefined", i)
		}
	}
}

func TestFiniteTail(t *testing.T) {
	got := FiniteTail([]float64{1, math.NaN(), 3, 4, math.Inf(1), 6}, 3)
	want := []float64{3, 4, 6}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestLinearFitExactLine(t *testing.T) {
	slope, intercept, ok := LinearFit([]float64{10, 12, 14, 16})
	if !ok {
		t.Fatalf("expected ok")
	}
	if math.Abs(slope-2) > 1e-12 || math.Abs(intercept-10) > 1e-12 {
		t.Fatalf("got slope=%v intercept=%v", slope, intercept)
	}
	if _, _, ok := LinearFit([]float64{1}); ok {
		t.Fatalf("single point must not fit")
	}
}
