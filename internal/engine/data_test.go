package engine

import (
	"testing"
	"time"

	"github.com/aristath/dca-lab/internal/domain"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func flatCandles(dates []time.Time, price float64) []domain.Candle {
	out := make([]domain.Candle, len(dates))
	for i, d := range dates {
		out[i] = domain.Candle{Date: d, Open: price, High: price, Low: price, Close: price, AdjClose: price}
	}
	return out
}

func TestAlignDatesIntersection(t *testing.T) {
	d1 := day(2024, time.January, 2)
	d2 := day(2024, time.January, 3)
	d3 := day(2024, time.January, 4)
	d4 := day(2024, time.January, 5)

	series := map[string][]domain.Candle{
		"QQQ":  flatCandles([]time.Time{d1, d2, d3, d4}, 100),
		"NVDA": flatCandles([]time.Time{d1, d3, d4}, 50),
	}

	dates := alignDates(series)
	if len(dates) != 3 {
		t.Fatalf("aligned %d dates, want 3", len(dates))
	}
	want := []time.Time{d1, d3, d4}
	for i, d := range dates {
		if !d.Equal(want[i]) {
			t.Errorf("dates[%d] = %v, want %v", i, d, want[i])
		}
	}
}

func TestAlignDatesSingleSymbol(t *testing.T) {
	d1 := day(2024, time.January, 2)
	d2 := day(2024, time.January, 3)
	series := map[string][]domain.Candle{
		"QQQ": flatCandles([]time.Time{d2, d1}, 100),
	}
	dates := alignDates(series)
	if len(dates) != 2 || !dates[0].Equal(d1) {
		t.Errorf("expected sorted dates [d1 d2], got %v", dates)
	}
}

func TestResampleWeekly(t *testing.T) {
	vol := func(v int64) *int64 { return &v }

	// Mon Jan 8 .. Wed Jan 10 2024 are ISO week 2, Mon Jan 15 starts week 3
	candles := []domain.Candle{
		{Date: day(2024, time.January, 8), Open: 10, High: 12, Low: 9, Close: 11, AdjClose: 11, Volume: vol(100)},
		{Date: day(2024, time.January, 9), Open: 11, High: 15, Low: 10, Close: 14, AdjClose: 14, Volume: vol(200)},
		{Date: day(2024, time.January, 10), Open: 14, High: 14, Low: 8, Close: 13, AdjClose: 13, Volume: vol(50)},
		{Date: day(2024, time.January, 15), Open: 13, High: 13, Low: 12, Close: 12, AdjClose: 12, Volume: vol(70)},
	}

	weekly := ResampleWeekly(candles)
	if len(weekly) != 2 {
		t.Fatalf("resampled to %d bars, want 2", len(weekly))
	}

	w := weekly[0]
	if w.Open != 10 || w.High != 15 || w.Low != 8 || w.Close != 13 {
		t.Errorf("week 1 OHLC = %v/%v/%v/%v, want 10/15/8/13", w.Open, w.High, w.Low, w.Close)
	}
	if !w.Date.Equal(day(2024, time.January, 10)) {
		t.Errorf("week 1 dated %v, want the last trading day", w.Date)
	}
	if w.Volume == nil || *w.Volume != 350 {
		t.Errorf("week 1 volume = %v, want 350", w.Volume)
	}

	if weekly[1].Close != 12 || weekly[1].Volume == nil || *weekly[1].Volume != 70 {
		t.Errorf("week 2 = %+v, want close 12 volume 70", weekly[1])
	}
}

func TestResampleWeeklyNoVolume(t *testing.T) {
	candles := []domain.Candle{
		{Date: day(2024, time.January, 8), Open: 10, High: 10, Low: 10, Close: 10, AdjClose: 10},
		{Date: day(2024, time.January, 9), Open: 10, High: 11, Low: 10, Close: 11, AdjClose: 11},
	}
	weekly := ResampleWeekly(candles)
	if len(weekly) != 1 {
		t.Fatalf("resampled to %d bars, want 1", len(weekly))
	}
	if weekly[0].Volume != nil {
		t.Errorf("volume should stay nil when no daily bar carries one, got %v", *weekly[0].Volume)
	}
}

func TestResampleWeeklyEmpty(t *testing.T) {
	if out := ResampleWeekly(nil); out != nil {
		t.Errorf("expected nil for empty input, got %v", out)
	}
}
