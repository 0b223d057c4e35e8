package engine

import (
	"sort"
	"time"

	"github.com/aristath/dca-lab/internal/domain"
)

// alignDates returns the sorted trading dates present in every symbol's
// series. Bars missing for any portfolio asset are dropped so every
// strategy decision sees a full price map.
func alignDates(series map[string][]domain.Candle) []time.Time {
	counts := make(map[string]int)
	repr := make(map[string]time.Time)

	for _, candles := range series {
		seen := make(map[string]bool, len(candles))
		for _, c := range candles {
			key := c.Date.Format("2006-01-02")
			if seen[key] {
				continue
			}
			seen[key] = true
			counts[key]++
			repr[key] = c.Date
		}
	}

	dates := make([]time.Time, 0, len(counts))
	for key, n := range counts {
		if n == len(series) {
			dates = append(dates, repr[key])
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// closeIndex maps date key -> close price for one symbol
func closeIndex(candles []domain.Candle) map[string]float64 {
	idx := make(map[string]float64, len(candles))
	for _, c := range candles {
		idx[c.Date.Format("2006-01-02")] = c.Close
	}
	return idx
}

// ResampleWeekly aggregates daily candles into one bar per ISO week:
// first open, max high, min low, last close, summed volume, dated at the
// week's last trading day.
func ResampleWeekly(candles []domain.Candle) []domain.Candle {
	if len(candles) == 0 {
		return nil
	}

	sorted := make([]domain.Candle, len(candles))
	copy(sorted, candles)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date.Before(sorted[j].Date) })

	var out []domain.Candle
	var cur domain.Candle
	curYear, curWeek := -1, -1
	var volume int64
	haveVolume := false

	flush := func() {
		if curYear < 0 {
			return
		}
		if haveVolume {
			v := volume
			cur.Volume = &v
		} else {
			cur.Volume = nil
		}
		out = append(out, cur)
	}

	for _, c := range sorted {
		y, w := c.Date.ISOWeek()
		if y != curYear || w != curWeek {
			flush()
			cur = c
			curYear, curWeek = y, w
			volume = 0
			haveVolume = false
		} else {
			if c.High > cur.High {
				cur.High = c.High
			}
			if c.Low < cur.Low {
				cur.Low = c.Low
			}
			cur.Close = c.Close
			cur.AdjClose = c.AdjClose
			cur.Date = c.Date
		}
		if c.Volume != nil {
			volume += *c.Volume
			haveVolume = true
		}
	}
	flush()
	return out
}

// resampleAll applies the weekly resample to every symbol's series
func resampleAll(series map[string][]domain.Candle) map[string][]domain.Candle {
	out := make(map[string][]domain.Candle, len(series))
	for sym, candles := range series {
		out[sym] = ResampleWeekly(candles)
	}
	return out
}
