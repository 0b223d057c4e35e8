package analytics

import (
	"time"

	"github.com/aristath/dca-lab/internal/domain"
)

// ReturnSeries holds dated per-period returns. Observations start at the
// second equity point; the first bar only seeds the previous value.
type ReturnSeries struct {
	Dates   []time.Time
	Returns []float64
}

func dateKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// FlowAdjustedReturns computes per-period returns stripped of external
// cashflows:
//
//	r_t = (V_t - flow_{t-1}) / V_{t-1} - 1
//
// where flow_{t-1} is the external flow recorded at the previous bar's date.
// Deposits land in the broker between two equity samples, so the flow dated
// at the previous bar belongs to the period ending at the current bar.
// A zero previous value records a 0.0 observation for that step.
func FlowAdjustedReturns(curve []domain.EquityPoint, flows []domain.CashFlow) ReturnSeries {
	flowByDate := make(map[string]float64, len(flows))
	for _, f := range flows {
		flowByDate[dateKey(f.Date)] += f.Amount
	}

	var series ReturnSeries
	var prevValue float64
	var prevDate time.Time
	first := true

	for _, pt := range curve {
		if first {
			prevValue = pt.Value
			prevDate = pt.Date
			first = false
			continue
		}

		flow := flowByDate[dateKey(prevDate)]
		ret := 0.0
		if prevValue != 0 {
			ret = (pt.Value-flow)/prevValue - 1.0
		}

		series.Dates = append(series.Dates, pt.Date)
		series.Returns = append(series.Returns, ret)
		prevValue = pt.Value
		prevDate = pt.Date
	}
	return series
}

// Yearly compounds the series into calendar-year returns
func (s ReturnSeries) Yearly() map[int]float64 {
	if len(s.Returns) == 0 {
		return nil
	}

	byYear := make(map[int]float64)
	for i, d := range s.Dates {
		yr := d.Year()
		if _, ok := byYear[yr]; !ok {
			byYear[yr] = 1.0
		}
		byYear[yr] *= 1.0 + s.Returns[i]
	}
	for yr := range byYear {
		byYear[yr] -= 1.0
	}
	return byYear
}
