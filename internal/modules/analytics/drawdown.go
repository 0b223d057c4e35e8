package analytics

import (
	"sort"
	"time"

	"github.com/aristath/dca-lab/internal/domain"
)

// DrawdownEpisode describes the deepest peak-to-trough decline of an equity
// curve. Drawdown is a positive fraction of the peak value lost.
// RecoveryDate is nil while the curve has not regained the episode's peak.
type DrawdownEpisode struct {
	Drawdown     float64    `json:"drawdown"`
	PeakDate     time.Time  `json:"peak_date"`
	PeakValue    float64    `json:"peak_value"`
	TroughDate   time.Time  `json:"trough_date"`
	TroughValue  float64    `json:"trough_value"`
	RecoveryDate *time.Time `json:"recovery_date,omitempty"`
}

// MaxDrawdownEpisode scans the equity curve once, tracking the running peak.
// A curve that never declines yields a zero-magnitude episode anchored at the
// first point. An empty curve yields nil.
func MaxDrawdownEpisode(curve []domain.EquityPoint) *DrawdownEpisode {
	if len(curve) == 0 {
		return nil
	}

	pts := make([]domain.EquityPoint, len(curve))
	copy(pts, curve)
	sort.Slice(pts, func(i, j int) bool { return pts[i].Date.Before(pts[j].Date) })

	peakValue := pts[0].Value
	peakDate := pts[0].Date
	ep := &DrawdownEpisode{
		PeakDate:    peakDate,
		PeakValue:   peakValue,
		TroughDate:  peakDate,
		TroughValue: peakValue,
	}

	maxdd := 0.0
	for _, pt := range pts {
		if pt.Value >= peakValue {
			peakValue = pt.Value
			peakDate = pt.Date
			continue
		}

		dd := pt.Value/peakValue - 1.0
		if dd < maxdd {
			maxdd = dd
			ep.PeakDate = peakDate
			ep.PeakValue = peakValue
			ep.TroughDate = pt.Date
			ep.TroughValue = pt.Value
		}
	}
	ep.Drawdown = -maxdd

	if maxdd < 0 {
		for _, pt := range pts {
			if pt.Date.Before(ep.TroughDate) {
				continue
			}
			if pt.Value >= ep.PeakValue {
				d := pt.Date
				ep.RecoveryDate = &d
				break
			}
		}
	}
	return ep
}
