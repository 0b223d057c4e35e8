package analytics

import (
	"fmt"
	"sort"
	"strings"
)

// PositionLine is one open position for the report footer
type PositionLine struct {
	Symbol      string
	Quantity    float64
	LastPrice   float64
	MarketValue float64
}

// FormatReport renders the plain-text run summary. Absent metrics are
// omitted rather than printed as zeros.
func FormatReport(s *Summary, positions []PositionLine) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Final Portfolio Value: %.2f\n", s.FinalValue)
	if s.TotalDeposits != 0 {
		fmt.Fprintf(&b, "Total Contributed (start + deposits): %.2f (start=%.2f, deposits=%.2f)\n",
			s.TotalContributed, s.StartValue, s.TotalDeposits)
	}

	years := s.Years()
	if s.XIRR != nil {
		fmt.Fprintf(&b, "Money-weighted Return (XIRR): %.2f%% over %.2f years\n", *s.XIRR*100.0, years)
	}
	if s.CAGR != nil {
		fmt.Fprintf(&b, "Annualized Return (CAGR): %.2f%% over %.2f years\n", *s.CAGR*100.0, years)
	}
	if s.CumulativeReturn != nil {
		fmt.Fprintf(&b, "Cumulative Return: %.2f%%\n", *s.CumulativeReturn*100.0)
	}

	if len(s.YearlyReturns) > 0 {
		b.WriteString("Per-year returns:\n")
		yrs := make([]int, 0, len(s.YearlyReturns))
		for yr := range s.YearlyReturns {
			yrs = append(yrs, yr)
		}
		sort.Ints(yrs)
		for _, yr := range yrs {
			fmt.Fprintf(&b, "  %d: %.2f%%\n", yr, s.YearlyReturns[yr]*100.0)
		}
	}

	if s.AnnualizedVolatility != nil {
		fmt.Fprintf(&b, "Annualized Volatility: %.2f%%\n", *s.AnnualizedVolatility*100.0)
	}
	if s.SharpeRatio != nil {
		fmt.Fprintf(&b, "Sharpe Ratio: %.2f\n", *s.SharpeRatio)
	}

	if dd := s.MaxDrawdown; dd != nil {
		fmt.Fprintf(&b, "Max Drawdown: %.2f%%\n", dd.Drawdown*100.0)
		if dd.Drawdown > 0 {
			peak := dd.PeakDate.Format("2006-01-02")
			trough := dd.TroughDate.Format("2006-01-02")
			if dd.RecoveryDate != nil {
				fmt.Fprintf(&b, "Max Drawdown Period: %s -> %s (trough=%s)\n",
					peak, dd.RecoveryDate.Format("2006-01-02"), trough)
			} else {
				fmt.Fprintf(&b, "Max Drawdown Period: %s -> (not recovered) (trough=%s)\n", peak, trough)
			}
		}
	}

	// nil means positions were not captured; only an empty non-nil slice
	// asserts the account is flat
	if positions != nil {
		if len(positions) > 0 {
			sorted := make([]PositionLine, len(positions))
			copy(sorted, positions)
			sort.Slice(sorted, func(i, j int) bool { return sorted[i].Symbol < sorted[j].Symbol })

			b.WriteString("Open positions:\n")
			for _, p := range sorted {
				fmt.Fprintf(&b, "  %s: size=%.4f last_price=%.2f value=%.2f\n",
					p.Symbol, p.Quantity, p.LastPrice, p.MarketValue)
			}
		} else {
			b.WriteString("No open positions remaining.\n")
		}
	}

	return b.String()
}
