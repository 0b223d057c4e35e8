package analytics

import (
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/dca-lab/internal/domain"
	"github.com/aristath/dca-lab/pkg/logger"
)

func testAnalyzer(t *testing.T) *Analyzer {
	t.Helper()
	a, err := New(Config{PeriodsPerYear: 252, RiskFreeRate: 0.0},
		logger.New(logger.Config{Level: "error"}))
	require.NoError(t, err)
	return a
}

func TestNewRejectsBadConfig(t *testing.T) {
	_, err := New(Config{PeriodsPerYear: 0}, logger.New(logger.Config{Level: "error"}))
	assert.Error(t, err)
}

func TestSummarizeSimpleRun(t *testing.T) {
	a := testAnalyzer(t)
	start := day(2020, 1, 1)
	end := day(2021, 1, 1) // 366 days across the 2020 leap year

	curve := []domain.EquityPoint{
		{Date: start, Value: 1000},
		{Date: end, Value: 1100},
	}

	s := a.Summarize(1000, curve, nil)
	require.NotNil(t, s)

	assert.Equal(t, 2, s.Periods)
	assert.Equal(t, 1000.0, s.StartValue)
	assert.Equal(t, 1100.0, s.FinalValue)
	assert.Equal(t, 0.0, s.TotalDeposits)
	assert.Equal(t, 1000.0, s.TotalContributed)

	require.NotNil(t, s.CumulativeReturn)
	assert.InDelta(t, 0.10, *s.CumulativeReturn, 1e-12)

	// 10% over 366 days annualizes to (1.1)^(365.25/366) - 1 on both the
	// time-weighted and money-weighted paths
	expected := math.Pow(1.1, 365.25/366.0) - 1.0
	require.NotNil(t, s.CAGR)
	assert.InDelta(t, expected, *s.CAGR, 1e-9)
	require.NotNil(t, s.XIRR)
	assert.InDelta(t, expected, *s.XIRR, 1e-6)

	// a single return observation has zero dispersion and no Sharpe
	require.NotNil(t, s.AnnualizedVolatility)
	assert.InDelta(t, 0.0, *s.AnnualizedVolatility, 1e-12)
	assert.Nil(t, s.SharpeRatio)

	require.NotNil(t, s.MaxDrawdown)
	assert.Equal(t, 0.0, s.MaxDrawdown.Drawdown)

	require.Contains(t, s.YearlyReturns, 2021)
	assert.InDelta(t, 0.10, s.YearlyReturns[2021], 1e-12)
}

func TestSummarizeWithDeposits(t *testing.T) {
	a := testAnalyzer(t)

	// 10% growth each period; the 100 deposit recorded on Jan 11 shows up in
	// the Jan 21 sample and must be stripped from that period's return
	curve := []domain.EquityPoint{
		{Date: day(2024, 1, 1), Value: 1000},
		{Date: day(2024, 1, 11), Value: 1100},
		{Date: day(2024, 1, 21), Value: 1310}, // 1100*1.1 + 100
	}
	flows := []domain.CashFlow{{Date: day(2024, 1, 11), Amount: 100}}

	s := a.Summarize(1000, curve, flows)
	require.NotNil(t, s)

	assert.Equal(t, 100.0, s.TotalDeposits)
	assert.Equal(t, 1100.0, s.TotalContributed)

	require.NotNil(t, s.CumulativeReturn)
	assert.InDelta(t, 0.21, *s.CumulativeReturn, 1e-12)

	require.NotNil(t, s.XIRR)
	assert.Greater(t, *s.XIRR, 0.0)
}

func TestSummarizeFlatCurve(t *testing.T) {
	a := testAnalyzer(t)
	curve := []domain.EquityPoint{
		{Date: day(2024, 1, 1), Value: 1000},
		{Date: day(2024, 1, 2), Value: 1000},
		{Date: day(2024, 1, 3), Value: 1000},
	}

	s := a.Summarize(1000, curve, nil)
	require.NotNil(t, s)

	require.NotNil(t, s.CumulativeReturn)
	assert.InDelta(t, 0.0, *s.CumulativeReturn, 1e-12)
	require.NotNil(t, s.AnnualizedVolatility)
	assert.InDelta(t, 0.0, *s.AnnualizedVolatility, 1e-12)
	assert.Nil(t, s.SharpeRatio, "zero dispersion leaves Sharpe indeterminate")
	require.NotNil(t, s.XIRR)
	assert.InDelta(t, 0.0, *s.XIRR, 1e-9)
}

func TestSummarizeEmptyCurve(t *testing.T) {
	a := testAnalyzer(t)
	assert.Nil(t, a.Summarize(1000, nil, nil))
}

func TestFormatReportOmitsAbsentMetrics(t *testing.T) {
	bare := &Summary{
		StartDate:  day(2024, 1, 1),
		EndDate:    day(2024, 1, 2),
		FinalValue: 1000,
		StartValue: 1000,
	}

	// nil positions: footer omitted entirely
	out := FormatReport(bare, nil)
	assert.Contains(t, out, "Final Portfolio Value: 1000.00")
	assert.NotContains(t, out, "positions")
	assert.NotContains(t, out, "Sharpe")
	assert.NotContains(t, out, "XIRR")
	assert.NotContains(t, out, "CAGR")
	assert.NotContains(t, out, "Max Drawdown")

	// empty non-nil positions: the account is known to be flat
	out = FormatReport(bare, []PositionLine{})
	assert.Contains(t, out, "No open positions remaining.")
}

func TestFormatReportFullSummary(t *testing.T) {
	a := testAnalyzer(t)
	curve := []domain.EquityPoint{
		{Date: day(2024, 1, 1), Value: 1000},
		{Date: day(2024, 1, 2), Value: 1100},
		{Date: day(2024, 1, 3), Value: 990},
		{Date: day(2024, 1, 4), Value: 1150},
	}

	s := a.Summarize(1000, curve, nil)
	require.NotNil(t, s)

	out := FormatReport(s, []PositionLine{
		{Symbol: "QQQ", Quantity: 2.5, LastPrice: 460, MarketValue: 1150},
	})
	assert.Contains(t, out, "Money-weighted Return (XIRR)")
	assert.Contains(t, out, "Max Drawdown: 10.00%")
	assert.Contains(t, out, "Max Drawdown Period: 2024-01-02 -> 2024-01-04 (trough=2024-01-03)")
	assert.Contains(t, out, "Per-year returns:")
	assert.Contains(t, out, "QQQ: size=2.5000")

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	assert.Greater(t, len(lines), 5)
}
