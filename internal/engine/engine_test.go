package engine

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/dca-lab/internal/domain"
	"github.com/aristath/dca-lab/pkg/logger"
)

func TestRunConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  RunConfig
		ok   bool
	}{
		{"valid daily", RunConfig{StartCash: 1000, Commission: 0.001, Frequency: domain.FrequencyDaily}, true},
		{"valid default frequency", RunConfig{StartCash: 1000}, true},
		{"zero cash", RunConfig{StartCash: 0}, false},
		{"negative commission", RunConfig{StartCash: 1000, Commission: -0.1}, false},
		{"commission of 100%", RunConfig{StartCash: 1000, Commission: 1.0}, false},
		{"unknown frequency", RunConfig{StartCash: 1000, Frequency: "hourly"}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestRunRejectsEmptySeries(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	eng, err := New(RunConfig{StartCash: 1000}, nil, log)
	require.NoError(t, err)

	portfolio := mustPortfolio(t, domain.PortfolioAsset{Symbol: "QQQ", Weight: 1.0})
	strat, err := NewFixedDCA(FixedDCAConfig{Portfolio: portfolio, Amount: 100, Interval: 1}, nil, log)
	require.NoError(t, err)

	_, err = eng.Run(context.Background(), map[string][]domain.Candle{}, strat)
	assert.Error(t, err)
}

func TestRunRejectsDisjointHistories(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	eng, err := New(RunConfig{StartCash: 1000}, nil, log)
	require.NoError(t, err)

	portfolio := mustPortfolio(t,
		domain.PortfolioAsset{Symbol: "QQQ", Weight: 0.5},
		domain.PortfolioAsset{Symbol: "NVDA", Weight: 0.5},
	)
	strat, err := NewFixedDCA(FixedDCAConfig{Portfolio: portfolio, Amount: 100, Interval: 1}, nil, log)
	require.NoError(t, err)

	series := map[string][]domain.Candle{
		"QQQ":  constSeries(seqDates(day(2024, time.January, 2), 5), 10),
		"NVDA": constSeries(seqDates(day(2024, time.March, 2), 5), 10),
	}
	_, err = eng.Run(context.Background(), series, strat)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no overlapping history")
}

func TestRunHonorsContextCancellation(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	eng, err := New(RunConfig{StartCash: 1000}, nil, log)
	require.NoError(t, err)

	portfolio := mustPortfolio(t, domain.PortfolioAsset{Symbol: "QQQ", Weight: 1.0})
	strat, err := NewFixedDCA(FixedDCAConfig{Portfolio: portfolio, Amount: 100, Interval: 1}, nil, log)
	require.NoError(t, err)

	series := map[string][]domain.Candle{"QQQ": constSeries(seqDates(day(2024, time.January, 2), 100), 10)}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = eng.Run(ctx, series, strat)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRunCommissionAccounting(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	portfolio := mustPortfolio(t, domain.PortfolioAsset{Symbol: "QQQ", Weight: 1.0})
	dates := seqDates(day(2024, time.January, 2), 3)
	series := map[string][]domain.Candle{"QQQ": constSeries(dates, 10)}

	strat, err := NewFixedDCA(FixedDCAConfig{Portfolio: portfolio, Amount: 100, Interval: 5}, nil, log)
	require.NoError(t, err)

	res := runStrategy(t, RunConfig{StartCash: 1000, Commission: 0.001}, series, strat)

	// one round: 100 notional plus 0.10 commission leaves the account
	require.Len(t, res.Orders, 1)
	assert.InDelta(t, 0.1, res.Orders[0].Commission, 1e-12)
	assert.InDelta(t, 899.9, res.FinalCash, 1e-9)
	assert.InDelta(t, 999.9, res.FinalValue, 1e-9)
}

func TestRunEquityCurveAndSnapshots(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	portfolio := mustPortfolio(t, domain.PortfolioAsset{Symbol: "QQQ", Weight: 1.0})
	dates := seqDates(day(2024, time.January, 2), 5)
	closes := []float64{10, 11, 12, 11, 13}
	series := map[string][]domain.Candle{"QQQ": candlesAt(dates, closes)}

	strat, err := NewFixedDCA(FixedDCAConfig{Portfolio: portfolio, Amount: 100, Interval: 10}, nil, log)
	require.NoError(t, err)

	res := runStrategy(t, RunConfig{StartCash: 1000}, series, strat)

	require.Len(t, res.EquityCurve, 5)
	require.Len(t, res.Snapshots, 5)

	// 10 shares bought at 10 on the first bar, then marked to each close
	want := []float64{1000, 1010, 1020, 1010, 1030}
	for i, pt := range res.EquityCurve {
		assert.True(t, pt.Date.Equal(dates[i]))
		assert.InDelta(t, want[i], pt.Value, 1e-9, "bar %d", i)
	}

	last := res.Snapshots[len(res.Snapshots)-1]
	assert.InDelta(t, res.FinalCash, last.Cash, 1e-12)
	assert.Equal(t, res.Positions, last.Positions)
	assert.InDelta(t, 10.0, res.Positions["QQQ"], 1e-9)
	assert.Equal(t, 13.0, res.FinalPrices["QQQ"])
}

func TestRunWeeklyFrequencyResamples(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	portfolio := mustPortfolio(t, domain.PortfolioAsset{Symbol: "QQQ", Weight: 1.0})

	// two full ISO weeks of weekdays
	var dates []time.Time
	for d := day(2024, time.January, 8); d.Before(day(2024, time.January, 20)); d = d.AddDate(0, 0, 1) {
		if wd := d.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		dates = append(dates, d)
	}
	require.Len(t, dates, 10)
	series := map[string][]domain.Candle{"QQQ": constSeries(dates, 10)}

	strat, err := NewFixedDCA(FixedDCAConfig{Portfolio: portfolio, Amount: 100, Interval: 1}, nil, log)
	require.NoError(t, err)

	res := runStrategy(t, RunConfig{StartCash: 1000, Frequency: domain.FrequencyWeekly}, series, strat)

	assert.Equal(t, 2, res.Bars)
	assert.Equal(t, domain.FrequencyWeekly, res.Frequency)
	require.Len(t, res.EquityCurve, 2)
	assert.True(t, res.EquityCurve[0].Date.Equal(day(2024, time.January, 12)), "weekly bar dated at the week's last trading day")
	assert.True(t, res.EquityCurve[1].Date.Equal(day(2024, time.January, 19)))
	assert.Len(t, res.Orders, 2)
}

func TestRunResultReport(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	portfolio := mustPortfolio(t, domain.PortfolioAsset{Symbol: "QQQ", Weight: 1.0})
	dates := seqDates(day(2024, time.January, 2), 30)
	closes := make([]float64, len(dates))
	for i := range closes {
		closes[i] = 100 + float64(i)
	}
	series := map[string][]domain.Candle{"QQQ": candlesAt(dates, closes)}

	strat, err := NewFixedDCA(FixedDCAConfig{Portfolio: portfolio, Amount: 500, Interval: 10}, nil, log)
	require.NoError(t, err)

	res := runStrategy(t, RunConfig{StartCash: 2000}, series, strat)

	report := res.Report()
	assert.True(t, strings.Contains(report, "Final Portfolio Value:"))
	assert.True(t, strings.Contains(report, "QQQ:"))

	lines := res.PositionLines()
	require.Len(t, lines, 1)
	assert.Equal(t, "QQQ", lines[0].Symbol)
	assert.InDelta(t, lines[0].Quantity*lines[0].LastPrice, lines[0].MarketValue, 1e-9)
}

func TestEngineNewRejectsBadConfig(t *testing.T) {
	log := logger.New(logger.Config{Level: "error"})
	_, err := New(RunConfig{StartCash: -5}, nil, log)
	assert.Error(t, err)
}
