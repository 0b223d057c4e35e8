package engine

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/dca-lab/internal/domain"
	"github.com/aristath/dca-lab/internal/events"
	"github.com/aristath/dca-lab/internal/modules/analytics"
)

// progressEvery is the bar interval between RUN_PROGRESS events
const progressEvery = 250

// DefaultCommission is the percent commission applied when a request does
// not specify one (0.001 = 0.1% of notional per fill)
const DefaultCommission = 0.001

// RunConfig holds the account-level run parameters
type RunConfig struct {
	StartCash  float64
	Commission float64 // percent of notional, 0.001 = 0.1%
	Frequency  domain.Frequency
	RiskFree   float64 // annual risk-free rate for the Sharpe ratio
}

// Validate checks the run parameters
func (c RunConfig) Validate() error {
	if c.StartCash <= 0 || math.IsNaN(c.StartCash) {
		return domain.NewConfigError("start_cash", "must be positive")
	}
	if c.Commission < 0 || c.Commission >= 1 {
		return domain.NewConfigError("commission", "must be in [0, 1)")
	}
	if c.Frequency != "" && !c.Frequency.Valid() {
		return domain.NewConfigError("frequency", "must be daily or weekly")
	}
	return nil
}

// RunResult is everything a finished run produced
type RunResult struct {
	Strategy   string            `json:"strategy"`
	Frequency  domain.Frequency  `json:"frequency"`
	StartCash  float64           `json:"start_cash"`
	FinalValue float64           `json:"final_value"`
	FinalCash  float64           `json:"final_cash"`
	Bars       int               `json:"bars"`

	Positions   map[string]float64   `json:"positions,omitempty"`
	FinalPrices map[string]float64   `json:"final_prices,omitempty"`
	Orders      []domain.Order       `json:"orders"`
	Cashflows   []domain.CashFlow    `json:"cashflows"`
	EquityCurve []domain.EquityPoint `json:"equity_curve"`
	Snapshots   []domain.Snapshot    `json:"snapshots,omitempty"`
	Summary     *analytics.Summary   `json:"summary,omitempty"`

	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`
}

// PositionLines maps the final positions into report rows, priced at the
// last bar's closes
func (r *RunResult) PositionLines() []analytics.PositionLine {
	lines := make([]analytics.PositionLine, 0, len(r.Positions))
	for sym, qty := range r.Positions {
		price := r.FinalPrices[sym]
		lines = append(lines, analytics.PositionLine{
			Symbol:      sym,
			Quantity:    qty,
			LastPrice:   price,
			MarketValue: qty * price,
		})
	}
	return lines
}

// Report renders the plain-text summary including open positions
func (r *RunResult) Report() string {
	if r.Summary == nil {
		return ""
	}
	return analytics.FormatReport(r.Summary, r.PositionLines())
}

// Engine drives a strategy across aligned candles with a fresh broker per
// run, then hands the equity curve to the analytics pass. Runs with the
// same history and config produce bit-identical order logs.
type Engine struct {
	cfg RunConfig
	bus *events.Bus
	log zerolog.Logger
}

// New creates an engine after validating the run config
func New(cfg RunConfig, bus *events.Bus, log zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Frequency == "" {
		cfg.Frequency = domain.FrequencyDaily
	}
	return &Engine{
		cfg: cfg,
		bus: bus,
		log: log.With().Str("component", "engine").Logger(),
	}, nil
}

// Run executes the strategy over the shared dates of the candle series.
// Weekly frequency resamples each series before alignment.
func (e *Engine) Run(ctx context.Context, series map[string][]domain.Candle, strat Strategy) (*RunResult, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("run %s: no candle series provided", strat.Name())
	}

	if e.cfg.Frequency == domain.FrequencyWeekly {
		series = resampleAll(series)
	}

	dates := alignDates(series)
	if len(dates) == 0 {
		return nil, fmt.Errorf("run %s: no overlapping history across %d symbols", strat.Name(), len(series))
	}

	closes := make(map[string]map[string]float64, len(series))
	for sym, candles := range series {
		closes[sym] = closeIndex(candles)
	}

	broker, err := NewBroker(e.cfg.StartCash, e.cfg.Commission, e.log)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	e.log.Info().
		Str("strategy", strat.Name()).
		Str("frequency", string(e.cfg.Frequency)).
		Int("bars", len(dates)).
		Float64("start_cash", e.cfg.StartCash).
		Msg("run started")

	curve := make([]domain.EquityPoint, 0, len(dates))
	snapshots := make([]domain.Snapshot, 0, len(dates))
	var prices map[string]float64

	for bar, date := range dates {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		key := date.Format("2006-01-02")
		prices = make(map[string]float64, len(series))
		for sym := range series {
			prices[sym] = closes[sym][key]
		}

		if err := strat.OnBar(BarContext{Bar: bar, Date: date, Prices: prices, Broker: broker}); err != nil {
			return nil, fmt.Errorf("run %s: bar %d (%s): %w", strat.Name(), bar, key, err)
		}

		value := broker.Value(prices)
		if n := len(curve); n > 0 && curve[n-1].Date.Equal(date) {
			curve[n-1].Value = value
			snapshots[n-1] = domain.Snapshot{Date: date, Value: value, Cash: broker.Cash(), Positions: broker.Positions()}
		} else {
			curve = append(curve, domain.EquityPoint{Date: date, Value: value})
			snapshots = append(snapshots, domain.Snapshot{Date: date, Value: value, Cash: broker.Cash(), Positions: broker.Positions()})
		}

		if e.bus != nil && (bar+1)%progressEvery == 0 {
			e.bus.Emit(events.RunProgress, strat.Name(), map[string]interface{}{
				"bar":  bar + 1,
				"bars": len(dates),
				"date": key,
			})
		}
	}

	analyzer, err := analytics.New(analytics.Config{
		PeriodsPerYear: e.cfg.Frequency.PeriodsPerYear(),
		RiskFreeRate:   e.cfg.RiskFree,
	}, e.log)
	if err != nil {
		return nil, err
	}

	finished := time.Now()
	result := &RunResult{
		Strategy:    strat.Name(),
		Frequency:   e.cfg.Frequency,
		StartCash:   e.cfg.StartCash,
		FinalValue:  broker.Value(prices),
		FinalCash:   broker.Cash(),
		Bars:        len(dates),
		Positions:   broker.Positions(),
		FinalPrices: prices,
		Orders:      strat.Orders(),
		Cashflows:   strat.Cashflows(),
		EquityCurve: curve,
		Snapshots:   snapshots,
		Summary:     analyzer.Summarize(e.cfg.StartCash, curve, strat.Cashflows()),
		StartedAt:   started,
		FinishedAt:  finished,
		Duration:    finished.Sub(started),
	}

	e.log.Info().
		Str("strategy", strat.Name()).
		Int("orders", len(result.Orders)).
		Float64("final_value", result.FinalValue).
		Dur("duration", result.Duration).
		Msg("run finished")
	return result, nil
}
