// Package analytics derives post-run performance metrics from an equity
// curve and its external cashflows: flow-adjusted returns, drawdown
// episodes, annualized volatility, Sharpe, CAGR, and money-weighted XIRR.
package analytics

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/dca-lab/internal/domain"
	"github.com/aristath/dca-lab/pkg/formulas"
)

// Config holds the annualization inputs
type Config struct {
	PeriodsPerYear int     // 252 for daily curves, 52 for weekly
	RiskFreeRate   float64 // annual risk-free rate for Sharpe
}

// Validate checks parameter sanity
func (c Config) Validate() error {
	if c.PeriodsPerYear < 1 {
		return domain.NewConfigError("periods_per_year", "must be at least 1")
	}
	return nil
}

// Summary is the full post-run metric set. Pointer fields are nil when the
// curve carries too little data to compute them; reports omit absent metrics.
type Summary struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
	Periods   int       `json:"periods"`

	StartValue       float64 `json:"start_value"`
	FinalValue       float64 `json:"final_value"`
	TotalDeposits    float64 `json:"total_deposits"`
	TotalContributed float64 `json:"total_contributed"`

	CumulativeReturn     *float64         `json:"cumulative_return,omitempty"`
	CAGR                 *float64         `json:"cagr,omitempty"`
	AnnualizedVolatility *float64         `json:"annualized_volatility,omitempty"`
	SharpeRatio          *float64         `json:"sharpe_ratio,omitempty"`
	XIRR                 *float64         `json:"xirr,omitempty"`
	MaxDrawdown          *DrawdownEpisode `json:"max_drawdown,omitempty"`
	YearlyReturns        map[int]float64  `json:"yearly_returns,omitempty"`
}

// Years returns the calendar span of the run in years
func (s *Summary) Years() float64 {
	return s.EndDate.Sub(s.StartDate).Hours() / 24.0 / 365.25
}

// Analyzer computes run summaries. One instance per frequency.
type Analyzer struct {
	cfg Config
	log zerolog.Logger
}

// New creates an analyzer after validating its config
func New(cfg Config, log zerolog.Logger) (*Analyzer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Analyzer{
		cfg: cfg,
		log: log.With().Str("component", "analytics").Logger(),
	}, nil
}

// Summarize runs the single analytics pass over a finished run.
// startCash is the initial capital; flows carry broker-side signs (deposits
// positive). Returns nil for an empty curve.
func (a *Analyzer) Summarize(startCash float64, curve []domain.EquityPoint, flows []domain.CashFlow) *Summary {
	if len(curve) == 0 {
		return nil
	}

	series := FlowAdjustedReturns(curve, flows)
	start := curve[0]
	end := curve[len(curve)-1]

	totalDeposits := 0.0
	for _, f := range flows {
		totalDeposits += f.Amount
	}

	s := &Summary{
		StartDate:        start.Date,
		EndDate:          end.Date,
		Periods:          len(curve),
		StartValue:       startCash,
		FinalValue:       end.Value,
		TotalDeposits:    totalDeposits,
		TotalContributed: startCash + totalDeposits,
	}

	if len(series.Returns) > 0 {
		cum := formulas.CumulativeReturn(series.Returns)
		s.CumulativeReturn = &cum

		days := int(end.Date.Sub(start.Date).Hours() / 24.0)
		s.CAGR = formulas.CalculateCAGR(cum, days)

		vol := formulas.AnnualizedVolatility(series.Returns, a.cfg.PeriodsPerYear)
		s.AnnualizedVolatility = &vol
		s.SharpeRatio = formulas.CalculateSharpeRatio(series.Returns, a.cfg.RiskFreeRate, a.cfg.PeriodsPerYear)
		s.YearlyReturns = series.Yearly()
	}

	s.XIRR = a.moneyWeightedReturn(startCash, start.Date, end.Date, end.Value, flows)
	s.MaxDrawdown = MaxDrawdownEpisode(curve)

	a.log.Debug().
		Time("start", s.StartDate).
		Time("end", s.EndDate).
		Int("periods", s.Periods).
		Float64("final_value", s.FinalValue).
		Msg("run summarized")
	return s
}

// moneyWeightedReturn builds the investor-side cashflow list and solves for
// XIRR. Initial capital and deposits are outflows (negative); the terminal
// value is the single inflow.
func (a *Analyzer) moneyWeightedReturn(startCash float64, startDate, endDate time.Time, finalValue float64, flows []domain.CashFlow) *float64 {
	cfs := make([]formulas.Cashflow, 0, len(flows)+2)
	cfs = append(cfs, formulas.Cashflow{Date: startDate, Amount: -startCash})
	for _, f := range flows {
		if f.Amount == 0 {
			continue
		}
		cfs = append(cfs, formulas.Cashflow{Date: f.Date, Amount: -f.Amount})
	}
	cfs = append(cfs, formulas.Cashflow{Date: endDate, Amount: finalValue})
	return formulas.CalculateXIRR(cfs)
}
