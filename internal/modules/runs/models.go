// Package runs persists backtest runs and executes them against stored
// history.
package runs

import (
	"time"

	"github.com/aristath/dca-lab/internal/domain"
	"github.com/aristath/dca-lab/internal/engine"
	"github.com/aristath/dca-lab/internal/modules/allocation"
	"github.com/aristath/dca-lab/internal/modules/analytics"
	"github.com/aristath/dca-lab/internal/modules/signals"
)

// Status is the lifecycle state of a run
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Strategy names accepted in a run request
const (
	StrategyDCA      = "dca"
	StrategyFixedDCA = "fixed-dca"
	StrategyRandom   = "random"
	StrategySMACross = "sma-cross"
)

// Request describes a backtest to execute. Portfolio weights must sum to
// 1.0; omitted tuning fields fall back to frequency-appropriate defaults.
type Request struct {
	Name      string                  `json:"name"`
	Strategy  string                  `json:"strategy"`
	Policy    string                  `json:"policy,omitempty"` // dca only
	Portfolio []domain.PortfolioAsset `json:"portfolio"`

	StartCash     float64          `json:"start_cash"`
	Amount        float64          `json:"amount"` // per-round baseline
	Interval      int              `json:"interval"`
	DepositAmount float64          `json:"deposit_amount,omitempty"`
	Reserve       float64          `json:"reserve,omitempty"`
	Commission    *float64         `json:"commission,omitempty"` // nil = engine default
	Frequency     domain.Frequency `json:"frequency,omitempty"`
	RiskFree      float64          `json:"risk_free,omitempty"`

	// history selection
	Bars int `json:"bars,omitempty"` // 0 = all stored bars

	// optional tuning overrides
	Params  *allocation.Params `json:"params,omitempty"`
	Signals *signals.Config    `json:"signals,omitempty"`

	// benchmark knobs
	Seed        int64   `json:"seed,omitempty"`        // random
	Probability float64 `json:"probability,omitempty"` // random
}

// Validate applies defaults and checks the request
func (r *Request) Validate() error {
	if r.Strategy == "" {
		r.Strategy = StrategyDCA
	}
	switch r.Strategy {
	case StrategyDCA, StrategyFixedDCA, StrategyRandom, StrategySMACross:
	default:
		return domain.NewConfigError("strategy", "unknown strategy "+r.Strategy)
	}

	if len(r.Portfolio) == 0 {
		return domain.NewConfigError("portfolio", "must not be empty")
	}
	if _, err := domain.NewPortfolio(r.Portfolio); err != nil {
		return err
	}

	if r.StartCash <= 0 {
		return domain.NewConfigError("start_cash", "must be positive")
	}
	if r.Amount <= 0 {
		return domain.NewConfigError("amount", "must be positive")
	}
	if r.Interval < 1 {
		return domain.NewConfigError("interval", "must be at least 1")
	}
	if r.Commission != nil && (*r.Commission < 0 || *r.Commission >= 1) {
		return domain.NewConfigError("commission", "must be in [0, 1)")
	}
	if r.Frequency == "" {
		r.Frequency = domain.FrequencyDaily
	}
	if !r.Frequency.Valid() {
		return domain.NewConfigError("frequency", "must be daily or weekly")
	}
	if r.Bars < 0 {
		return domain.NewConfigError("bars", "must be non-negative")
	}
	return nil
}

// Symbols returns the portfolio symbols in declaration order
func (r *Request) Symbols() []string {
	out := make([]string, len(r.Portfolio))
	for i, a := range r.Portfolio {
		out[i] = a.Symbol
	}
	return out
}

// commission returns the requested rate or the engine default
func (r *Request) commission() float64 {
	if r.Commission != nil {
		return *r.Commission
	}
	return engine.DefaultCommission
}

// params returns the tuning overrides or the frequency defaults
func (r *Request) params() allocation.Params {
	if r.Params != nil {
		return *r.Params
	}
	if r.Frequency == domain.FrequencyWeekly {
		return allocation.DefaultWeeklyParams()
	}
	return allocation.DefaultDailyParams()
}

func (r *Request) signalConfig() signals.Config {
	if r.Signals != nil {
		return *r.Signals
	}
	if r.Frequency == domain.FrequencyWeekly {
		return signals.DefaultWeeklyConfig()
	}
	return signals.DefaultDailyConfig()
}

// Run is a stored backtest run. Curve, orders, and cashflows live in blob
// columns and are loaded separately via Result.
type Run struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Strategy  string           `json:"strategy"`
	Frequency domain.Frequency `json:"frequency"`
	Status    Status           `json:"status"`

	StartCash  float64  `json:"start_cash"`
	FinalValue *float64 `json:"final_value,omitempty"`
	Bars       *int     `json:"bars,omitempty"`
	Error      string   `json:"error,omitempty"`

	CreatedAt  time.Time  `json:"created_at"`
	StartedAt  *time.Time `json:"started_at,omitempty"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Result bundles a run with its stored series and summary
type Result struct {
	Run       Run                  `json:"run"`
	Request   Request              `json:"request"`
	Summary   *analytics.Summary   `json:"summary,omitempty"`
	Curve     []domain.EquityPoint `json:"equity_curve,omitempty"`
	Orders    []domain.Order       `json:"orders,omitempty"`
	Cashflows []domain.CashFlow    `json:"cashflows,omitempty"`
}
