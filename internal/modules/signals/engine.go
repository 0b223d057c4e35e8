// Package signals computes per-asset momentum, valuation, and trend signals
// from rolling price history.
package signals

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/dca-lab/internal/domain"
	"github.com/aristath/dca-lab/pkg/formulas"
)

// stdGuard is the threshold below which a rolling standard deviation is
// treated as zero, forcing the z-score to neutral.
const stdGuard = 1e-12

// Config holds signal computation parameters
type Config struct {
	FastPeriod    int // fast SMA period
	SlowPeriod    int // slow SMA period, the trend anchor
	VolWindow     int // rolling std window over the derived series
	SlopeLookback int // bars back for the slow SMA slope check
}

// DefaultDailyConfig returns the daily-frequency defaults
func DefaultDailyConfig() Config {
	return Config{FastPeriod: 50, SlowPeriod: 200, VolWindow: 60, SlopeLookback: 5}
}

// DefaultWeeklyConfig returns the weekly-frequency defaults
func DefaultWeeklyConfig() Config {
	return Config{FastPeriod: 10, SlowPeriod: 40, VolWindow: 26, SlopeLookback: 2}
}

// Validate checks parameter sanity at construction time
func (c Config) Validate() error {
	if c.FastPeriod < 1 {
		return domain.NewConfigError("fast_period", "must be at least 1")
	}
	if c.SlowPeriod <= c.FastPeriod {
		return domain.NewConfigError("slow_period", "must exceed fast period")
	}
	if c.VolWindow < 2 {
		return domain.NewConfigError("vol_window", "must be at least 2")
	}
	if c.SlopeLookback < 1 {
		return domain.NewConfigError("slope_lookback", "must be at least 1")
	}
	return nil
}

// Snapshot carries the signals for one asset at the current bar.
// Pointer fields are nil until enough history exists; z-scores are guarded
// to exactly 0.0 (neutral) whenever their inputs are undefined.
type Snapshot struct {
	Symbol     string
	Price      float64
	Fast       *float64 // fast SMA
	Slow       *float64 // slow SMA
	Momentum   *float64 // (fast-slow)/slow
	Deviation  *float64 // price/slow - 1
	MomentumZ  float64  // momentum / rolling std of momentum
	ValuationZ float64  // deviation / rolling std of deviation
	TrendOK    bool     // price above slow SMA and slow SMA rising
}

// Ready reports whether the tilt inputs are defined for this bar
func (s Snapshot) Ready() bool {
	return s.Fast != nil && s.Slow != nil && s.Momentum != nil && s.Deviation != nil
}

// assetState holds the rolling buffers for one asset
type assetState struct {
	prices    *ringBuffer // closing prices, capacity = slow period
	slowHist  *ringBuffer // slow SMA values, for the slope check
	momSeries *ringBuffer // momentum ratio series, capacity = vol window
	devSeries *ringBuffer // deviation ratio series, capacity = vol window
}

// Engine computes signals from rolling price history, one state per asset.
// Derived values are recomputed every bar and never persisted.
type Engine struct {
	cfg    Config
	assets map[string]*assetState
	log    zerolog.Logger
}

// New creates a signal engine for the given symbols
func New(cfg Config, symbols []string, log zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	assets := make(map[string]*assetState, len(symbols))
	for _, sym := range symbols {
		assets[sym] = &assetState{
			prices:    newRingBuffer(cfg.SlowPeriod),
			slowHist:  newRingBuffer(cfg.SlopeLookback + 1),
			momSeries: newRingBuffer(cfg.VolWindow),
			devSeries: newRingBuffer(cfg.VolWindow),
		}
	}

	return &Engine{
		cfg:    cfg,
		assets: assets,
		log:    log.With().Str("component", "signals").Logger(),
	}, nil
}

// WarmupBars returns the bar count before which signals are undefined
func (e *Engine) WarmupBars() int {
	warmup := e.cfg.SlowPeriod
	if e.cfg.FastPeriod > warmup {
		warmup = e.cfg.FastPeriod
	}
	if e.cfg.VolWindow > warmup {
		warmup = e.cfg.VolWindow
	}
	return warmup
}

// Observe pushes the bar's closing price for an asset and returns the
// resulting snapshot. Unknown symbols yield an empty, not-ready snapshot.
func (e *Engine) Observe(symbol string, price float64) Snapshot {
	snap := Snapshot{Symbol: symbol, Price: price}

	state, ok := e.assets[symbol]
	if !ok {
		e.log.Warn().Str("symbol", symbol).Msg("Observe called for untracked symbol")
		return snap
	}
	if price <= 0 || math.IsNaN(price) {
		// Bad print: keep buffers untouched so one bad bar cannot poison
		// the rolling statistics. The caller skips this asset for the bar.
		return snap
	}

	state.prices.Push(price)

	if fast, ok := state.prices.MeanLast(e.cfg.FastPeriod); ok {
		snap.Fast = &fast
	}
	slow, haveSlow := state.prices.MeanLast(e.cfg.SlowPeriod)
	if !haveSlow {
		return snap
	}
	snap.Slow = &slow
	state.slowHist.Push(slow)

	if slow != 0 {
		dev := price/slow - 1.0
		snap.Deviation = &dev
		state.devSeries.Push(dev)
		snap.ValuationZ = guardedZ(dev, state.devSeries, e.cfg.VolWindow)

		if snap.Fast != nil {
			mom := (*snap.Fast - slow) / slow
			snap.Momentum = &mom
			state.momSeries.Push(mom)
			snap.MomentumZ = guardedZ(mom, state.momSeries, e.cfg.VolWindow)
		}
	}

	snap.TrendOK = e.trendConfirmed(state, price, slow)
	return snap
}

// trendConfirmed checks the two-part uptrend rule: price above the slow
// average and the slow average above its own value lookback bars ago.
func (e *Engine) trendConfirmed(state *assetState, price, slow float64) bool {
	lb := e.cfg.SlopeLookback
	if avail := state.slowHist.Len() - 1; avail < lb {
		lb = avail
	}
	if lb <= 0 {
		return false
	}

	past, ok := state.slowHist.Ago(lb)
	if !ok {
		return false
	}

	return price > slow && slow-past > 0
}

// guardedZ scales a value by the population std of its own rolling series.
// Undefined, non-positive, or near-zero dispersion yields exactly 0.0.
func guardedZ(value float64, series *ringBuffer, window int) float64 {
	if math.IsNaN(value) {
		return 0.0
	}

	tail := series.Tail(window)
	if tail == nil {
		return 0.0
	}

	std := formulas.PopStdDev(tail)
	if math.IsNaN(std) || std <= stdGuard {
		return 0.0
	}

	return value / std
}
