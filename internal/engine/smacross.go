package engine

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/dca-lab/internal/domain"
	"github.com/aristath/dca-lab/pkg/formulas"
)

// SMACrossConfig configures the trend-following benchmark
type SMACrossConfig struct {
	Portfolio    domain.Portfolio
	InvestAmount float64 // cash per entry, capped at deployable cash
	FastPeriod   int     // default 20
	SlowPeriod   int     // default 50
	Band         float64 // buffer around the slow SMA, default 0.003
	RSIPeriod    int     // default 14
	RSIMax       float64 // entries blocked above this RSI, default 70
	MinHold      int     // bars before an exit is honored, default 5
	Reserve      float64 // reserve multiplier, default 1.01
}

type crossState struct {
	closes       []float64
	lastEntryBar int
	prevFast     float64
	prevSlow     float64
	havePrev     bool
}

// SMACross is a trend-following benchmark: per asset, enter when the fast
// SMA crosses above the slow SMA's upper band with RSI below the ceiling,
// exit the whole position on a cross below the lower band after the minimum
// hold. It shares the strategy contract with the DCA variants.
type SMACross struct {
	tradeLog

	cfg    SMACrossConfig
	assets map[string]*crossState
	log    zerolog.Logger
}

// NewSMACross applies defaults and validates the config
func NewSMACross(cfg SMACrossConfig, log zerolog.Logger) (*SMACross, error) {
	if cfg.Portfolio.Len() == 0 {
		return nil, domain.NewConfigError("portfolio", "must not be empty")
	}
	if cfg.InvestAmount <= 0 || math.IsNaN(cfg.InvestAmount) {
		return nil, domain.NewConfigError("invest_amount", "must be positive")
	}
	if cfg.FastPeriod == 0 {
		cfg.FastPeriod = 20
	}
	if cfg.SlowPeriod == 0 {
		cfg.SlowPeriod = 50
	}
	if cfg.FastPeriod < 1 || cfg.SlowPeriod <= cfg.FastPeriod {
		return nil, domain.NewConfigError("sma_periods", "slow period must exceed fast period")
	}
	if cfg.Band == 0 {
		cfg.Band = 0.003
	}
	if cfg.Band < 0 {
		return nil, domain.NewConfigError("band", "must be non-negative")
	}
	if cfg.RSIPeriod == 0 {
		cfg.RSIPeriod = 14
	}
	if cfg.RSIMax == 0 {
		cfg.RSIMax = 70
	}
	if cfg.MinHold == 0 {
		cfg.MinHold = 5
	}
	if cfg.Reserve == 0 {
		cfg.Reserve = 1.01
	}

	assets := make(map[string]*crossState, cfg.Portfolio.Len())
	for _, sym := range cfg.Portfolio.Symbols() {
		assets[sym] = &crossState{lastEntryBar: math.MinInt32}
	}

	return &SMACross{
		cfg:    cfg,
		assets: assets,
		log:    log.With().Str("component", "strategy").Str("strategy", "sma-cross").Logger(),
	}, nil
}

func (s *SMACross) Name() string { return "sma-cross" }

func (s *SMACross) OnBar(ctx BarContext) error {
	for _, sym := range s.cfg.Portfolio.Symbols() {
		state := s.assets[sym]
		price, ok := ctx.Prices[sym]
		if !ok || price <= 0 || math.IsNaN(price) {
			continue
		}
		state.closes = append(state.closes, price)

		fast := formulas.CalculateSMA(state.closes, s.cfg.FastPeriod)
		slow := formulas.CalculateSMA(state.closes, s.cfg.SlowPeriod)
		if fast == nil || slow == nil {
			continue
		}

		upper := *slow * (1.0 + s.cfg.Band)
		lower := *slow * (1.0 - s.cfg.Band)

		if !state.havePrev {
			state.prevFast = *fast
			state.prevSlow = *slow
			state.havePrev = true
			continue
		}
		prevUpper := state.prevSlow * (1.0 + s.cfg.Band)
		prevLower := state.prevSlow * (1.0 - s.cfg.Band)

		crossUp := state.prevFast <= prevUpper && *fast > upper
		crossDown := state.prevFast >= prevLower && *fast < lower
		state.prevFast = *fast
		state.prevSlow = *slow

		position := ctx.Broker.Position(sym)

		if position == 0 && crossUp {
			if rsi := formulas.CalculateRSI(state.closes, s.cfg.RSIPeriod); rsi != nil && *rsi > s.cfg.RSIMax {
				s.log.Debug().Str("symbol", sym).Float64("rsi", *rsi).Msg("entry blocked by RSI ceiling")
				continue
			}

			alloc := math.Min(ctx.Broker.Cash()/s.cfg.Reserve, s.cfg.InvestAmount)
			qty := alloc / price
			if qty <= 0 {
				continue
			}

			fill, err := ctx.Broker.Buy(sym, qty, price)
			if err != nil {
				s.log.Warn().Err(err).Str("symbol", sym).Msg("entry rejected")
				continue
			}
			state.lastEntryBar = ctx.Bar
			s.record(ctx.Date, fill, 1.0, false)
			s.log.Debug().Str("symbol", sym).Float64("size", qty).Msg("trend entry")
			continue
		}

		canExit := ctx.Bar-state.lastEntryBar >= s.cfg.MinHold
		if position > 0 && crossDown && canExit {
			fill, err := ctx.Broker.Close(sym, price)
			if err != nil {
				s.log.Warn().Err(err).Str("symbol", sym).Msg("exit rejected")
				continue
			}
			if fill != nil {
				s.record(ctx.Date, fill, 1.0, false)
				s.log.Debug().Str("symbol", sym).Float64("size", fill.Quantity).Msg("trend exit")
			}
		}
	}
	return nil
}

var _ Strategy = (*SMACross)(nil)
