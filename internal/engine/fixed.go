package engine

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/dca-lab/internal/domain"
	"github.com/aristath/dca-lab/internal/events"
)

// FixedDCAConfig configures plain scheduled investing, optionally funded by
// a recurring deposit
type FixedDCAConfig struct {
	Portfolio     domain.Portfolio
	Amount        float64 // cash deployed per scheduled round
	Interval      int
	DepositAmount float64 // credited to the broker right before investing
	Reserve       float64 // reserve multiplier, default 1.01
}

// FixedDCA deploys a fixed amount into the portfolio weights every interval
// bars. When cash runs short the whole round is capped at the deployable
// amount rather than rescaled per asset.
type FixedDCA struct {
	tradeLog

	cfg      FixedDCAConfig
	schedule *Schedule
	bus      *events.Bus
	log      zerolog.Logger
}

// NewFixedDCA validates the config and builds the strategy
func NewFixedDCA(cfg FixedDCAConfig, bus *events.Bus, log zerolog.Logger) (*FixedDCA, error) {
	if cfg.Portfolio.Len() == 0 {
		return nil, domain.NewConfigError("portfolio", "must not be empty")
	}
	if cfg.Amount <= 0 || math.IsNaN(cfg.Amount) {
		return nil, domain.NewConfigError("amount", "must be positive")
	}
	if cfg.DepositAmount < 0 || math.IsNaN(cfg.DepositAmount) {
		return nil, domain.NewConfigError("deposit_amount", "must be non-negative")
	}
	if cfg.Reserve == 0 {
		cfg.Reserve = 1.01
	}
	if cfg.Reserve < 1.0 {
		return nil, domain.NewConfigError("reserve_multiplier", "must be at least 1")
	}

	schedule, err := NewSchedule(cfg.Interval)
	if err != nil {
		return nil, err
	}

	return &FixedDCA{
		cfg:      cfg,
		schedule: schedule,
		bus:      bus,
		log:      log.With().Str("component", "strategy").Str("strategy", "fixed-dca").Logger(),
	}, nil
}

func (s *FixedDCA) Name() string { return "fixed-dca" }

func (s *FixedDCA) OnBar(ctx BarContext) error {
	if !s.schedule.Due(ctx.Bar) {
		return nil
	}

	if s.cfg.DepositAmount > 0 {
		ctx.Broker.AddCash(s.cfg.DepositAmount)
		s.recordFlow(ctx.Date, s.cfg.DepositAmount)
		if s.bus != nil {
			s.bus.Emit(events.DepositProcessed, s.Name(), map[string]interface{}{
				"date":   ctx.Date.Format("2006-01-02"),
				"amount": s.cfg.DepositAmount,
			})
		}
		s.log.Debug().Float64("amount", s.cfg.DepositAmount).Msg("deposited cash before investment")
	}

	maxDeployable := ctx.Broker.Cash() / s.cfg.Reserve
	deploy := math.Min(s.cfg.Amount, maxDeployable)

	if deploy <= 0 {
		s.log.Debug().Time("date", ctx.Date).Msg("skipping scheduled investment: no available cash")
		s.schedule.Mark(ctx.Bar)
		return nil
	}
	capped := deploy < s.cfg.Amount
	if capped {
		s.log.Info().
			Float64("amount", s.cfg.Amount).
			Float64("deploy", deploy).
			Msg("insufficient cash: capping scheduled investment")
	}

	for _, asset := range s.cfg.Portfolio.Assets() {
		price, ok := ctx.Prices[asset.Symbol]
		if !ok || price <= 0 || math.IsNaN(price) {
			continue
		}

		alloc := deploy * asset.Weight
		qty := alloc / price
		if qty <= 0 {
			continue
		}

		fill, err := ctx.Broker.Buy(asset.Symbol, qty, price)
		if err != nil {
			s.log.Warn().Err(err).Str("symbol", asset.Symbol).Msg("buy rejected")
			continue
		}
		s.record(ctx.Date, fill, 1.0, capped)
		s.emitOrder(ctx.Date, fill)
	}

	s.schedule.Mark(ctx.Bar)
	return nil
}

func (s *FixedDCA) emitOrder(date time.Time, fill *Fill) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(events.OrderEmitted, s.Name(), map[string]interface{}{
		"date":     date.Format("2006-01-02"),
		"symbol":   fill.Symbol,
		"side":     string(fill.Side),
		"quantity": fill.Quantity,
		"price":    fill.Price,
		"notional": fill.Notional,
	})
}

var _ Strategy = (*FixedDCA)(nil)
