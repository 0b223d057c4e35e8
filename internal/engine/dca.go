package engine

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/dca-lab/internal/domain"
	"github.com/aristath/dca-lab/internal/events"
	"github.com/aristath/dca-lab/internal/modules/allocation"
	"github.com/aristath/dca-lab/internal/modules/signals"
)

// DCAConfig configures a signal-tilted DCA strategy
type DCAConfig struct {
	Portfolio     domain.Portfolio
	Baseline      float64 // cash deployed per scheduled round before tilting
	Interval      int     // bars between rounds
	DepositAmount float64 // optional external deposit credited each round
	Reserve       float64 // reserve multiplier, default 1.01
	Policy        string  // allocation policy name, default adaptive
	Params        allocation.Params
	Signals       signals.Config
}

// DCA invests baseline x weight x multiplier into each portfolio asset on a
// fixed bar schedule. Signals are observed on every bar; trading happens only
// on scheduled bars, and skipped rounds still advance the schedule.
type DCA struct {
	tradeLog

	portfolio domain.Portfolio
	baseline  float64
	deposit   float64

	signals  *signals.Engine
	policy   allocation.Policy
	resolver *allocation.Resolver
	schedule *Schedule

	bus *events.Bus
	log zerolog.Logger
}

// NewDCA validates the config and wires the signal engine, policy, and
// budget resolver
func NewDCA(cfg DCAConfig, bus *events.Bus, log zerolog.Logger) (*DCA, error) {
	if cfg.Portfolio.Len() == 0 {
		return nil, domain.NewConfigError("portfolio", "must not be empty")
	}
	if cfg.Baseline <= 0 || math.IsNaN(cfg.Baseline) {
		return nil, domain.NewConfigError("amount", "baseline amount must be positive")
	}
	if cfg.DepositAmount < 0 || math.IsNaN(cfg.DepositAmount) {
		return nil, domain.NewConfigError("deposit_amount", "must be non-negative")
	}
	if cfg.Reserve == 0 {
		cfg.Reserve = 1.01
	}
	if cfg.Policy == "" {
		cfg.Policy = allocation.PolicyAdaptive
	}

	policy, err := allocation.NewPolicy(cfg.Policy, cfg.Params)
	if err != nil {
		return nil, err
	}
	sig, err := signals.New(cfg.Signals, cfg.Portfolio.Symbols(), log)
	if err != nil {
		return nil, err
	}
	schedule, err := NewSchedule(cfg.Interval)
	if err != nil {
		return nil, err
	}
	resolver, err := allocation.NewResolver(cfg.Reserve, bus, log)
	if err != nil {
		return nil, err
	}

	return &DCA{
		portfolio: cfg.Portfolio,
		baseline:  cfg.Baseline,
		deposit:   cfg.DepositAmount,
		signals:   sig,
		policy:    policy,
		resolver:  resolver,
		schedule:  schedule,
		bus:       bus,
		log:       log.With().Str("component", "strategy").Str("strategy", "dca-"+policy.Name()).Logger(),
	}, nil
}

// Name returns the strategy name including its policy variant
func (s *DCA) Name() string {
	return "dca-" + s.policy.Name()
}

// WarmupBars returns the bar count before signals are fully defined
func (s *DCA) WarmupBars() int {
	return s.signals.WarmupBars()
}

func (s *DCA) OnBar(ctx BarContext) error {
	// signals update on every bar, scheduled or not
	snaps := make(map[string]signals.Snapshot, s.portfolio.Len())
	for _, asset := range s.portfolio.Assets() {
		price, ok := ctx.Prices[asset.Symbol]
		if !ok {
			continue
		}
		snaps[asset.Symbol] = s.signals.Observe(asset.Symbol, price)
	}

	if !s.schedule.Due(ctx.Bar) {
		return nil
	}

	if s.deposit > 0 {
		ctx.Broker.AddCash(s.deposit)
		s.recordFlow(ctx.Date, s.deposit)
		if s.bus != nil {
			s.bus.Emit(events.DepositProcessed, s.Name(), map[string]interface{}{
				"date":   ctx.Date.Format("2006-01-02"),
				"amount": s.deposit,
			})
		}
	}

	reqs := make([]allocation.AssetRequest, 0, s.portfolio.Len())
	for _, asset := range s.portfolio.Assets() {
		snap := snaps[asset.Symbol]
		reqs = append(reqs, allocation.AssetRequest{
			Symbol:     asset.Symbol,
			Weight:     asset.Weight,
			Price:      snap.Price,
			Multiplier: s.policy.Multiplier(snap),
		})
	}

	intents := s.resolver.Resolve(ctx.Date, ctx.Broker.Cash(), s.baseline, reqs)
	for _, it := range intents {
		fill, err := ctx.Broker.Buy(it.Symbol, it.Quantity, it.Price)
		if err != nil {
			s.log.Warn().Err(err).
				Str("symbol", it.Symbol).
				Float64("spend", it.Spend).
				Msg("buy rejected")
			continue
		}
		s.record(ctx.Date, fill, it.Multiplier, it.Scaled)
		s.emitOrder(ctx.Date, fill, it.Multiplier)
		s.log.Debug().
			Str("symbol", it.Symbol).
			Float64("multiplier", it.Multiplier).
			Float64("spend", it.Spend).
			Float64("size", it.Quantity).
			Msg("scheduled buy")
	}

	s.schedule.Mark(ctx.Bar)
	return nil
}

func (s *DCA) emitOrder(date time.Time, fill *Fill, multiplier float64) {
	if s.bus == nil {
		return
	}
	s.bus.Emit(events.OrderEmitted, s.Name(), map[string]interface{}{
		"date":       date.Format("2006-01-02"),
		"symbol":     fill.Symbol,
		"side":       string(fill.Side),
		"quantity":   fill.Quantity,
		"price":      fill.Price,
		"notional":   fill.Notional,
		"multiplier": multiplier,
	})
}

var _ Strategy = (*DCA)(nil)
