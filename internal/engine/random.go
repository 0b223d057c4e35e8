package engine

import (
	"math"
	"math/rand"

	"github.com/rs/zerolog"

	"github.com/aristath/dca-lab/internal/domain"
)

// RandomConfig configures the random-buy benchmark
type RandomConfig struct {
	Portfolio   domain.Portfolio
	Baseline    float64
	Interval    int
	Probability float64 // chance of buying on an eligible bar, default 1.0
	Seed        int64
}

// Random is a benchmark strategy: on each eligible bar it picks one
// portfolio asset uniformly at random and buys baseline x weight of it.
// The same seed always reproduces the same order sequence.
type Random struct {
	tradeLog

	cfg      RandomConfig
	rng      *rand.Rand
	schedule *Schedule
	log      zerolog.Logger
}

// NewRandom validates the config and seeds the generator
func NewRandom(cfg RandomConfig, log zerolog.Logger) (*Random, error) {
	if cfg.Portfolio.Len() == 0 {
		return nil, domain.NewConfigError("portfolio", "must not be empty")
	}
	if cfg.Baseline <= 0 || math.IsNaN(cfg.Baseline) {
		return nil, domain.NewConfigError("amount", "must be positive")
	}
	if cfg.Probability == 0 {
		cfg.Probability = 1.0
	}
	if cfg.Probability < 0 || cfg.Probability > 1 {
		return nil, domain.NewConfigError("probability", "must be in (0, 1]")
	}

	schedule, err := NewSchedule(cfg.Interval)
	if err != nil {
		return nil, err
	}

	return &Random{
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		schedule: schedule,
		log:      log.With().Str("component", "strategy").Str("strategy", "random").Logger(),
	}, nil
}

func (s *Random) Name() string { return "random" }

func (s *Random) OnBar(ctx BarContext) error {
	if !s.schedule.Due(ctx.Bar) {
		return nil
	}

	if s.cfg.Probability < 1.0 && s.rng.Float64() >= s.cfg.Probability {
		s.schedule.Mark(ctx.Bar)
		return nil
	}

	assets := s.cfg.Portfolio.Assets()
	pick := assets[s.rng.Intn(len(assets))]

	price, ok := ctx.Prices[pick.Symbol]
	if !ok || price <= 0 || math.IsNaN(price) {
		// bad print: try again next bar
		return nil
	}

	spend := s.cfg.Baseline * pick.Weight
	qty := spend / price
	if qty <= 0 {
		return nil
	}

	fill, err := ctx.Broker.Buy(pick.Symbol, qty, price)
	if err != nil {
		s.log.Warn().Err(err).Str("symbol", pick.Symbol).Msg("buy rejected")
		s.schedule.Mark(ctx.Bar)
		return nil
	}

	s.record(ctx.Date, fill, 1.0, false)
	s.log.Debug().
		Str("symbol", pick.Symbol).
		Float64("size", qty).
		Float64("price", price).
		Msg("random buy")
	s.schedule.Mark(ctx.Bar)
	return nil
}

var _ Strategy = (*Random)(nil)
