package allocation

import (
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/dca-lab/internal/domain"
	"github.com/aristath/dca-lab/internal/events"
)

// AssetRequest is one asset's input to budget resolution
type AssetRequest struct {
	Symbol     string
	Weight     float64
	Price      float64
	Multiplier float64
}

// Intent is a resolved buy instruction. Quantity is fractional; Scaled marks
// spends that were rescaled to fit the deployable budget.
type Intent struct {
	Symbol     string
	Spend      float64
	Quantity   float64
	Price      float64
	Multiplier float64
	Scaled     bool
}

// Resolver caps desired spends at the deployable share of available cash.
// Relative tilts between assets survive rescaling untouched.
type Resolver struct {
	reserve float64
	bus     *events.Bus
	log     zerolog.Logger
}

// NewResolver creates a budget resolver. The reserve multiplier divides
// available cash, leaving a small buffer undeployed; it must be at least 1.
func NewResolver(reserveMultiplier float64, bus *events.Bus, log zerolog.Logger) (*Resolver, error) {
	if reserveMultiplier < 1.0 {
		return nil, domain.NewConfigError("reserve_multiplier", "must be at least 1")
	}
	return &Resolver{
		reserve: reserveMultiplier,
		bus:     bus,
		log:     log.With().Str("component", "budget").Logger(),
	}, nil
}

// MaxDeployable returns the cash ceiling for one investment round
func (r *Resolver) MaxDeployable(cash float64) float64 {
	return cash / r.reserve
}

// Resolve turns desired per-asset spends into buy intents that fit the
// deployable budget. Assets with a non-positive or NaN price are dropped for
// this round. A nil result means nothing is investable this round; the
// caller's schedule still advances.
func (r *Resolver) Resolve(date time.Time, cash, baseline float64, assets []AssetRequest) []Intent {
	maxDeployable := r.MaxDeployable(cash)
	if maxDeployable <= 0 {
		r.log.Debug().
			Time("date", date).
			Float64("cash", cash).
			Msg("skipping investment: no deployable cash")
		r.emit(events.InvestmentSkipped, map[string]interface{}{
			"date":   date.Format("2006-01-02"),
			"reason": "no deployable cash",
			"cash":   cash,
		})
		return nil
	}

	intents := make([]Intent, 0, len(assets))
	totalDesired := 0.0
	for _, a := range assets {
		if a.Price <= 0 || math.IsNaN(a.Price) {
			r.log.Debug().
				Str("symbol", a.Symbol).
				Float64("price", a.Price).
				Msg("skipping asset with invalid price")
			continue
		}

		spend := baseline * a.Weight * a.Multiplier
		if spend <= 0 {
			continue
		}

		intents = append(intents, Intent{
			Symbol:     a.Symbol,
			Spend:      spend,
			Price:      a.Price,
			Multiplier: a.Multiplier,
		})
		totalDesired += spend
	}

	if totalDesired <= 0 {
		r.log.Debug().
			Time("date", date).
			Msg("nothing to allocate: all desired spends are zero or invalid")
		r.emit(events.InvestmentSkipped, map[string]interface{}{
			"date":   date.Format("2006-01-02"),
			"reason": "nothing to allocate",
		})
		return nil
	}

	scale := 1.0
	if totalDesired > maxDeployable {
		scale = maxDeployable / totalDesired
		r.log.Info().
			Time("date", date).
			Float64("scale", scale).
			Float64("desired", totalDesired).
			Float64("cap", maxDeployable).
			Msg("scaling spends to fit deployable cash")
		r.emit(events.OrdersScaled, map[string]interface{}{
			"date":    date.Format("2006-01-02"),
			"scale":   scale,
			"desired": totalDesired,
			"cap":     maxDeployable,
		})
	}

	out := make([]Intent, 0, len(intents))
	for _, it := range intents {
		spend := it.Spend * scale
		qty := spend / it.Price
		if qty <= 0 {
			continue
		}
		it.Spend = spend
		it.Quantity = qty
		it.Scaled = scale < 1.0
		out = append(out, it)
	}
	return out
}

func (r *Resolver) emit(eventType events.EventType, data map[string]interface{}) {
	if r.bus == nil {
		return
	}
	r.bus.Emit(eventType, "budget", data)
}
