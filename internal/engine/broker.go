// Package engine runs deterministic bar-by-bar backtests: a cash broker
// with fractional positions, an investment schedule, the strategy set, and
// the run loop that ties them to the analytics pass.
package engine

import (
	"errors"
	"math"

	"github.com/rs/zerolog"

	"github.com/aristath/dca-lab/internal/domain"
)

var (
	// ErrInsufficientCash rejects a buy that would drive cash negative
	ErrInsufficientCash = errors.New("insufficient cash for fill")
	// ErrInsufficientPosition rejects a sell larger than the held position
	ErrInsufficientPosition = errors.New("insufficient position for fill")
	// ErrInvalidFill rejects fills with non-positive quantity or price
	ErrInvalidFill = errors.New("invalid fill quantity or price")
)

// Fill records an executed market order
type Fill struct {
	Symbol     string
	Side       domain.OrderSide
	Quantity   float64
	Price      float64
	Notional   float64
	Commission float64
}

// Broker is a minimal cash-account broker: market fills at the given price,
// fractional positions, percent commission on notional. It never lets cash
// go negative and never opens short positions.
type Broker struct {
	cash       float64
	commission float64
	positions  map[string]float64
	log        zerolog.Logger
}

// NewBroker creates a broker with starting cash and a percent commission
// rate (0.001 = 0.1% of notional per fill)
func NewBroker(startCash, commission float64, log zerolog.Logger) (*Broker, error) {
	if startCash < 0 || math.IsNaN(startCash) {
		return nil, domain.NewConfigError("start_cash", "must be non-negative")
	}
	if commission < 0 || commission >= 1 {
		return nil, domain.NewConfigError("commission", "must be in [0, 1)")
	}
	return &Broker{
		cash:       startCash,
		commission: commission,
		positions:  make(map[string]float64),
		log:        log.With().Str("component", "broker").Logger(),
	}, nil
}

// Cash returns the free cash balance
func (b *Broker) Cash() float64 { return b.cash }

// AddCash credits an external deposit
func (b *Broker) AddCash(amount float64) {
	if amount <= 0 {
		return
	}
	b.cash += amount
}

// Position returns the held quantity for a symbol (zero when flat)
func (b *Broker) Position(symbol string) float64 { return b.positions[symbol] }

// Positions returns a copy of all non-zero positions
func (b *Broker) Positions() map[string]float64 {
	out := make(map[string]float64, len(b.positions))
	for sym, qty := range b.positions {
		if qty != 0 {
			out[sym] = qty
		}
	}
	return out
}

// Value marks the account to market: cash plus positions at the given prices
func (b *Broker) Value(prices map[string]float64) float64 {
	value := b.cash
	for sym, qty := range b.positions {
		price, ok := prices[sym]
		if !ok || price <= 0 || math.IsNaN(price) {
			continue
		}
		value += qty * price
	}
	return value
}

// Buy executes a market buy. The commission is charged on notional and the
// fill is rejected outright if cash cannot cover notional plus commission.
func (b *Broker) Buy(symbol string, quantity, price float64) (*Fill, error) {
	if quantity <= 0 || price <= 0 || math.IsNaN(quantity) || math.IsNaN(price) {
		return nil, ErrInvalidFill
	}

	notional := quantity * price
	comm := notional * b.commission
	if b.cash-notional-comm < 0 {
		b.log.Warn().
			Str("symbol", symbol).
			Float64("notional", notional).
			Float64("cash", b.cash).
			Msg("buy rejected: would drive cash negative")
		return nil, ErrInsufficientCash
	}

	b.cash -= notional + comm
	b.positions[symbol] += quantity
	return &Fill{
		Symbol:     symbol,
		Side:       domain.OrderSideBuy,
		Quantity:   quantity,
		Price:      price,
		Notional:   notional,
		Commission: comm,
	}, nil
}

// Sell executes a market sell of up to the held position
func (b *Broker) Sell(symbol string, quantity, price float64) (*Fill, error) {
	if quantity <= 0 || price <= 0 || math.IsNaN(quantity) || math.IsNaN(price) {
		return nil, ErrInvalidFill
	}
	held := b.positions[symbol]
	if quantity > held+1e-12 {
		return nil, ErrInsufficientPosition
	}
	if quantity > held {
		quantity = held
	}

	notional := quantity * price
	comm := notional * b.commission
	b.cash += notional - comm
	b.positions[symbol] = held - quantity
	if b.positions[symbol] <= 1e-12 {
		delete(b.positions, symbol)
	}
	return &Fill{
		Symbol:     symbol,
		Side:       domain.OrderSideSell,
		Quantity:   quantity,
		Price:      price,
		Notional:   notional,
		Commission: comm,
	}, nil
}

// Close sells the entire position for a symbol. A flat symbol is a no-op
// and returns nil, nil.
func (b *Broker) Close(symbol string, price float64) (*Fill, error) {
	held := b.positions[symbol]
	if held <= 0 {
		return nil, nil
	}
	return b.Sell(symbol, held, price)
}
