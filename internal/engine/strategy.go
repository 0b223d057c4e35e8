package engine

import (
	"time"

	"github.com/aristath/dca-lab/internal/domain"
)

// BarContext is what a strategy sees on each bar: the aligned closing
// prices and the broker it trades against.
type BarContext struct {
	Bar    int
	Date   time.Time
	Prices map[string]float64
	Broker *Broker
}

// Strategy is one investment policy driven bar by bar. OnBar executes
// trades against ctx.Broker; the engine collects the order log and external
// cashflows after the run.
type Strategy interface {
	Name() string
	OnBar(ctx BarContext) error
	Orders() []domain.Order
	Cashflows() []domain.CashFlow
}

// tradeLog collects executed orders and external cashflows for a run.
// Strategies embed it to satisfy the Orders/Cashflows accessors.
type tradeLog struct {
	orders []domain.Order
	flows  []domain.CashFlow
}

func (l *tradeLog) record(date time.Time, fill *Fill, multiplier float64, scaled bool) {
	l.orders = append(l.orders, domain.Order{
		Date:       date,
		Symbol:     fill.Symbol,
		Side:       fill.Side,
		Quantity:   fill.Quantity,
		Price:      fill.Price,
		Notional:   fill.Notional,
		Commission: fill.Commission,
		Multiplier: multiplier,
		Scaled:     scaled,
	})
}

func (l *tradeLog) recordFlow(date time.Time, amount float64) {
	l.flows = append(l.flows, domain.CashFlow{Date: date, Amount: amount})
}

// Orders returns a copy of the executed order log
func (l *tradeLog) Orders() []domain.Order {
	out := make([]domain.Order, len(l.orders))
	copy(out, l.orders)
	return out
}

// Cashflows returns a copy of the recorded external cashflows
func (l *tradeLog) Cashflows() []domain.CashFlow {
	out := make([]domain.CashFlow, len(l.flows))
	copy(out, l.flows)
	return out
}
