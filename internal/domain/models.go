// Package domain provides core domain models and types.
package domain

import (
	"fmt"
	"time"
)

// Frequency identifies the bar frequency of a candle series
type Frequency string

const (
	FrequencyDaily  Frequency = "daily"
	FrequencyWeekly Frequency = "weekly"
)

// PeriodsPerYear returns the annualization factor for the frequency
func (f Frequency) PeriodsPerYear() int {
	if f == FrequencyWeekly {
		return 52
	}
	return 252
}

// Valid reports whether the frequency is one of the supported values
func (f Frequency) Valid() bool {
	return f == FrequencyDaily || f == FrequencyWeekly
}

// Candle represents one OHLCV bar
type Candle struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adjusted_close"`
	Volume   *int64    `json:"volume,omitempty"`
}

// OrderSide is the direction of an order
type OrderSide string

const (
	OrderSideBuy  OrderSide = "BUY"
	OrderSideSell OrderSide = "SELL"
)

// Order represents a market order emitted by a strategy.
// Quantities are fractional; Notional = Quantity × Price at decision time.
type Order struct {
	Date       time.Time `json:"date"`
	Symbol     string    `json:"symbol"`
	Side       OrderSide `json:"side"`
	Quantity   float64   `json:"quantity"`
	Price      float64   `json:"price"`
	Notional   float64   `json:"notional"`
	Commission float64   `json:"commission"`
	Multiplier float64   `json:"multiplier"`
	Scaled     bool      `json:"scaled"`
}

// CashFlow is an external contribution or withdrawal, broker-side sign
// convention (deposit = positive). Only analytics consumes these; the
// allocation decision never reads them.
type CashFlow struct {
	Date   time.Time `json:"date"`
	Amount float64   `json:"amount"`
}

// EquityPoint is one sample of total portfolio value
type EquityPoint struct {
	Date  time.Time `json:"date"`
	Value float64   `json:"value"`
}

// Snapshot captures the portfolio state at the end of a bar
type Snapshot struct {
	Date      time.Time          `json:"date"`
	Value     float64            `json:"value"`
	Cash      float64            `json:"cash"`
	Positions map[string]float64 `json:"positions,omitempty"`
}

// ConfigError reports an invalid run or strategy configuration.
// Construction-time validation fails fast with this type before any bar
// is processed.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// NewConfigError creates a configuration error for a field
func NewConfigError(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}
