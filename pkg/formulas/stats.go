package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// StdDev calculates the sample standard deviation of a slice of float64 values
func StdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.StdDev(data, nil)
}

// PopStdDev calculates the population standard deviation of a slice of float64 values.
// Return-series risk metrics use the population form, matching how the
// analyzers treat the full observed series as the population.
func PopStdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.PopStdDev(data, nil)
}

// CalculateReturns converts prices to percentage returns
// Returns[i] = (Price[i] - Price[i-1]) / Price[i-1]
func CalculateReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}

	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] != 0 {
			returns[i-1] = (prices[i] - prices[i-1]) / prices[i-1]
		}
	}

	return returns
}

// AnnualizedVolatility calculates annualized volatility from periodic returns
//
// Formula: Population Std Dev of Returns × sqrt(periods per year)
//
// Args:
//
//	returns: Array of periodic returns (daily or weekly)
//	periodsPerYear: 252 for daily returns, 52 for weekly
//
// Returns:
//
//	Annualized volatility as decimal (0.18 = 18%)
func AnnualizedVolatility(returns []float64, periodsPerYear int) float64 {
	if len(returns) == 0 {
		return 0
	}

	return PopStdDev(returns) * math.Sqrt(float64(periodsPerYear))
}

// CumulativeReturn compounds a series of periodic returns
//
// Formula: Π(1 + r_i) - 1
func CumulativeReturn(returns []float64) float64 {
	cumulative := 1.0
	for _, r := range returns {
		cumulative *= 1.0 + r
	}
	return cumulative - 1.0
}

// CalculateCAGR calculates the compound annual growth rate implied by a
// cumulative return realized over a span of calendar days
//
// Formula: CAGR = (1 + cumulative)^(1/years) - 1, years = days/365.25
//
// Args:
//
//	cumulativeReturn: Total compounded return over the span
//	days: Calendar days in the span
//
// Returns:
//
//	CAGR as decimal or nil if the span is empty or the base is non-positive
func CalculateCAGR(cumulativeReturn float64, days int) *float64 {
	if days <= 0 {
		return nil
	}

	base := 1.0 + cumulativeReturn
	if base <= 0 {
		return nil
	}

	years := float64(days) / 365.25
	cagr := math.Pow(base, 1.0/years) - 1.0
	return &cagr
}

// isNaN checks if a float64 is NaN
func isNaN(f float64) bool {
	return f != f
}
