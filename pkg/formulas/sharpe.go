package formulas

import (
	"math"
)

// CalculateSharpeRatio calculates the annualized Sharpe ratio from periodic returns
//
// Sharpe Ratio Formula:
//
//	rf_period = (1 + rf_annual)^(1/periods per year) - 1
//	Sharpe = mean(returns - rf_period) / population stdev(returns - rf_period)
//	Annualized: Sharpe × sqrt(periods per year)
//
// The per-period risk-free rate is compounded down from the annual rate, not
// divided, so the subtraction stays consistent with compounded return series.
//
// Args:
//
//	returns: Array of periodic returns (daily, weekly)
//	riskFreeRate: Risk-free rate (annual, as decimal, e.g., 0.02 for 2%)
//	periodsPerYear: Number of periods per year (252 for daily, 52 for weekly)
//
// Returns:
//
//	Annualized Sharpe ratio or nil if insufficient data or zero dispersion
func CalculateSharpeRatio(returns []float64, riskFreeRate float64, periodsPerYear int) *float64 {
	if len(returns) < 2 || periodsPerYear <= 0 {
		return nil
	}

	rfPeriod := math.Pow(1.0+riskFreeRate, 1.0/float64(periodsPerYear)) - 1.0

	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - rfPeriod
	}

	sd := PopStdDev(excess)
	if sd <= 0 || isNaN(sd) {
		return nil
	}

	sharpe := (Mean(excess) / sd) * math.Sqrt(float64(periodsPerYear))
	return &sharpe
}
