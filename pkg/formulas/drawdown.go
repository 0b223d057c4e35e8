package formulas

// CalculateMaxDrawdown calculates the maximum drawdown from a value series
//
// Drawdown Formula:
//
//	Drawdown = (Peak Value - Current Value) / Peak Value
//	Max Drawdown = Maximum of all drawdowns
//
// Args:
//
//	values: Array of portfolio values or prices, in time order
//
// Returns:
//
//	Maximum drawdown as positive percentage (0.25 = 25% loss from peak) or nil
func CalculateMaxDrawdown(values []float64) *float64 {
	if len(values) < 2 {
		return nil
	}

	maxDrawdown := 0.0
	peak := values[0]

	for _, v := range values {
		if v > peak {
			peak = v
		}

		if peak > 0 {
			drawdown := (peak - v) / peak
			if drawdown > maxDrawdown {
				maxDrawdown = drawdown
			}
		}
	}

	return &maxDrawdown
}

// DrawdownSeries computes the running drawdown at every point of a value series.
// Each element is value/peak - 1, so zero at new peaks and negative below them.
func DrawdownSeries(values []float64) []float64 {
	out := make([]float64, len(values))
	if len(values) == 0 {
		return out
	}

	peak := values[0]
	for i, v := range values {
		if v >= peak {
			peak = v
		}
		if peak > 0 {
			out[i] = v/peak - 1.0
		}
	}

	return out
}
