package formulas

// DrawdownSeries computes the drawdown from the running peak for each price:
// drawdown[i] = (price[i] - peak[i]) / peak[i], where peak is the maximum
// close observed so far. Values are <= 0, with 0 at every new peak.
func DrawdownSeries(prices []float64) []float64 {
	if len(prices) == 0 {
		return []float64{}
	}

	drawdowns := make([]float64, len(prices))
	peak := prices[0]
	for i, price := range prices {
		if price > peak {
			peak = price
		}
		if peak > 0 {
			drawdowns[i] = (price - peak) / peak
		}
	}
	return drawdowns
}

// MaxDrawdown returns the most negative value of the drawdown series.
// A monotonically rising (or constant) price history yields 0.
func MaxDrawdown(prices []float64) float64 {
	minDD := 0.0
	for _, dd := range DrawdownSeries(prices) {
		if dd < minDD {
			minDD = dd
		}
	}
	return minDD
}
