package formulas

// HistoricalVaR returns the Value at Risk at the given confidence level,
// estimated via historical simulation: the empirical (1-confidence)-quantile
// of the daily-return distribution. The result is a (usually negative)
// return threshold; higher confidence selects a more extreme quantile.
func HistoricalVaR(dailyReturns []float64, confidence float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}
	return Quantile(dailyReturns, 1-confidence)
}

// ConditionalVaR returns the expected loss in the tail beyond VaR: the mean
// of all returns at or below the VaR threshold at the given confidence.
// By construction CVaR <= VaR.
func ConditionalVaR(dailyReturns []float64, confidence float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}

	threshold := HistoricalVaR(dailyReturns, confidence)

	var sum float64
	count := 0
	for _, r := range dailyReturns {
		if r <= threshold {
			sum += r
			count++
		}
	}
	if count == 0 {
		return threshold
	}
	return sum / float64(count)
}

// TotalReturn is the simple return over the whole price history.
func TotalReturn(prices []float64) float64 {
	if len(prices) < 2 || prices[0] <= 0 {
		return 0
	}
	return prices[len(prices)-1]/prices[0] - 1
}
