package riskmetrics

import (
	"context"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundpulse/fundpulse/internal/domain"
	"github.com/fundpulse/fundpulse/internal/modules/series"
)

func syntheticSeries(t *testing.T, fund string, seed int64, n int) map[string]series.FundSeries {
	t.Helper()
	panel := syntheticPanel(fund, seed, n)
	built, err := series.NewBuilder(252).Build(panel)
	require.NoError(t, err)
	return built
}

func syntheticPanel(fund string, seed int64, n int) domain.Panel {
	rng := rand.New(rand.NewSource(seed))
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	price := 100.0

	panel := make(domain.Panel, 0, n)
	for i := 0; i < n; i++ {
		price *= 1 + rng.NormFloat64()*0.015 + 0.0005
		panel = append(panel, domain.Observation{
			Date: start.AddDate(0, 0, i), Fund: fund,
			Open: price, High: price * 1.01, Low: price * 0.99,
			Close: price, Volume: 1000 + rng.Float64()*500,
		})
	}
	return panel
}

func TestCalculateSingleFund(t *testing.T) {
	byFund := syntheticSeries(t, "VTI", 42, 300)

	calc := NewCalculator(0.02)
	result := calc.Calculate(context.Background(), byFund)

	require.Equal(t, domain.StatusOK, result.Status)
	m, ok := result.Funds["VTI"]
	require.True(t, ok)

	assert.Greater(t, m.AnnualizedVolatility, 0.0)
	assert.LessOrEqual(t, m.ValueAtRisk99, m.ValueAtRisk95)
	assert.LessOrEqual(t, m.ConditionalVaR95, m.ValueAtRisk95)
	assert.LessOrEqual(t, m.MaxDrawdown, 0.0)
}

func TestCalculateShortSeriesGetsZeros(t *testing.T) {
	panel := syntheticPanel("BND", 7, 1) // single observation
	built, err := series.NewBuilder(252).Build(panel)
	require.NoError(t, err)

	calc := NewCalculator(0.02)
	result := calc.Calculate(context.Background(), built)

	// The fund still appears, zero-valued, and the result reports
	// insufficient data rather than failure.
	m, ok := result.Funds["BND"]
	require.True(t, ok)
	assert.Equal(t, domain.RiskMetrics{}, m)
	assert.Equal(t, domain.StatusInsufficientData, result.Status)
	assert.Nil(t, result.Portfolio)
}

func TestCalculateEmptyInput(t *testing.T) {
	calc := NewCalculator(0.02)
	result := calc.Calculate(context.Background(), map[string]series.FundSeries{})

	assert.Equal(t, domain.StatusInsufficientData, result.Status)
	assert.Empty(t, result.Funds)
}

func TestCalculatePortfolioAggregate(t *testing.T) {
	byFund := syntheticSeries(t, "VTI", 42, 300)
	for fund, s := range syntheticSeries(t, "BND", 43, 300) {
		byFund[fund] = s
	}

	calc := NewCalculator(0.02)
	result := calc.Calculate(context.Background(), byFund)

	require.Equal(t, domain.StatusOK, result.Status)
	require.NotNil(t, result.Portfolio)
	assert.Greater(t, result.Portfolio.PortfolioVolatility, 0.0)

	// Diversification: equal-weighted portfolio volatility does not exceed
	// the largest single-fund volatility.
	maxVol := 0.0
	for _, m := range result.Funds {
		if m.AnnualizedVolatility > maxVol {
			maxVol = m.AnnualizedVolatility
		}
	}
	assert.LessOrEqual(t, result.Portfolio.PortfolioVolatility, maxVol+1e-9)
}

func TestCalculateConstantPriceFund(t *testing.T) {
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)
	panel := make(domain.Panel, 0, 60)
	for i := 0; i < 60; i++ {
		panel = append(panel, domain.Observation{
			Date: start.AddDate(0, 0, i), Fund: "BND",
			Open: 100, High: 100, Low: 100, Close: 100, Volume: 500,
		})
	}
	built, err := series.NewBuilder(252).Build(panel)
	require.NoError(t, err)

	result := NewCalculator(0.02).Calculate(context.Background(), built)

	// A flat price history yields exact zeros, never NaN or infinity.
	m := result.Funds["BND"]
	assert.Equal(t, 0.0, m.AnnualizedVolatility)
	assert.Equal(t, 0.0, m.SharpeRatio)
	assert.Equal(t, 0.0, m.MaxDrawdown)
	assert.Equal(t, 0.0, m.TotalReturn)
	assert.False(t, math.IsNaN(m.AnnualizedReturn))
	assert.Equal(t, 0.0, m.AnnualizedReturn)
}

func TestCalculateDeterministic(t *testing.T) {
	byFund := syntheticSeries(t, "VTI", 42, 300)
	calc := NewCalculator(0.02)

	first := calc.Calculate(context.Background(), byFund)
	second := calc.Calculate(context.Background(), byFund)

	assert.Equal(t, first.Funds, second.Funds)
}
