package allocation

import (
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundpulse/fundpulse/internal/domain"
	"github.com/fundpulse/fundpulse/internal/modules/series"
)

// fundUniverse builds aligned synthetic series for the given funds, each with
// its own drift and noise level.
func fundUniverse(t *testing.T, n, days int) map[string]series.FundSeries {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	start := time.Date(2023, 1, 2, 0, 0, 0, 0, time.UTC)

	panel := make(domain.Panel, 0, n*days)
	for f := 0; f < n; f++ {
		fund := fmt.Sprintf("FUND%d", f)
		price := 100.0
		drift := 0.0002 + 0.0002*float64(f)
		noise := 0.008 + 0.004*float64(f)
		for i := 0; i < days; i++ {
			price *= 1 + drift + rng.NormFloat64()*noise
			panel = append(panel, domain.Observation{
				Date: start.AddDate(0, 0, i), Fund: fund,
				Open: price, High: price * 1.01, Low: price * 0.99,
				Close: price, Volume: 1000,
			})
		}
	}

	built, err := series.NewBuilder(252).Build(panel)
	require.NoError(t, err)
	return built
}

func TestOptimizeSatisfiesConstraints(t *testing.T) {
	byFund := fundUniverse(t, 4, 300)

	opt := NewOptimizer(0.05, 0.5, 0.02)
	result := opt.Optimize(byFund)

	require.Equal(t, domain.StatusOK, result.Status)
	require.Len(t, result.Weights, 4)

	sum := 0.0
	for fund, w := range result.Weights {
		assert.GreaterOrEqual(t, w, 0.05-1e-6, "fund %s below lower bound", fund)
		assert.LessOrEqual(t, w, 0.5+1e-6, "fund %s above upper bound", fund)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-6)

	assert.GreaterOrEqual(t, result.DiversificationScore, 0.0)
	assert.LessOrEqual(t, result.DiversificationScore, 1.0)
	assert.Greater(t, result.ExpectedVolatility, 0.0)
}

func TestOptimizeSingleFundInsufficient(t *testing.T) {
	byFund := fundUniverse(t, 1, 100)

	result := NewOptimizer(0.05, 0.5, 0.02).Optimize(byFund)

	assert.True(t, result.Empty())
	assert.Equal(t, domain.StatusInsufficientData, result.Status)
}

func TestOptimizeInfeasibleBounds(t *testing.T) {
	byFund := fundUniverse(t, 3, 100)

	// Max 0.25 across 3 funds can reach at most 0.75 < 1.
	result := NewOptimizer(0.05, 0.25, 0.02).Optimize(byFund)

	assert.True(t, result.Empty())
	assert.Equal(t, domain.StatusInfeasible, result.Status)
}

func TestOptimizeTightBoundsForceEqualWeights(t *testing.T) {
	byFund := fundUniverse(t, 4, 300)

	// lower == upper == 1/n leaves a single feasible point.
	result := NewOptimizer(0.25, 0.25, 0.02).Optimize(byFund)

	require.Equal(t, domain.StatusOK, result.Status)
	for _, w := range result.Weights {
		assert.InDelta(t, 0.25, w, 1e-6)
	}
	assert.InDelta(t, 1.0, result.DiversificationScore, 1e-6)
}

func TestOptimizeDeterministic(t *testing.T) {
	byFund := fundUniverse(t, 4, 300)
	opt := NewOptimizer(0.05, 0.5, 0.02)

	first := opt.Optimize(byFund)
	second := opt.Optimize(byFund)

	// Same input and configuration reproduce the identical allocation.
	assert.Equal(t, first, second)
}

func TestOptimizeSolverFailureAbsorbed(t *testing.T) {
	byFund := fundUniverse(t, 3, 100)

	opt := NewOptimizerWithSolver(0.05, 0.5, 0.02, failingSolver{})
	result := opt.Optimize(byFund)

	assert.True(t, result.Empty())
	assert.Equal(t, domain.StatusNotConverged, result.Status)
}

func TestDiversificationScore(t *testing.T) {
	assert.InDelta(t, 1.0, diversificationScore([]float64{0.25, 0.25, 0.25, 0.25}), 1e-12)
	assert.InDelta(t, 0.0, diversificationScore([]float64{1, 0, 0, 0}), 1e-12)

	mixed := diversificationScore([]float64{0.4, 0.3, 0.2, 0.1})
	assert.Greater(t, mixed, 0.0)
	assert.Less(t, mixed, 1.0)
}

func TestNormalizeWithinBounds(t *testing.T) {
	weights := []float64{0.5, 0.5, 0.5}
	require.NoError(t, normalizeWithinBounds(weights, 0.05, 0.5))

	sum := 0.0
	for _, w := range weights {
		assert.GreaterOrEqual(t, w, 0.05-1e-9)
		assert.LessOrEqual(t, w, 0.5+1e-9)
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-6)
}

func TestSampleCovarianceSymmetric(t *testing.T) {
	returns := [][]float64{
		{0.01, -0.02, 0.03, 0.005},
		{-0.01, 0.02, -0.01, 0.01},
	}

	cov, err := sampleCovariance(returns)
	require.NoError(t, err)
	assert.Equal(t, cov[0][1], cov[1][0])
	assert.Greater(t, cov[0][0], 0.0)
}

func TestLedoitWolfKeepsPositiveDiagonal(t *testing.T) {
	returns := [][]float64{
		{0.01, -0.02, 0.03, 0.005, -0.01},
		{-0.01, 0.02, -0.01, 0.01, 0.02},
		{0.005, 0.001, -0.002, 0.004, -0.003},
	}

	sample, err := sampleCovariance(returns)
	require.NoError(t, err)

	shrunk, err := applyLedoitWolfShrinkage(sample)
	require.NoError(t, err)

	for i := range shrunk {
		assert.Greater(t, shrunk[i][i], 0.0)
		for j := range shrunk[i] {
			assert.InDelta(t, shrunk[j][i], shrunk[i][j], 1e-12)
			assert.False(t, math.IsNaN(shrunk[i][j]))
		}
	}
}

type failingSolver struct{}

func (failingSolver) Solve(mu []float64, cov [][]float64, lower, upper, riskFreeRate float64) ([]float64, error) {
	return nil, fmt.Errorf("%w: status=MethodConverge", errNotConverged)
}
