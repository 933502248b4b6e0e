// Package allocation recommends portfolio weights maximizing the Sharpe
// ratio under full-investment and per-asset box constraints.
package allocation

import (
	"errors"
	"math"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fundpulse/fundpulse/internal/domain"
	"github.com/fundpulse/fundpulse/internal/modules/series"
	"github.com/fundpulse/fundpulse/pkg/formulas"
)

// Optimizer turns per-fund series into an allocation recommendation.
type Optimizer struct {
	minWeight    float64
	maxWeight    float64
	riskFreeRate float64
	solver       ConstrainedSolver
	logger       zerolog.Logger
}

// NewOptimizer creates an optimizer using the default penalty-method solver.
func NewOptimizer(minWeight, maxWeight, riskFreeRate float64) *Optimizer {
	return NewOptimizerWithSolver(minWeight, maxWeight, riskFreeRate, NewPenaltySolver())
}

// NewOptimizerWithSolver creates an optimizer with a custom solver.
func NewOptimizerWithSolver(minWeight, maxWeight, riskFreeRate float64, solver ConstrainedSolver) *Optimizer {
	return &Optimizer{
		minWeight:    minWeight,
		maxWeight:    maxWeight,
		riskFreeRate: riskFreeRate,
		solver:       solver,
		logger:       log.With().Str("component", "allocation_optimizer").Logger(),
	}
}

// Optimize computes the max-Sharpe allocation over the funds with usable
// return series. Infeasible problems (fewer than two funds, or box bounds
// that cannot sum to 1) and failed solves yield an empty result whose Status
// says why; they are never reported as errors.
func (o *Optimizer) Optimize(byFund map[string]series.FundSeries) domain.AllocationResult {
	empty := domain.AllocationResult{Weights: map[string]float64{}}

	aligned := series.Align(byFund)
	n := len(aligned.Funds)
	if n < 2 {
		o.logger.Warn().Int("funds", n).Msg("Too few funds to optimize")
		empty.Status = domain.StatusInsufficientData
		return empty
	}

	if o.minWeight*float64(n) > 1+weightTol || o.maxWeight*float64(n) < 1-weightTol {
		o.logger.Warn().
			Float64("min_weight", o.minWeight).
			Float64("max_weight", o.maxWeight).
			Int("funds", n).
			Msg("Box bounds cannot satisfy full investment")
		empty.Status = domain.StatusInfeasible
		return empty
	}

	matrix := aligned.ReturnsMatrix()
	if len(matrix[0]) < 2 {
		empty.Status = domain.StatusInsufficientData
		return empty
	}

	mu := make([]float64, n)
	for i, fundReturns := range matrix {
		mu[i] = formulas.AnnualizedReturn(fundReturns)
	}

	dailyCov, err := sampleCovariance(matrix)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Covariance estimation failed")
		empty.Status = domain.StatusInsufficientData
		return empty
	}
	cov, err := applyLedoitWolfShrinkage(dailyCov)
	if err != nil {
		empty.Status = domain.StatusFailed
		return empty
	}
	// Annualize the daily covariance to match the return vector.
	for i := range cov {
		for j := range cov[i] {
			cov[i][j] *= formulas.TradingDaysPerYear
		}
	}

	weights, err := o.solver.Solve(mu, cov, o.minWeight, o.maxWeight, o.riskFreeRate)
	if err != nil {
		o.logger.Warn().Err(err).Msg("Allocation solve failed")
		if errors.Is(err, errNotConverged) {
			empty.Status = domain.StatusNotConverged
		} else {
			empty.Status = domain.StatusFailed
		}
		return empty
	}

	return o.buildResult(aligned.Funds, weights, mu, cov)
}

func (o *Optimizer) buildResult(funds []string, weights, mu []float64, cov [][]float64) domain.AllocationResult {
	n := len(funds)

	var expectedReturn, variance float64
	for i := 0; i < n; i++ {
		expectedReturn += mu[i] * weights[i]
		for j := 0; j < n; j++ {
			variance += weights[i] * weights[j] * cov[i][j]
		}
	}
	expectedVol := math.Sqrt(math.Max(variance, 0))

	byFund := make(map[string]float64, n)
	for i, fund := range funds {
		byFund[fund] = weights[i]
	}

	return domain.AllocationResult{
		Weights:              byFund,
		ExpectedReturn:       expectedReturn,
		ExpectedVolatility:   expectedVol,
		SharpeRatio:          formulas.SharpeRatio(expectedReturn, expectedVol, o.riskFreeRate),
		DiversificationScore: diversificationScore(weights),
		Status:               domain.StatusOK,
	}
}

// diversificationScore maps the Herfindahl concentration of the weights to
// [0, 1]: 1 for equal weights, 0 for a single-asset portfolio.
func diversificationScore(weights []float64) float64 {
	n := len(weights)
	if n < 2 {
		return 0
	}

	var herfindahl float64
	for _, w := range weights {
		herfindahl += w * w
	}

	minH := 1.0 / float64(n)
	return 1 - (herfindahl-minH)/(1-minH)
}
