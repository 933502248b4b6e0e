package allocation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

// ConstrainedSolver finds the weight vector maximizing the Sharpe ratio
// subject to a full-investment constraint and uniform box bounds. Returned
// weights sum to 1 within tolerance and respect [lower, upper] per asset.
type ConstrainedSolver interface {
	Solve(mu []float64, cov [][]float64, lower, upper, riskFreeRate float64) ([]float64, error)
}

// errNotConverged marks solver runs that finished without reaching a
// successful convergence status.
var errNotConverged = fmt.Errorf("solver did not converge")

const (
	penaltyWeight = 1000.0
	weightTol     = 1e-6
)

// PenaltySolver handles the constrained maximization by folding the
// full-investment constraint into the objective as a quadratic penalty and
// projecting iterates onto the box bounds.
type PenaltySolver struct{}

// NewPenaltySolver creates the default gradient-based solver.
func NewPenaltySolver() *PenaltySolver {
	return &PenaltySolver{}
}

// Solve minimizes -(mu'w - rf) / sqrt(w'Σw) + penalty*(Σw - 1)^2 over the
// box, starting from equal weights, with BFGS and a Nelder-Mead fallback.
func (ps *PenaltySolver) Solve(mu []float64, cov [][]float64, lower, upper, riskFreeRate float64) ([]float64, error) {
	n := len(mu)
	if n == 0 {
		return nil, fmt.Errorf("no assets provided")
	}
	if len(cov) != n {
		return nil, fmt.Errorf("covariance matrix size %d doesn't match asset count %d", len(cov), n)
	}

	sigma := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		if len(cov[i]) != n {
			return nil, fmt.Errorf("covariance matrix row %d has size %d, expected %d", i, len(cov[i]), n)
		}
		for j := 0; j < n; j++ {
			sigma.Set(i, j, cov[i][j])
		}
	}

	problem := optimize.Problem{
		Func: func(x []float64) float64 {
			xProj := projectToBounds(x, lower, upper)

			var excess, variance float64
			for i := 0; i < n; i++ {
				excess += mu[i] * xProj[i]
				for j := 0; j < n; j++ {
					variance += xProj[i] * xProj[j] * sigma.At(i, j)
				}
			}
			excess -= riskFreeRate
			stdDev := math.Sqrt(math.Max(variance, 1e-10))

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += xProj[i]
			}

			obj := -excess / stdDev
			obj += penaltyWeight * (sum - 1.0) * (sum - 1.0)
			return obj
		},
		Grad: func(grad, x []float64) {
			xProj := projectToBounds(x, lower, upper)

			var excess, variance float64
			for i := 0; i < n; i++ {
				excess += mu[i] * xProj[i]
				for j := 0; j < n; j++ {
					variance += xProj[i] * xProj[j] * sigma.At(i, j)
				}
			}
			excess -= riskFreeRate
			stdDev := math.Sqrt(math.Max(variance, 1e-10))

			for i := 0; i < n; i++ {
				var dVariance float64
				for j := 0; j < n; j++ {
					dVariance += 2 * sigma.At(i, j) * xProj[j]
				}
				grad[i] = -mu[i]/stdDev + excess*dVariance/(2*stdDev*stdDev*stdDev)
			}

			sum := 0.0
			for i := 0; i < n; i++ {
				sum += xProj[i]
			}
			for i := 0; i < n; i++ {
				grad[i] += 2 * penaltyWeight * (sum - 1.0)
			}
		},
	}

	initial := make([]float64, n)
	for i := range initial {
		initial[i] = 1.0 / float64(n)
	}

	successStatuses := map[optimize.Status]bool{
		optimize.Success:             true,
		optimize.GradientThreshold:   true,
		optimize.FunctionConvergence: true,
	}

	result, err := optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.BFGS{})
	if err != nil || !successStatuses[result.Status] {
		result, err = optimize.Minimize(problem, initial, &optimize.Settings{}, &optimize.NelderMead{})
		if err != nil {
			return nil, fmt.Errorf("optimization failed: %w", err)
		}
		if !successStatuses[result.Status] {
			return nil, fmt.Errorf("%w: status=%v", errNotConverged, result.Status)
		}
	}

	weights := projectToBounds(result.X, lower, upper)
	if err := normalizeWithinBounds(weights, lower, upper); err != nil {
		return nil, err
	}
	return weights, nil
}

// projectToBounds clamps each weight to [lower, upper].
func projectToBounds(x []float64, lower, upper float64) []float64 {
	proj := make([]float64, len(x))
	for i := range x {
		proj[i] = math.Max(lower, math.Min(upper, x[i]))
	}
	return proj
}

// normalizeWithinBounds adjusts weights in place until they sum to 1 within
// tolerance while staying inside the box. The residual is spread across the
// weights that still have slack in the needed direction.
func normalizeWithinBounds(weights []float64, lower, upper float64) error {
	for iter := 0; iter < 100; iter++ {
		sum := 0.0
		for _, w := range weights {
			sum += w
		}
		residual := 1.0 - sum
		if math.Abs(residual) < weightTol {
			return nil
		}

		free := 0
		for _, w := range weights {
			if residual > 0 && w < upper-weightTol/2 {
				free++
			}
			if residual < 0 && w > lower+weightTol/2 {
				free++
			}
		}
		if free == 0 {
			return fmt.Errorf("cannot normalize weights within bounds [%f, %f]", lower, upper)
		}

		step := residual / float64(free)
		for i, w := range weights {
			if residual > 0 && w < upper-weightTol/2 {
				weights[i] = math.Min(upper, w+step)
			}
			if residual < 0 && w > lower+weightTol/2 {
				weights[i] = math.Max(lower, w+step)
			}
		}
	}
	return fmt.Errorf("weight normalization did not converge")
}
