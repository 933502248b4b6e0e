package allocation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"
)

// sampleCovariance builds the sample covariance matrix from per-fund return
// series of equal length (funds in row order).
func sampleCovariance(returns [][]float64) ([][]float64, error) {
	n := len(returns)
	if n == 0 {
		return nil, fmt.Errorf("no return series provided")
	}
	length := len(returns[0])
	for i, r := range returns {
		if len(r) != length {
			return nil, fmt.Errorf("inconsistent return lengths: row %d has %d, expected %d", i, len(r), length)
		}
	}
	if length < 2 {
		return nil, fmt.Errorf("insufficient data: need at least 2 observations, got %d", length)
	}

	cov := make([][]float64, n)
	for i := range cov {
		cov[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			c := stat.Covariance(returns[i], returns[j], nil)
			cov[i][j] = c
			cov[j][i] = c
		}
	}
	return cov, nil
}

// applyLedoitWolfShrinkage shrinks the sample covariance matrix towards a
// constant-correlation target to improve conditioning with limited history.
//
// Reference: Ledoit, O., & Wolf, M. (2004). "A well-conditioned estimator
// for large-dimensional covariance matrices"
func applyLedoitWolfShrinkage(sampleCov [][]float64) ([][]float64, error) {
	n := len(sampleCov)
	if n == 0 {
		return nil, fmt.Errorf("empty covariance matrix")
	}
	if n == 1 {
		return sampleCov, nil
	}

	var avgVar, avgCov float64
	for i := 0; i < n; i++ {
		avgVar += sampleCov[i][i]
		for j := 0; j < n; j++ {
			if i != j {
				avgCov += sampleCov[i][j]
			}
		}
	}
	avgVar /= float64(n)
	avgCov /= float64(n * (n - 1))

	target := make([][]float64, n)
	for i := range target {
		target[i] = make([]float64, n)
		for j := range target[i] {
			if i == j {
				target[i][j] = avgVar
			} else if avgVar > 0 {
				target[i][j] = avgCov
			}
		}
	}

	shrinkage := 0.2
	if n > 2 && avgVar > 0 {
		var sumSqDiff float64
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				diff := sampleCov[i][j] - target[i][j]
				sumSqDiff += diff * diff
			}
		}
		meanSqDiff := sumSqDiff / float64(n*n)

		var sum, sumSq float64
		for i := 0; i < n; i++ {
			for j := 0; j < n; j++ {
				sum += sampleCov[i][j]
				sumSq += sampleCov[i][j] * sampleCov[i][j]
			}
		}
		mean := sum / float64(n*n)
		varSample := sumSq/float64(n*n) - mean*mean

		if varSample > 0 && meanSqDiff > 0 {
			shrinkage = math.Min(0.5, math.Max(0.0, varSample/(varSample+meanSqDiff)))
		}
	}

	shrunk := make([][]float64, n)
	for i := 0; i < n; i++ {
		shrunk[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			shrunk[i][j] = (1-shrinkage)*sampleCov[i][j] + shrinkage*target[i][j]
		}
	}
	return shrunk, nil
}
