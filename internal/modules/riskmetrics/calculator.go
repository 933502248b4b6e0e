// Package riskmetrics computes annualized risk and return diagnostics per
// fund and for an equal-weighted portfolio across all funds.
package riskmetrics

import (
	"context"
	"sort"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fundpulse/fundpulse/internal/domain"
	"github.com/fundpulse/fundpulse/internal/modules/series"
	"github.com/fundpulse/fundpulse/pkg/formulas"
)

// Calculator derives risk metrics from normalized fund series.
type Calculator struct {
	riskFreeRate float64
	logger       zerolog.Logger
}

// NewCalculator creates a calculator using the given annual risk-free rate.
func NewCalculator(riskFreeRate float64) *Calculator {
	return &Calculator{
		riskFreeRate: riskFreeRate,
		logger:       log.With().Str("component", "risk_metrics").Logger(),
	}
}

// Calculate computes per-fund metrics and the equal-weighted portfolio
// aggregate. Every fund present in the input appears in the result; a fund
// whose series is too short gets zero-valued metrics rather than being
// dropped. Funds are processed concurrently.
func (c *Calculator) Calculate(ctx context.Context, byFund map[string]series.FundSeries) domain.RiskMetricsResult {
	result := domain.RiskMetricsResult{
		Funds:  make(map[string]domain.RiskMetrics, len(byFund)),
		Status: domain.StatusOK,
	}
	if len(byFund) == 0 {
		result.Status = domain.StatusInsufficientData
		return result
	}

	funds := make([]string, 0, len(byFund))
	for fund := range byFund {
		funds = append(funds, fund)
	}
	sort.Strings(funds)

	metrics := make([]domain.RiskMetrics, len(funds))
	g, ctx := errgroup.WithContext(ctx)
	for i, fund := range funds {
		i, fund := i, fund
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			metrics[i] = c.calculateFund(byFund[fund])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		c.logger.Error().Err(err).Msg("Risk metrics calculation aborted")
		result.Status = domain.StatusFailed
		return result
	}

	usable := 0
	for i, fund := range funds {
		result.Funds[fund] = metrics[i]
		if !byFund[fund].Empty() {
			usable++
		}
	}
	if usable == 0 {
		result.Status = domain.StatusInsufficientData
		return result
	}

	result.Portfolio = c.calculatePortfolio(byFund)
	return result
}

func (c *Calculator) calculateFund(s series.FundSeries) domain.RiskMetrics {
	if s.Empty() {
		return domain.RiskMetrics{}
	}

	annualizedReturn := formulas.AnnualizedReturn(s.Returns)
	annualizedVol := formulas.AnnualizedVolatility(s.Returns)

	return domain.RiskMetrics{
		AnnualizedReturn:     annualizedReturn,
		AnnualizedVolatility: annualizedVol,
		SharpeRatio:          formulas.SharpeRatio(annualizedReturn, annualizedVol, c.riskFreeRate),
		ValueAtRisk95:        formulas.HistoricalVaR(s.Returns, 0.95),
		ValueAtRisk99:        formulas.HistoricalVaR(s.Returns, 0.99),
		ConditionalVaR95:     formulas.ConditionalVaR(s.Returns, 0.95),
		MaxDrawdown:          formulas.MaxDrawdown(s.Closes),
		TotalReturn:          formulas.TotalReturn(s.Closes),
	}
}

// calculatePortfolio aggregates an equal-weighted portfolio over the funds
// with usable series. Fund returns are aligned onto a common calendar first,
// so the portfolio volatility reflects cross-fund covariance.
func (c *Calculator) calculatePortfolio(byFund map[string]series.FundSeries) *domain.PortfolioMetrics {
	aligned := series.Align(byFund)
	if len(aligned.Funds) == 0 || len(aligned.Dates) < 2 {
		return nil
	}

	matrix := aligned.ReturnsMatrix()
	n := len(matrix[0])
	portfolioReturns := make([]float64, n)
	weight := 1.0 / float64(len(matrix))
	for _, fundReturns := range matrix {
		for j, r := range fundReturns {
			portfolioReturns[j] += weight * r
		}
	}

	annualizedReturn := formulas.AnnualizedReturn(portfolioReturns)
	annualizedVol := formulas.AnnualizedVolatility(portfolioReturns)

	return &domain.PortfolioMetrics{
		PortfolioReturn:     annualizedReturn,
		PortfolioVolatility: annualizedVol,
		PortfolioSharpe:     formulas.SharpeRatio(annualizedReturn, annualizedVol, c.riskFreeRate),
	}
}
