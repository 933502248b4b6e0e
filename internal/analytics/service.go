// Package analytics composes the series builder, risk metrics calculator,
// anomaly detector, and allocation optimizer into the platform's operations.
package analytics

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fundpulse/fundpulse/internal/domain"
	"github.com/fundpulse/fundpulse/internal/modules/allocation"
	"github.com/fundpulse/fundpulse/internal/modules/anomaly"
	"github.com/fundpulse/fundpulse/internal/modules/riskmetrics"
	"github.com/fundpulse/fundpulse/internal/modules/series"
)

// Service exposes the analytical operations over raw observation panels.
type Service struct {
	builder    *series.Builder
	calculator *riskmetrics.Calculator
	detector   *anomaly.Detector
	optimizer  *allocation.Optimizer
	logger     zerolog.Logger
	now        func() time.Time
}

// New creates a fully wired analytics service.
func New(
	builder *series.Builder,
	calculator *riskmetrics.Calculator,
	detector *anomaly.Detector,
	optimizer *allocation.Optimizer,
) *Service {
	return &Service{
		builder:    builder,
		calculator: calculator,
		detector:   detector,
		optimizer:  optimizer,
		logger:     log.With().Str("component", "analytics").Logger(),
		now:        time.Now,
	}
}

// CalculateRiskMetrics normalizes the panel and computes per-fund and
// portfolio risk metrics. The only error returned is a validation failure
// on the input panel.
func (s *Service) CalculateRiskMetrics(ctx context.Context, panel domain.Panel) (domain.RiskMetricsResult, error) {
	byFund, err := s.builder.Build(panel)
	if err != nil {
		return domain.RiskMetricsResult{}, err
	}
	return s.calculator.Calculate(ctx, byFund), nil
}

// DetectAnomalies normalizes the panel and flags unusual sessions per fund.
func (s *Service) DetectAnomalies(ctx context.Context, panel domain.Panel) (domain.AnomalyDetectionResult, error) {
	byFund, err := s.builder.Build(panel)
	if err != nil {
		return domain.AnomalyDetectionResult{}, err
	}
	return s.detector.Detect(byFund), nil
}

// OptimizeAllocation normalizes the panel and solves for max-Sharpe weights.
func (s *Service) OptimizeAllocation(ctx context.Context, panel domain.Panel) (domain.AllocationResult, error) {
	byFund, err := s.builder.Build(panel)
	if err != nil {
		return domain.AllocationResult{}, err
	}
	return s.optimizer.Optimize(byFund), nil
}

// GenerateReport runs all analytical components over the panel and merges
// their outputs into a single snapshot. Component-level problems are
// absorbed into each section's Status; only input validation aborts the
// report as a whole.
func (s *Service) GenerateReport(ctx context.Context, panel domain.Panel) (domain.Report, error) {
	byFund, err := s.builder.Build(panel)
	if err != nil {
		return domain.Report{}, err
	}

	start, end, _ := panel.DateRange()
	report := domain.Report{
		ReportID:   uuid.New().String(),
		ReportDate: s.now().UTC(),
		DataPeriod: domain.DataPeriod{Start: start, End: end},
		SummaryStatistics: domain.SummaryStatistics{
			FundCount:           len(panel.Funds()),
			ObservationCount:    len(panel),
			ObservationsPerFund: panel.CountByFund(),
			Funds:               panel.Funds(),
		},
	}

	report.RiskMetrics = s.calculator.Calculate(ctx, byFund)
	report.AnomalyDetection = s.detector.Detect(byFund)
	report.AllocationOptimization = s.optimizer.Optimize(byFund)

	s.logger.Info().
		Str("report_id", report.ReportID).
		Int("funds", report.SummaryStatistics.FundCount).
		Str("risk_status", report.RiskMetrics.Status).
		Str("anomaly_status", report.AnomalyDetection.Status).
		Str("allocation_status", report.AllocationOptimization.Status).
		Msg("Generated analytics report")

	return report, nil
}
