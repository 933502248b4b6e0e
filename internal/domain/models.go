// Package domain contains the shared data model for the fund analytics
// platform. All types are plain values: computed fresh per invocation and
// never mutated after being returned.
package domain

import (
	"fmt"
	"sort"
	"time"
)

// Result status flags. Empty-but-successful results are distinguishable from
// failures: callers inspect Status instead of guessing from emptiness.
const (
	StatusOK               = "ok"
	StatusInsufficientData = "insufficient_data"
	StatusInfeasible       = "infeasible"
	StatusNotConverged     = "not_converged"
	StatusFailed           = "failed"
)

// Observation is one (fund, date) row of the OHLCV panel.
type Observation struct {
	Date        time.Time `json:"date"`
	Fund        string    `json:"fund"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	Volume      float64   `json:"volume"`
	DailyReturn *float64  `json:"daily_return,omitempty"` // nil for a fund's first observation
}

// Panel is a batch of observations, one row per (fund, date). Rows may
// arrive unsorted and may contain duplicate (fund, date) pairs; consumers
// normalize via the series builder.
type Panel []Observation

// Funds returns the distinct fund identifiers in the panel, sorted.
func (p Panel) Funds() []string {
	seen := make(map[string]bool)
	for _, obs := range p {
		seen[obs.Fund] = true
	}
	funds := make([]string, 0, len(seen))
	for fund := range seen {
		funds = append(funds, fund)
	}
	sort.Strings(funds)
	return funds
}

// CountByFund returns the number of observations per fund.
func (p Panel) CountByFund() map[string]int {
	counts := make(map[string]int)
	for _, obs := range p {
		counts[obs.Fund]++
	}
	return counts
}

// DateRange returns the earliest and latest observation dates in the panel.
// ok is false for an empty panel.
func (p Panel) DateRange() (start, end time.Time, ok bool) {
	if len(p) == 0 {
		return time.Time{}, time.Time{}, false
	}
	start, end = p[0].Date, p[0].Date
	for _, obs := range p[1:] {
		if obs.Date.Before(start) {
			start = obs.Date
		}
		if obs.Date.After(end) {
			end = obs.Date
		}
	}
	return start, end, true
}

// RiskMetrics holds the annualized risk/return diagnostics for one fund.
type RiskMetrics struct {
	AnnualizedReturn     float64 `json:"annualized_return"`
	AnnualizedVolatility float64 `json:"annualized_volatility"`
	SharpeRatio          float64 `json:"sharpe_ratio"`
	ValueAtRisk95        float64 `json:"value_at_risk_95"`
	ValueAtRisk99        float64 `json:"value_at_risk_99"`
	ConditionalVaR95     float64 `json:"conditional_value_at_risk_95"`
	MaxDrawdown          float64 `json:"max_drawdown"`
	TotalReturn          float64 `json:"total_return"`
}

// PortfolioMetrics is the equal-weighted cross-fund aggregate.
type PortfolioMetrics struct {
	PortfolioReturn     float64 `json:"portfolio_return"`
	PortfolioVolatility float64 `json:"portfolio_volatility"`
	PortfolioSharpe     float64 `json:"portfolio_sharpe"`
}

// RiskMetricsResult maps each fund present in the input to its metrics.
// Every input fund appears, zero-valued when its series is too short for
// meaningful statistics. Portfolio is nil when fewer than one fund has a
// usable return series.
type RiskMetricsResult struct {
	Funds     map[string]RiskMetrics `json:"funds"`
	Portfolio *PortfolioMetrics      `json:"portfolio,omitempty"`
	Status    string                 `json:"status"`
}

// AnomalyResult records the flagged observations for one fund.
type AnomalyResult struct {
	Fund         string      `json:"fund"`
	FlaggedIdx   []int       `json:"flagged_indices"`
	FlaggedDates []time.Time `json:"flagged_dates"`
	AnomalyScore float64     `json:"anomaly_score"` // fraction of observations flagged, in [0,1]
	Status       string      `json:"status"`
}

// AnomalyDetectionResult maps funds to their anomaly results.
type AnomalyDetectionResult struct {
	Funds  map[string]AnomalyResult `json:"funds"`
	Status string                   `json:"status"`
}

// AllocationResult is the recommended portfolio. Weights is empty when the
// problem was infeasible, under-determined, or the solver did not converge;
// Status says which.
type AllocationResult struct {
	Weights              map[string]float64 `json:"weights"`
	ExpectedReturn       float64            `json:"expected_return"`
	ExpectedVolatility   float64            `json:"expected_volatility"`
	SharpeRatio          float64            `json:"sharpe_ratio"`
	DiversificationScore float64            `json:"diversification_score"`
	Status               string             `json:"status"`
}

// Empty reports whether the optimizer produced no allocation.
func (r AllocationResult) Empty() bool {
	return len(r.Weights) == 0
}

// DataPeriod is the inclusive date range covered by a report.
type DataPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// SummaryStatistics describes the analyzed dataset.
type SummaryStatistics struct {
	FundCount           int            `json:"fund_count"`
	ObservationCount    int            `json:"observation_count"`
	ObservationsPerFund map[string]int `json:"observations_per_fund"`
	Funds               []string       `json:"funds_analyzed"`
}

// Report is the composed output of all analytical components. It is a pure
// snapshot: immutable once built.
type Report struct {
	ReportID               string                 `json:"report_id"`
	ReportDate             time.Time              `json:"report_date"`
	DataPeriod             DataPeriod             `json:"data_period"`
	RiskMetrics            RiskMetricsResult      `json:"risk_metrics"`
	AnomalyDetection       AnomalyDetectionResult `json:"anomaly_detection"`
	AllocationOptimization AllocationResult       `json:"allocation_optimization"`
	SummaryStatistics      SummaryStatistics      `json:"summary_statistics"`
}

// ValidationError reports a malformed or non-numeric required field. It is
// the only error class that crosses component boundaries; data-sufficiency
// conditions are absorbed into empty results instead.
type ValidationError struct {
	Fund  string
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value for field %q of fund %q", e.Field, e.Fund)
}
