// Package series normalizes raw OHLCV panels into per-fund analytical
// series: daily returns, rolling volatility, and drawdown from running peak.
package series

import (
	"math"
	"sort"
	"time"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fundpulse/fundpulse/internal/domain"
	"github.com/fundpulse/fundpulse/pkg/formulas"
)

// FundSeries is one fund's observations after normalization, in strict
// ascending date order with duplicates resolved. Returns has len(Dates)-1
// entries; RollingVol and Drawdown are aligned with Dates, with RollingVol
// zero-filled inside the lookback window.
type FundSeries struct {
	Fund       string
	Dates      []time.Time
	Closes     []float64
	Volumes    []float64
	Ranges     []float64 // (high - low) / close per session
	Returns    []float64
	RollingVol []float64
	Drawdown   []float64
}

// Empty reports whether the fund had too few observations to derive returns.
func (s FundSeries) Empty() bool {
	return len(s.Returns) == 0
}

// Builder turns raw panels into per-fund series.
type Builder struct {
	window int
	logger zerolog.Logger
}

// NewBuilder creates a builder with the given rolling-volatility window,
// measured in trading sessions.
func NewBuilder(window int) *Builder {
	return &Builder{
		window: window,
		logger: log.With().Str("component", "series_builder").Logger(),
	}
}

// Build normalizes the panel into per-fund series. Rows are sorted by
// (fund, date) and duplicate (fund, date) pairs are resolved by keeping the
// last occurrence in input order. Funds with fewer than two observations
// yield an empty series rather than an error. A NaN or infinite price or
// volume field is a validation failure naming the offending fund and field.
func (b *Builder) Build(panel domain.Panel) (map[string]FundSeries, error) {
	if err := validate(panel); err != nil {
		return nil, err
	}

	byFund := make(map[string][]domain.Observation)
	for _, obs := range panel {
		byFund[obs.Fund] = append(byFund[obs.Fund], obs)
	}

	result := make(map[string]FundSeries, len(byFund))
	for fund, rows := range byFund {
		result[fund] = b.buildOne(fund, rows)
	}
	return result, nil
}

func (b *Builder) buildOne(fund string, rows []domain.Observation) FundSeries {
	rows = dedupeKeepLast(rows)

	s := FundSeries{Fund: fund}
	if len(rows) < 2 {
		b.logger.Warn().Str("fund", fund).Int("observations", len(rows)).
			Msg("Too few observations to derive returns")
		return s
	}

	s.Dates = make([]time.Time, len(rows))
	s.Closes = make([]float64, len(rows))
	s.Volumes = make([]float64, len(rows))
	s.Ranges = make([]float64, len(rows))
	for i, row := range rows {
		s.Dates[i] = row.Date
		s.Closes[i] = row.Close
		s.Volumes[i] = row.Volume
		if row.Close > 0 {
			s.Ranges[i] = (row.High - row.Low) / row.Close
		}
	}

	s.Returns = formulas.CalculateReturns(s.Closes)
	s.Drawdown = formulas.DrawdownSeries(s.Closes)
	s.RollingVol = b.rollingVolatility(s.Returns)
	return s
}

// rollingVolatility computes the standard deviation of returns over the
// trailing window. The output is aligned with Dates: index 0 covers the
// first session (no return yet), and positions inside the lookback are
// zero-filled.
func (b *Builder) rollingVolatility(returns []float64) []float64 {
	vol := make([]float64, len(returns)+1)
	if len(returns) < b.window {
		return vol
	}

	rolling := talib.StdDev(returns, b.window, 1.0)
	for i, v := range rolling {
		vol[i+1] = v
	}
	return vol
}

// dedupeKeepLast sorts rows by date and resolves duplicate dates by keeping
// the occurrence that appeared last in the original input order.
func dedupeKeepLast(rows []domain.Observation) []domain.Observation {
	type indexed struct {
		obs domain.Observation
		pos int
	}

	latest := make(map[time.Time]indexed, len(rows))
	for i, obs := range rows {
		key := obs.Date
		if prev, ok := latest[key]; !ok || i > prev.pos {
			latest[key] = indexed{obs: obs, pos: i}
		}
	}

	out := make([]domain.Observation, 0, len(latest))
	for _, entry := range latest {
		out = append(out, entry.obs)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Date.Before(out[j].Date)
	})
	return out
}

func validate(panel domain.Panel) error {
	for _, obs := range panel {
		if !isFinite(obs.Close) {
			return &domain.ValidationError{Fund: obs.Fund, Field: "close"}
		}
		if !isFinite(obs.Volume) {
			return &domain.ValidationError{Fund: obs.Fund, Field: "volume"}
		}
		if !isFinite(obs.High) {
			return &domain.ValidationError{Fund: obs.Fund, Field: "high"}
		}
		if !isFinite(obs.Low) {
			return &domain.ValidationError{Fund: obs.Fund, Field: "low"}
		}
		if !isFinite(obs.Open) {
			return &domain.ValidationError{Fund: obs.Fund, Field: "open"}
		}
	}
	return nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
