// Package etl extracts fund price history, falls back to synthetic data
// when the upstream source is unreachable, and loads the result into the
// database and a processed CSV snapshot.
package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fundpulse/fundpulse/internal/clients/yahoo"
	"github.com/fundpulse/fundpulse/internal/domain"
)

// PriceSource fetches daily bars for one symbol over a period.
type PriceSource interface {
	GetHistoricalPrices(ctx context.Context, symbol, period string) ([]yahoo.HistoricalPrice, error)
}

// PriceStore persists extracted observations.
type PriceStore interface {
	Upsert(panel domain.Panel) error
}

// Result summarizes one pipeline run.
type Result struct {
	Observations int            `json:"observations"`
	PerFund      map[string]int `json:"per_fund"`
	Synthetic    []string       `json:"synthetic_funds"`
	Duration     time.Duration  `json:"duration"`
}

// Pipeline coordinates extract, transform, and load.
type Pipeline struct {
	source        PriceSource
	store         PriceStore
	symbols       []string
	lookbackYears int
	processedPath string
	logger        zerolog.Logger
	now           func() time.Time
}

// NewPipeline creates a pipeline over the given source and store. The
// processed CSV snapshot is written to processedPath after every run; an
// empty path disables it.
func NewPipeline(source PriceSource, store PriceStore, symbols []string, lookbackYears int, processedPath string) *Pipeline {
	return &Pipeline{
		source:        source,
		store:         store,
		symbols:       symbols,
		lookbackYears: lookbackYears,
		processedPath: processedPath,
		logger:        log.With().Str("component", "etl").Logger(),
		now:           time.Now,
	}
}

// Run executes the pipeline for all configured symbols. A symbol whose
// network fetch fails gets a deterministic synthetic history instead, so a
// run always produces a complete panel.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	started := p.now()
	result := Result{PerFund: make(map[string]int, len(p.symbols))}

	var panel domain.Panel
	for _, symbol := range p.symbols {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		rows, synthetic := p.extract(ctx, symbol)
		if synthetic {
			result.Synthetic = append(result.Synthetic, symbol)
		}
		result.PerFund[symbol] = len(rows)
		panel = append(panel, rows...)
	}

	if err := p.store.Upsert(panel); err != nil {
		return result, fmt.Errorf("failed to load prices: %w", err)
	}

	if p.processedPath != "" {
		if err := WriteCSV(p.processedPath, panel); err != nil {
			return result, fmt.Errorf("failed to write processed snapshot: %w", err)
		}
	}

	result.Observations = len(panel)
	result.Duration = p.now().Sub(started)

	p.logger.Info().
		Int("observations", result.Observations).
		Strs("synthetic_funds", result.Synthetic).
		Dur("duration", result.Duration).
		Msg("ETL run complete")

	return result, nil
}

// extract fetches one symbol's history, falling back to synthetic data on
// any upstream failure.
func (p *Pipeline) extract(ctx context.Context, symbol string) (domain.Panel, bool) {
	prices, err := p.source.GetHistoricalPrices(ctx, symbol, p.period())
	if err == nil && len(prices) > 0 {
		return p.transform(symbol, prices), false
	}
	if err != nil {
		p.logger.Warn().Err(err).Str("symbol", symbol).
			Msg("Fetch failed, generating synthetic history")
	} else {
		p.logger.Warn().Str("symbol", symbol).
			Msg("Empty fetch result, generating synthetic history")
	}

	end := p.now().UTC()
	start := end.AddDate(-p.lookbackYears, 0, 0)
	return generateSynthetic(symbol, start, end), true
}

// transform converts upstream bars into panel observations, dropping rows
// with non-positive closes.
func (p *Pipeline) transform(symbol string, prices []yahoo.HistoricalPrice) domain.Panel {
	panel := make(domain.Panel, 0, len(prices))
	for _, bar := range prices {
		if bar.Close <= 0 {
			continue
		}
		d := bar.Date
		panel = append(panel, domain.Observation{
			Date:   time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC),
			Fund:   symbol,
			Open:   bar.Open,
			High:   bar.High,
			Low:    bar.Low,
			Close:  bar.Close,
			Volume: float64(bar.Volume),
		})
	}
	return panel
}

// period maps the lookback to a chart API range.
func (p *Pipeline) period() string {
	switch {
	case p.lookbackYears <= 1:
		return "1y"
	case p.lookbackYears <= 2:
		return "2y"
	case p.lookbackYears <= 5:
		return "5y"
	default:
		return "10y"
	}
}
