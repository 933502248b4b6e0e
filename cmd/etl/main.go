// Command etl runs a single data refresh from the command line and can
// optionally generate and archive a performance report afterwards.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/fundpulse/fundpulse/internal/analytics"
	"github.com/fundpulse/fundpulse/internal/archive"
	"github.com/fundpulse/fundpulse/internal/clients/yahoo"
	"github.com/fundpulse/fundpulse/internal/config"
	"github.com/fundpulse/fundpulse/internal/database"
	"github.com/fundpulse/fundpulse/internal/domain"
	"github.com/fundpulse/fundpulse/internal/etl"
	"github.com/fundpulse/fundpulse/internal/modules/allocation"
	"github.com/fundpulse/fundpulse/internal/modules/anomaly"
	"github.com/fundpulse/fundpulse/internal/modules/riskmetrics"
	"github.com/fundpulse/fundpulse/internal/modules/series"
	"github.com/fundpulse/fundpulse/pkg/logger"
)

type panelLoader interface {
	LoadPanel() (domain.Panel, error)
}

type reportStore interface {
	Save(report domain.Report) error
}

func main() {
	symbolsFlag := flag.String("symbols", "", "comma-separated fund symbols (default: configured FUND_SYMBOLS)")
	timeoutFlag := flag.Duration("timeout", 10*time.Minute, "overall run timeout")
	reportFlag := flag.Bool("report", false, "generate and archive a performance report after the run")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: true,
	})
	logger.SetGlobalLogger(log)

	symbols := cfg.FundSymbols
	if *symbolsFlag != "" {
		symbols = nil
		for _, s := range strings.Split(*symbolsFlag, ",") {
			if s = strings.TrimSpace(s); s != "" {
				symbols = append(symbols, strings.ToUpper(s))
			}
		}
	}

	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	repo := database.NewPriceRepository(db)
	pipeline := etl.NewPipeline(
		yahoo.NewClient(log),
		repo,
		symbols,
		cfg.LookbackYears,
		cfg.ProcessedDataPath,
	)

	ctx, cancel := context.WithTimeout(context.Background(), *timeoutFlag)
	defer cancel()

	result, err := pipeline.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("ETL run failed")
	}

	log.Info().
		Int("observations", result.Observations).
		Strs("synthetic_funds", result.Synthetic).
		Dur("duration", result.Duration).
		Msg("ETL run finished")

	if !*reportFlag {
		return
	}

	svc := analytics.New(
		series.NewBuilder(cfg.RollingWindowDays),
		riskmetrics.NewCalculator(cfg.RiskFreeRate),
		anomaly.NewDetector(cfg.AnomalyContamination, cfg.AnomalyRandomState),
		allocation.NewOptimizer(cfg.MinAllocationPerAsset, cfg.MaxAllocationPerAsset, cfg.RiskFreeRate),
	)

	reports, err := archive.New(cfg.ReportsDirectory)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize report archive")
	}

	if _, err := generateReport(ctx, svc, repo, reports, log); err != nil {
		log.Fatal().Err(err).Msg("Report generation failed")
	}
}

// generateReport runs the full analytics pass over the stored panel and
// archives the resulting snapshot.
func generateReport(ctx context.Context, svc *analytics.Service, store panelLoader, reports reportStore, log zerolog.Logger) (string, error) {
	panel, err := store.LoadPanel()
	if err != nil {
		return "", fmt.Errorf("failed to load panel: %w", err)
	}

	report, err := svc.GenerateReport(ctx, panel)
	if err != nil {
		return "", fmt.Errorf("failed to generate report: %w", err)
	}

	if err := reports.Save(report); err != nil {
		return "", fmt.Errorf("failed to archive report: %w", err)
	}

	log.Info().
		Str("report_id", report.ReportID).
		Int("funds", report.SummaryStatistics.FundCount).
		Msg("Report archived")
	return report.ReportID, nil
}
