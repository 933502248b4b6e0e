package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fundpulse/fundpulse/internal/analytics"
	"github.com/fundpulse/fundpulse/internal/archive"
	"github.com/fundpulse/fundpulse/internal/clients/yahoo"
	"github.com/fundpulse/fundpulse/internal/config"
	"github.com/fundpulse/fundpulse/internal/database"
	"github.com/fundpulse/fundpulse/internal/etl"
	"github.com/fundpulse/fundpulse/internal/modules/allocation"
	"github.com/fundpulse/fundpulse/internal/modules/anomaly"
	"github.com/fundpulse/fundpulse/internal/modules/riskmetrics"
	"github.com/fundpulse/fundpulse/internal/modules/series"
	"github.com/fundpulse/fundpulse/internal/scheduler"
	"github.com/fundpulse/fundpulse/internal/server"
	"github.com/fundpulse/fundpulse/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting FundPulse analytics server")

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	if err := db.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	repo := database.NewPriceRepository(db)

	// Wire ETL
	client := yahoo.NewClient(log)
	pipeline := etl.NewPipeline(client, repo, cfg.FundSymbols, cfg.LookbackYears, cfg.ProcessedDataPath)

	// Wire analytics
	svc := analytics.New(
		series.NewBuilder(cfg.RollingWindowDays),
		riskmetrics.NewCalculator(cfg.RiskFreeRate),
		anomaly.NewDetector(cfg.AnomalyContamination, cfg.AnomalyRandomState),
		allocation.NewOptimizer(cfg.MinAllocationPerAsset, cfg.MaxAllocationPerAsset, cfg.RiskFreeRate),
	)

	// Report archive
	reports, err := archive.New(cfg.ReportsDirectory)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize report archive")
	}

	// Seed the database on first boot so the API has data to serve.
	if count, err := repo.Count(); err == nil && count == 0 {
		log.Info().Msg("Empty database, running initial ETL")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		if _, err := pipeline.Run(ctx); err != nil {
			log.Error().Err(err).Msg("Initial ETL failed")
		}
		cancel()
	}

	// Schedule the periodic data refresh
	sched := scheduler.New(log)
	refreshJob := scheduler.NewRefreshJob(pipeline, 10*time.Minute)
	interval := fmt.Sprintf("@every %dh", cfg.DataRefreshIntervalHours)
	if err := sched.AddJob(interval, refreshJob); err != nil {
		log.Fatal().Err(err).Msg("Failed to register refresh job")
	}
	sched.Start()
	defer sched.Stop()

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port:      cfg.APIPort,
		DevMode:   cfg.DevMode,
		Log:       log,
		Analytics: svc,
		Store:     repo,
		ETL:       pipeline,
		Archive:   reports,
	})

	go func() {
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.APIPort).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}
