package scheduler

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fundpulse/fundpulse/internal/etl"
)

// PipelineRunner runs one ETL pass.
type PipelineRunner interface {
	Run(ctx context.Context) (etl.Result, error)
}

// RefreshJob re-runs the ETL pipeline to pick up fresh price data.
type RefreshJob struct {
	pipeline PipelineRunner
	timeout  time.Duration
	logger   zerolog.Logger
}

// NewRefreshJob creates the periodic data refresh job.
func NewRefreshJob(pipeline PipelineRunner, timeout time.Duration) *RefreshJob {
	return &RefreshJob{
		pipeline: pipeline,
		timeout:  timeout,
		logger:   log.With().Str("component", "refresh_job").Logger(),
	}
}

// Name implements Job.
func (j *RefreshJob) Name() string {
	return "data_refresh"
}

// Run implements Job.
func (j *RefreshJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	result, err := j.pipeline.Run(ctx)
	if err != nil {
		return err
	}

	j.logger.Info().
		Int("observations", result.Observations).
		Int("synthetic_funds", len(result.Synthetic)).
		Msg("Data refresh complete")
	return nil
}
