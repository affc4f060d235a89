package jobs

import (
	"context"
	"fmt"

	"github.com/portrec/portrec/internal/backfill"
	"github.com/portrec/portrec/internal/contracts"
	"github.com/portrec/portrec/pkg/logger"
)

// HoldingsRefreshJob re-fetches ETF metadata and constituent
// snapshots for every tracked ETF
type HoldingsRefreshJob struct {
	orchestrator *backfill.Orchestrator
	securities   contracts.SecurityRepository
	logger       *logger.Logger
}

// NewHoldingsRefreshJob creates a new holdings refresh job
func NewHoldingsRefreshJob(o *backfill.Orchestrator, securities contracts.SecurityRepository, log *logger.Logger) *HoldingsRefreshJob {
	return &HoldingsRefreshJob{
		orchestrator: o,
		securities:   securities,
		logger:       log,
	}
}

// Name returns the job name
func (j *HoldingsRefreshJob) Name() string {
	return "holdings_refresh"
}

// Schedule returns the cron schedule (every Sunday at 6 AM)
func (j *HoldingsRefreshJob) Schedule() string {
	return "0 0 6 * * SUN"
}

// Run executes the holdings refresh
func (j *HoldingsRefreshJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled holdings refresh")

	etfs, err := j.securities.ListSymbols(ctx, "ETF")
	if err != nil {
		return fmt.Errorf("list etfs: %w", err)
	}
	if len(etfs) == 0 {
		j.logger.Info("No ETFs tracked yet, skipping holdings refresh")
		return nil
	}

	summary, err := j.orchestrator.Run(ctx, etfs, contracts.TaskETFMetadata, backfill.Options{ForceRefresh: true})
	if err != nil {
		return fmt.Errorf("holdings refresh: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"etf_count": len(etfs),
		"summary":   summary.String(),
	}).Info("Scheduled holdings refresh completed")

	if summary.FailedPermanent > 0 {
		j.logger.WithField("count", summary.FailedPermanent).Warn("Some ETFs failed permanently")
	}
	return nil
}
