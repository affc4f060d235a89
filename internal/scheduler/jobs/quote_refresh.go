package jobs

import (
	"context"
	"fmt"

	"github.com/portrec/portrec/internal/backfill"
	"github.com/portrec/portrec/internal/contracts"
	"github.com/portrec/portrec/pkg/logger"
)

// QuoteRefreshJob refreshes price, volume, and performance fields for
// every tracked security after market close
type QuoteRefreshJob struct {
	orchestrator *backfill.Orchestrator
	securities   contracts.SecurityRepository
	logger       *logger.Logger
}

// NewQuoteRefreshJob creates a new quote refresh job
func NewQuoteRefreshJob(o *backfill.Orchestrator, securities contracts.SecurityRepository, log *logger.Logger) *QuoteRefreshJob {
	return &QuoteRefreshJob{
		orchestrator: o,
		securities:   securities,
		logger:       log,
	}
}

// Name returns the job name
func (j *QuoteRefreshJob) Name() string {
	return "quote_refresh"
}

// Schedule returns the cron schedule (4:30 PM ET on weekdays)
func (j *QuoteRefreshJob) Schedule() string {
	return "0 30 16 * * MON-FRI"
}

// Run executes the quote refresh
func (j *QuoteRefreshJob) Run(ctx context.Context) error {
	j.logger.Info("Starting scheduled quote refresh")

	symbols, err := j.securities.ListSymbols(ctx, "")
	if err != nil {
		return fmt.Errorf("list symbols: %w", err)
	}
	if len(symbols) == 0 {
		j.logger.Info("No securities tracked yet, skipping quote refresh")
		return nil
	}

	summary, err := j.orchestrator.Run(ctx, symbols, contracts.TaskConstituentEnrich, backfill.Options{ForceRefresh: true})
	if err != nil {
		return fmt.Errorf("quote refresh: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"symbol_count": len(symbols),
		"summary":      summary.String(),
	}).Info("Scheduled quote refresh completed")

	return nil
}
