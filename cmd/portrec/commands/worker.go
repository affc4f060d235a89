package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/portrec/portrec/internal/scheduler"
	"github.com/portrec/portrec/internal/scheduler/jobs"
)

// workerCmd represents the worker command
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Run the scheduled refresh worker",
	Long: `Starts the background worker that keeps stored data fresh.

Registered jobs:
- holdings_refresh: Sundays at 6 AM (ETF metadata and constituents)
- quote_refresh: weekdays at 4:30 PM (prices and performance)

The worker runs until interrupted with Ctrl+C.

Example:
  go run ./cmd/portrec worker
  go run ./cmd/portrec worker --run holdings_refresh`,
	RunE: runWorker,
}

var (
	workerRunOnce string
	workerSource  string
)

func init() {
	rootCmd.AddCommand(workerCmd)

	workerCmd.Flags().StringVar(&workerRunOnce, "run", "", "run one job immediately and exit")
	workerCmd.Flags().StringVar(&workerSource, "source", "yahoo", "metadata source for refresh jobs")
}

func runWorker(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	orchestrator, err := a.newOrchestrator(workerSource)
	if err != nil {
		return err
	}

	holdingsJob := jobs.NewHoldingsRefreshJob(orchestrator, a.securities, a.logger)
	quoteJob := jobs.NewQuoteRefreshJob(orchestrator, a.securities, a.logger)

	if workerRunOnce != "" {
		switch workerRunOnce {
		case holdingsJob.Name():
			return holdingsJob.Run(cmd.Context())
		case quoteJob.Name():
			return quoteJob.Run(cmd.Context())
		default:
			return fmt.Errorf("unknown job %q", workerRunOnce)
		}
	}

	sched := scheduler.New(a.logger)
	if err := sched.AddJob(holdingsJob); err != nil {
		return fmt.Errorf("add holdings job: %w", err)
	}
	if err := sched.AddJob(quoteJob); err != nil {
		return fmt.Errorf("add quote job: %w", err)
	}

	sched.Start()

	fmt.Println("Worker started")
	fmt.Println("\nRegistered jobs:")
	for _, jobName := range sched.GetAllJobs() {
		fmt.Printf("  - %s\n", jobName)
	}
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	fmt.Println("\nShutting down worker...")
	sched.Stop()
	fmt.Println("Worker stopped")

	return nil
}
