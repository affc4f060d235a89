package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/portrec/portrec/internal/backfill"
	"github.com/portrec/portrec/internal/contracts"
)

// backfillCmd represents the backfill command
var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Backfill securities metadata and ETF holdings",
	Long: `Runs the incremental backfill over the tracked symbol universe.

Progress is persisted per symbol, so an interrupted run resumes where
it stopped. Symbols already done are skipped unless --force is set.

Subcommands:
  run           - backfill ETF metadata and holdings
  constituents  - enrich ETF constituents with metadata
  remaining     - like run, but only reports what is left first
  status        - report progress counts by task kind

Example:
  go run ./cmd/portrec backfill run
  go run ./cmd/portrec backfill run SPY QQQ --source yahoo
  go run ./cmd/portrec backfill constituents --source alpha_vantage
  go run ./cmd/portrec backfill status`,
}

var (
	backfillSource string
	backfillForce  bool
	backfillAll    bool

	backfillRunCmd = &cobra.Command{
		Use:   "run [symbols...]",
		Short: "Backfill ETF metadata and holdings",
		RunE:  runBackfill,
	}

	backfillConstituentsCmd = &cobra.Command{
		Use:   "constituents",
		Short: "Enrich ETF constituents with security metadata",
		RunE:  runConstituents,
	}

	backfillRemainingCmd = &cobra.Command{
		Use:   "remaining",
		Short: "Backfill only symbols not yet done",
		RunE:  runRemaining,
	}

	backfillStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Report backfill progress",
		RunE:  showBackfillStatus,
	}
)

func init() {
	rootCmd.AddCommand(backfillCmd)
	backfillCmd.AddCommand(backfillRunCmd)
	backfillCmd.AddCommand(backfillConstituentsCmd)
	backfillCmd.AddCommand(backfillRemainingCmd)
	backfillCmd.AddCommand(backfillStatusCmd)

	backfillCmd.PersistentFlags().StringVar(&backfillSource, "source", "yahoo", "metadata source (yahoo|alpha_vantage|polygon|etfdb)")
	backfillCmd.PersistentFlags().BoolVar(&backfillForce, "force", false, "re-fetch symbols already done")
	backfillConstituentsCmd.Flags().BoolVar(&backfillAll, "all", false, "enrich all constituents, not just placeholders")
}

func runBackfill(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	symbols := args
	if len(symbols) == 0 {
		symbols, err = a.securities.ListSymbols(ctx, "ETF")
		if err != nil {
			return fmt.Errorf("list etfs: %w", err)
		}
	}
	if len(symbols) == 0 {
		fmt.Println("No ETFs tracked yet. Run 'scrape etfdb' first or pass symbols explicitly.")
		return nil
	}

	return executeRun(ctx, a, symbols, contracts.TaskETFMetadata)
}

func runConstituents(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	var symbols []string
	if backfillAll {
		symbols, err = a.holdings.ConstituentSymbols(ctx)
	} else {
		symbols, err = a.holdings.UnenrichedConstituents(ctx)
	}
	if err != nil {
		return fmt.Errorf("list constituents: %w", err)
	}
	if len(symbols) == 0 {
		fmt.Println("No constituents to enrich.")
		return nil
	}

	return executeRun(ctx, a, symbols, contracts.TaskConstituentEnrich)
}

func runRemaining(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	counts, err := a.state.Counts(ctx, contracts.TaskETFMetadata)
	if err != nil {
		return fmt.Errorf("get counts: %w", err)
	}
	if counts.Remaining() == 0 {
		fmt.Println("Nothing remaining, all symbols are done or failed permanently.")
		return nil
	}
	fmt.Printf("%d symbols remaining\n\n", counts.Remaining())

	symbols, err := a.securities.ListSymbols(ctx, "ETF")
	if err != nil {
		return fmt.Errorf("list etfs: %w", err)
	}

	return executeRun(ctx, a, symbols, contracts.TaskETFMetadata)
}

// executeRun runs one backfill pass and prints the summary. The exit
// code is non-zero when any symbol ended permanently failed.
func executeRun(ctx context.Context, a *app, symbols []string, kind contracts.TaskKind) error {
	orchestrator, err := a.newOrchestrator(backfillSource)
	if err != nil {
		return err
	}

	fmt.Printf("Backfilling %d symbols (%s) from %s\n", len(symbols), kind, backfillSource)

	summary, err := orchestrator.Run(ctx, symbols, kind, backfill.Options{ForceRefresh: backfillForce})
	if err != nil {
		return fmt.Errorf("backfill run: %w", err)
	}

	fmt.Println("\nRun summary:")
	fmt.Printf("  Done:             %d\n", summary.Done)
	fmt.Printf("  Failed retryable: %d\n", summary.FailedRetryable)
	fmt.Printf("  Failed permanent: %d\n", summary.FailedPermanent)
	fmt.Printf("  Skipped:          %d\n", summary.Skipped)
	fmt.Printf("  Remaining:        %d\n", summary.Remaining)
	if summary.BudgetExhausted {
		fmt.Println("\nProvider budget exhausted; remaining symbols stay pending.")
	}

	if summary.FailedPermanent > 0 {
		return fmt.Errorf("%d symbols failed permanently", summary.FailedPermanent)
	}
	return nil
}

func showBackfillStatus(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	for _, kind := range []contracts.TaskKind{contracts.TaskETFMetadata, contracts.TaskConstituentEnrich} {
		counts, err := a.state.Counts(ctx, kind)
		if err != nil {
			return fmt.Errorf("get counts for %s: %w", kind, err)
		}

		fmt.Printf("%s\n", kind)
		fmt.Printf("  Pending:          %d\n", counts.Pending)
		fmt.Printf("  In progress:      %d\n", counts.InProgress)
		fmt.Printf("  Done:             %d\n", counts.Done)
		fmt.Printf("  Failed retryable: %d\n", counts.FailedRetryable)
		fmt.Printf("  Failed permanent: %d\n", counts.FailedPermanent)
		fmt.Printf("  Progress:         %.1f%%\n", counts.Progress())
		fmt.Println()
	}

	return nil
}
