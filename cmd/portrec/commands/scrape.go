package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/portrec/portrec/internal/contracts"
	"github.com/portrec/portrec/internal/normalize"
	"github.com/portrec/portrec/internal/provider/etfdb"
)

// scrapeCmd represents the scrape command
var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Discover the ETF universe from screeners",
}

var (
	scrapeMaxPages int

	scrapeETFDBCmd = &cobra.Command{
		Use:   "etfdb",
		Short: "Page through the ETFDB screener and store every ETF",
		Long: `Walks the ETFDB screener page by page, normalizes each row, and
upserts it into the securities store. Newly seen ETFs are tracked as
pending for the metadata backfill.

Example:
  go run ./cmd/portrec scrape etfdb
  go run ./cmd/portrec scrape etfdb --max-pages 10`,
		RunE: runScrapeETFDB,
	}
)

func init() {
	rootCmd.AddCommand(scrapeCmd)
	scrapeCmd.AddCommand(scrapeETFDBCmd)

	scrapeETFDBCmd.Flags().IntVar(&scrapeMaxPages, "max-pages", 0, "stop after this many pages (0 for all)")
}

func runScrapeETFDB(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	adapter, err := a.newAdapter("etfdb")
	if err != nil {
		return err
	}
	client := adapter.(*etfdb.Client)
	gate := a.newGate("etfdb")

	fmt.Println("Scraping ETFDB screener")

	var symbols []string
	saved := 0
	for page := 1; ; page++ {
		if scrapeMaxPages > 0 && page > scrapeMaxPages {
			break
		}

		if err := gate.Acquire(ctx); err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}

		result, err := client.FetchPage(ctx, page)
		if err != nil {
			return fmt.Errorf("fetch page %d: %w", page, err)
		}
		if len(result.Records) == 0 {
			break
		}

		for _, rec := range result.Records {
			patch, warnings, err := normalize.Record(client.Conventions(), rec)
			if err != nil {
				a.logger.WithError(err).WithField("symbol", rec.Symbol).Warn("Skipping screener row")
				continue
			}
			for _, w := range warnings {
				a.logger.WithField("symbol", patch.Symbol).Warnf("Normalization: %s", w)
			}

			if _, err := a.securities.Upsert(ctx, patch, client.Name()); err != nil {
				return fmt.Errorf("upsert %s: %w", patch.Symbol, err)
			}
			symbols = append(symbols, patch.Symbol)
			saved++
		}

		fmt.Printf("  page %d: %d ETFs\n", page, len(result.Records))
	}

	if err := a.state.EnsureTracked(ctx, symbols, contracts.TaskETFMetadata); err != nil {
		return fmt.Errorf("track symbols: %w", err)
	}

	fmt.Printf("\nStored %d ETFs, tracked for metadata backfill\n", saved)
	return nil
}
