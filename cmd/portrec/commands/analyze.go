package commands

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/portrec/portrec/internal/analyst"
	"github.com/portrec/portrec/internal/backfill"
	"github.com/portrec/portrec/internal/contracts"
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze [thesis-id] [symbols...]",
	Short: "Score securities against a thesis",
	Long: `Scores each symbol against the thesis on a 0-100 scale and stores
one alignment row per symbol. Without explicit symbols, every stored
security is analyzed. With --discover, candidate ETFs are proposed from
the thesis text and fetched before scoring.

Example:
  go run ./cmd/portrec analyze 1
  go run ./cmd/portrec analyze 1 NVDA AMD TSM
  go run ./cmd/portrec analyze 1 --discover`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAnalyze,
}

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export [thesis-id]",
	Short: "Export a thesis's alignment results as CSV",
	Args:  cobra.ExactArgs(1),
	RunE:  runExport,
}

var (
	analyzeTop      int
	analyzeDiscover bool
	analyzeSource   string
	exportOutput    string
	exportLimit     int
)

func init() {
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(exportCmd)

	analyzeCmd.Flags().IntVar(&analyzeTop, "top", 10, "how many results to print")
	analyzeCmd.Flags().BoolVar(&analyzeDiscover, "discover", false, "propose and fetch candidate ETFs from the thesis text")
	analyzeCmd.Flags().StringVar(&analyzeSource, "source", "yahoo", "metadata source for --discover fetches")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "thesis_analysis.csv", "output file")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "maximum rows to export (0 for default)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	thesisID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid thesis id %q", args[0])
	}

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	ctx := cmd.Context()

	symbols := args[1:]
	if analyzeDiscover {
		thesis, err := a.theses.Get(ctx, thesisID)
		if err != nil {
			return fmt.Errorf("load thesis: %w", err)
		}
		if thesis == nil {
			return fmt.Errorf("thesis %d not found", thesisID)
		}

		candidates := analyst.SearchTickers(thesis)
		fmt.Printf("Discovered %d candidate ETFs for %q\n", len(candidates), thesis.Title)

		orchestrator, err := a.newOrchestrator(analyzeSource)
		if err != nil {
			return err
		}
		if _, err := orchestrator.Run(ctx, candidates, contracts.TaskETFMetadata, backfill.Options{}); err != nil {
			return fmt.Errorf("fetch candidates: %w", err)
		}
		symbols = append(symbols, candidates...)
	}
	if len(symbols) == 0 {
		symbols, err = a.securities.ListSymbols(ctx, "")
		if err != nil {
			return fmt.Errorf("list symbols: %w", err)
		}
	}
	if len(symbols) == 0 {
		fmt.Println("No securities stored yet. Run a backfill first.")
		return nil
	}

	an := analyst.New(a.securities, a.theses, a.logger)
	results, err := an.AnalyzeThesis(ctx, thesisID, symbols)
	if err != nil {
		return err
	}

	fmt.Printf("Analyzed %d securities\n\n", len(results))
	top := analyzeTop
	if top > len(results) {
		top = len(results)
	}
	for i := 0; i < top; i++ {
		r := results[i]
		fmt.Printf("%2d. %-6s %3d/100  %s\n", i+1, r.Symbol, r.Score, r.Rationale)
	}

	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	thesisID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid thesis id %q", args[0])
	}

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := os.Create(exportOutput)
	if err != nil {
		return fmt.Errorf("create %s: %w", exportOutput, err)
	}
	defer f.Close()

	an := analyst.New(a.securities, a.theses, a.logger)
	n, err := an.ExportCSV(cmd.Context(), thesisID, exportLimit, f)
	if err != nil {
		return err
	}
	if n == 0 {
		fmt.Printf("No results found for thesis %d\n", thesisID)
		return nil
	}

	fmt.Printf("Exported %d rows to %s\n", n, exportOutput)
	return nil
}
