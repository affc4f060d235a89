package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/portrec/portrec/internal/analyst"
)

// thesisCmd represents the thesis command
var thesisCmd = &cobra.Command{
	Use:   "thesis",
	Short: "Manage investment theses",
	Long: `Imports, lists, and curates the investment theses that securities
are scored against.

Subcommands:
  import    - load theses from a JSON file
  list      - list theses with selection and priority
  select    - mark a thesis for research runs
  deselect  - unmark a thesis
  priority  - set a thesis's priority

Example:
  go run ./cmd/portrec thesis import theses.json
  go run ./cmd/portrec thesis list --selected
  go run ./cmd/portrec thesis select 3
  go run ./cmd/portrec thesis priority 3 1`,
}

var (
	thesisSelectedOnly bool

	thesisImportCmd = &cobra.Command{
		Use:   "import [file]",
		Short: "Load theses from a JSON file",
		Args:  cobra.ExactArgs(1),
		RunE:  runThesisImport,
	}

	thesisListCmd = &cobra.Command{
		Use:   "list",
		Short: "List theses",
		RunE:  runThesisList,
	}

	thesisSelectCmd = &cobra.Command{
		Use:   "select [id]",
		Short: "Mark a thesis for research runs",
		Args:  cobra.ExactArgs(1),
		RunE:  makeSelectRunner(true),
	}

	thesisDeselectCmd = &cobra.Command{
		Use:   "deselect [id]",
		Short: "Unmark a thesis",
		Args:  cobra.ExactArgs(1),
		RunE:  makeSelectRunner(false),
	}

	thesisPriorityCmd = &cobra.Command{
		Use:   "priority [id] [priority]",
		Short: "Set a thesis's priority (lower runs first)",
		Args:  cobra.ExactArgs(2),
		RunE:  runThesisPriority,
	}
)

func init() {
	rootCmd.AddCommand(thesisCmd)
	thesisCmd.AddCommand(thesisImportCmd)
	thesisCmd.AddCommand(thesisListCmd)
	thesisCmd.AddCommand(thesisSelectCmd)
	thesisCmd.AddCommand(thesisDeselectCmd)
	thesisCmd.AddCommand(thesisPriorityCmd)

	thesisListCmd.Flags().BoolVar(&thesisSelectedOnly, "selected", false, "show only selected theses")
}

func runThesisImport(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	an := analyst.New(a.securities, a.theses, a.logger)
	n, err := an.ImportFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Imported %d theses from %s\n", n, args[0])
	return nil
}

func runThesisList(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	theses, err := a.theses.List(cmd.Context(), thesisSelectedOnly)
	if err != nil {
		return fmt.Errorf("list theses: %w", err)
	}
	if len(theses) == 0 {
		fmt.Println("No theses found. Import some with 'thesis import'.")
		return nil
	}

	for _, t := range theses {
		marker := " "
		if t.Selected {
			marker = "*"
		}
		fmt.Printf("%s [%d] p%d %s\n", marker, t.ID, t.Priority, t.Title)
		if t.Description != "" {
			fmt.Printf("      %s\n", t.Description)
		}
		if len(t.Sectors) > 0 {
			fmt.Printf("      sectors: %s\n", strings.Join(t.Sectors, ", "))
		}
	}

	return nil
}

func makeSelectRunner(selected bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid thesis id %q", args[0])
		}

		a, err := initApp()
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.theses.SetSelected(cmd.Context(), id, selected); err != nil {
			return err
		}

		if selected {
			fmt.Printf("Thesis %d selected\n", id)
		} else {
			fmt.Printf("Thesis %d deselected\n", id)
		}
		return nil
	}
}

func runThesisPriority(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid thesis id %q", args[0])
	}
	priority, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid priority %q", args[1])
	}

	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.theses.SetPriority(cmd.Context(), id, priority); err != nil {
		return err
	}

	fmt.Printf("Thesis %d priority set to %d\n", id, priority)
	return nil
}
