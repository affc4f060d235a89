package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/portrec/portrec/internal/api"
	"github.com/portrec/portrec/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Run the HTTP API server",
	Long: `Starts the read-only HTTP API.

Endpoints:
  GET /health
  GET /api/backfill/status
  GET /api/securities/{symbol}
  GET /api/securities/{symbol}/holdings
  GET /api/theses
  GET /api/theses/{id}/alignments

Example:
  go run ./cmd/portrec api
  go run ./cmd/portrec api --port 9090`,
	RunE: runAPIServer,
}

var apiPort string

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "listen port (overrides PORT)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	a, err := initApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if apiPort != "" {
		a.cfg.Port = apiPort
	}

	router := api.NewRouter(
		a.db,
		handlers.NewBackfillHandler(a.state, a.logger),
		handlers.NewSecurityHandler(a.securities, a.holdings, a.logger),
		handlers.NewThesisHandler(a.theses, a.logger),
		a.logger,
	)
	server := api.New(a.cfg, a.logger, router)

	// Run the server in a goroutine so shutdown can be handled below
	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	fmt.Printf("API server listening on port %s\n", a.cfg.Port)
	fmt.Println("Press Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-quit:
	}

	fmt.Println("\nShutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	fmt.Println("Server stopped")
	return nil
}
