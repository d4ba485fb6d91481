package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/conneroisu/brandkit/internal/orchestrator"
	"github.com/conneroisu/brandkit/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the asset upload and build API",
	Long: `Start the HTTP API. Partners upload source images, run the pipeline against
their uploads and trigger builds; build stage events stream over a websocket
at /ws/events.

Examples:
  brandkit serve
  brandkit serve --port 9000 --host 0.0.0.0
  BRANDKIT_STORAGE_BACKEND=s3 BRANDKIT_STORAGE_BUCKET=uploads brandkit serve`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().IntP("port", "p", 8080, "Port to serve on")
	serveCmd.Flags().String("host", "localhost", "Host to bind to")
	AddFlagValidation(serveCmd, "port", ValidatePort)
}

func runServe(cmd *cobra.Command, args []string) error {
	bindFlags(cmd.Flags(), map[string]string{
		"port": "server.port",
		"host": "server.host",
	})
	cfg, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	store, err := newStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open upload store: %w", err)
	}
	pipeline, err := newPipeline(cfg, logger)
	if err != nil {
		return err
	}
	bus := orchestrator.NewBus(64)
	orch, err := newOrchestrator(cfg, pipeline, bus, logger)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, store, orch, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Starting brandkit API at http://%s (uploads: %s)\n", cfg.Addr(), store)
	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}
