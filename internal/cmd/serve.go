package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/forgelab/jobmill/internal/observability"
	"github.com/forgelab/jobmill/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only status API",
	Long: `Serve an HTTP API over the shared job table for operators watching
long runs: GET /health, GET /api/v1/jobs, GET /api/v1/jobs/{id}. The API
never mutates job state.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "Bind host (default from config)")
	serveCmd.Flags().Int("port", 0, "Bind port (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	host, _ := cmd.Flags().GetString("host")
	if host == "" {
		host = cfg.Server.Host
	}
	port, _ := cmd.Flags().GetInt("port")
	if port == 0 {
		port = cfg.Server.Port
	}

	db, store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	srv := server.New(server.Options{
		Host:            host,
		Port:            port,
		Store:           store,
		Logger:          observability.CLILogger,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		IdleTimeout:     cfg.Server.IdleTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})
	return srv.Run(ctx)
}
