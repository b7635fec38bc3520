package cmd

import (
	"github.com/spf13/cobra"

	"github.com/inscribe-ai/docwatch/internal/server"
	"github.com/inscribe-ai/docwatch/internal/server/handlers"
	"github.com/inscribe-ai/docwatch/pkg/registry"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve a read-only HTTP view of tracked jobs",
	Long: `Serve the persisted job records over HTTP for dashboards and scripts.

This serves the state directory as-is without polling; run
'docwatch watch --serve' for a live view that also reconciles status.

Endpoints:
  GET /healthz
  GET /version
  GET /v1/jobs
  GET /v1/jobs/{job_id}
  GET /v1/quota
  GET /v1/events`,
	RunE: runServe,
}

var (
	serveHost string
	servePort int
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Bind host (default from config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Bind port (default from config)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	reg := registry.New()
	store := registry.NewStore(loadedConfig.StateDir)
	if err := store.LoadInto(reg); err != nil {
		return err
	}

	host := loadedConfig.Server.Host
	if serveHost != "" {
		host = serveHost
	}
	port := loadedConfig.Server.Port
	if servePort != 0 {
		port = servePort
	}

	handlers.InitHealthManager(versionInfo.Version)
	srv := server.New(host, port, handlers.Deps{Registry: reg})

	return srv.Start(cmd.Context(),
		loadedConfig.Server.ReadTimeout,
		loadedConfig.Server.WriteTimeout,
		loadedConfig.Server.IdleTimeout,
		loadedConfig.Server.ShutdownTimeout)
}
