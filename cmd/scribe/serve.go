package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/scribe-labs/scribe/internal/config"
	"github.com/scribe-labs/scribe/internal/couch"
	"github.com/scribe-labs/scribe/internal/home"
	"github.com/scribe-labs/scribe/internal/server"
)

var (
	serveHost    string
	servePort    int
	serveBackend string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Scribe server",
	Long: `Start the Scribe HTTP server.

On the couch backend this also starts the CouchDB container. When the
server shuts down (via Ctrl+C or SIGTERM), pending autosaves are flushed
and CouchDB is stopped.

The server provides:
  - /health      - Basic server health check
  - /ready       - Readiness check (includes store status)
  - /api/theses  - Document editing and export API

Examples:
  scribe serve                     # Start on default port 8585
  scribe serve --port 3000         # Start on custom port
  scribe serve --backend couch     # Use the CouchDB store`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		cfgMgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfgMgr.WatchConfig()
		cfg := cfgMgr.Get()

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		if err := h.EnsureExists(); err != nil {
			return err
		}

		host := cfg.Server.Host
		if cmd.Flags().Changed("host") {
			host = serveHost
		}
		port := cfg.Server.Port
		if cmd.Flags().Changed("port") {
			port = servePort
		}
		backend := cfg.Storage.Backend
		if cmd.Flags().Changed("backend") {
			backend = serveBackend
		}

		srv, err := server.New(server.Config{
			Host:     host,
			Port:     port,
			Backend:  backend,
			Database: cfg.Storage.Database,
			CouchConfig: couch.DockerConfig{
				ContainerName: cfg.Couch.ContainerName,
				Image:         cfg.Couch.Image,
				HostPort:      cfg.Couch.Port,
				Username:      cfg.Couch.Username,
				Password:      cfg.CouchPassword(),
			},
			SaveDelay:     time.Duration(cfg.Autosave.DelaySeconds) * time.Second,
			Home:          h,
			ConfigManager: cfgMgr,
			Logger:        logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "127.0.0.1", "Host to bind to")
	serveCmd.Flags().IntVar(&servePort, "port", 8585, "Port to listen on")
	serveCmd.Flags().StringVar(&serveBackend, "backend", "sqlite", "Storage backend: sqlite or couch")

	rootCmd.AddCommand(serveCmd)
}
