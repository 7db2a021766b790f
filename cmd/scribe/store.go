package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/scribe-labs/scribe/internal/config"
	"github.com/scribe-labs/scribe/internal/couch"
	"github.com/scribe-labs/scribe/internal/home"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Manage the CouchDB container",
	Long: `Manage the CouchDB container lifecycle.

CouchDB holds the documents when the couch storage backend is configured.
The database runs in a Docker container with data persisted to
~/.scribe/couchdb/.

Examples:
  scribe store start   # Start the CouchDB container
  scribe store stop    # Stop the container (data preserved)
  scribe store status  # Check container status
  scribe store logs    # View container logs`,
}

var storeStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the CouchDB container",
	Long: `Start the CouchDB container.

If the container doesn't exist, it will be created and started.
If it exists but is stopped, it will be started.
If it's already running, this is a no-op.

Data is persisted to ~/.scribe/couchdb/.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getCouchManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Starting CouchDB...")
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start CouchDB: %w", err)
		}

		fmt.Printf("CouchDB is running at %s\n", mgr.URL())
		return nil
	},
}

var storeStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the CouchDB container",
	Long: `Stop the CouchDB container.

This stops the container but preserves data. Use 'scribe store start'
to restart it later.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getCouchManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Stopping CouchDB...")
		if err := mgr.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop CouchDB: %w", err)
		}

		fmt.Println("CouchDB stopped")
		return nil
	},
}

var storeStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show CouchDB container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		mgr, err := getCouchManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		status, err := mgr.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		switch status {
		case couch.StatusRunning:
			fmt.Printf("Status: %s\n", status)
			fmt.Printf("URL: %s\n", mgr.URL())

			client := couch.NewClient(mgr.URL(), cfg.Couch.Username, cfg.CouchPassword())
			if err := client.HealthCheck(ctx); err != nil {
				fmt.Printf("Health: unhealthy (%v)\n", err)
			} else {
				fmt.Println("Health: healthy")
			}
		case couch.StatusStopped:
			fmt.Printf("Status: %s (use 'scribe store start' to start)\n", status)
		case couch.StatusNotFound:
			fmt.Printf("Status: %s (use 'scribe store start' to create)\n", status)
		default:
			fmt.Printf("Status: %s\n", status)
		}

		return nil
	},
}

var logsTail string

var storeLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show CouchDB container logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getCouchManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		logs, err := mgr.Logs(ctx, logsTail)
		if err != nil {
			return fmt.Errorf("failed to get logs: %w", err)
		}

		fmt.Print(logs)
		return nil
	},
}

var storeRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the CouchDB container",
	Long: `Remove the CouchDB container.

This stops and removes the container. Data in ~/.scribe/couchdb/
is NOT deleted - only the container is removed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getCouchManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Removing CouchDB container...")
		if err := mgr.Remove(ctx); err != nil {
			return fmt.Errorf("failed to remove container: %w", err)
		}

		fmt.Println("CouchDB container removed (data preserved)")
		return nil
	},
}

var storeWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for CouchDB to be ready",
	Long: `Wait for CouchDB to be ready to accept connections.

This is useful in scripts to ensure CouchDB is fully started
before running other commands.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getCouchManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		timeout, _ := cmd.Flags().GetDuration("timeout")
		fmt.Printf("Waiting for CouchDB (timeout: %s)...\n", timeout)

		if err := mgr.WaitReady(ctx, timeout); err != nil {
			return fmt.Errorf("CouchDB not ready: %w", err)
		}

		fmt.Println("CouchDB is ready")
		return nil
	},
}

func init() {
	storeCmd.AddCommand(storeStartCmd)
	storeCmd.AddCommand(storeStopCmd)
	storeCmd.AddCommand(storeStatusCmd)
	storeCmd.AddCommand(storeLogsCmd)
	storeCmd.AddCommand(storeRemoveCmd)
	storeCmd.AddCommand(storeWaitCmd)

	storeLogsCmd.Flags().StringVar(&logsTail, "tail", "100", "Number of lines to show from the end")
	storeWaitCmd.Flags().Duration("timeout", 30*time.Second, "Timeout waiting for CouchDB")

	rootCmd.AddCommand(storeCmd)
}

// getHome returns the home directory manager.
func getHome() (*home.Dir, error) {
	h, err := home.New(homeDir)
	if err != nil {
		return nil, err
	}
	if err := h.EnsureExists(); err != nil {
		return nil, fmt.Errorf("failed to create home directory: %w", err)
	}
	return h, nil
}

// loadConfig reads the config file, falling back to defaults.
func loadConfig() (*config.Config, error) {
	mgr, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, err
	}
	return mgr.Get(), nil
}

// getCouchManager creates a DockerManager with the configured settings.
func getCouchManager() (*couch.DockerManager, error) {
	h, err := getHome()
	if err != nil {
		return nil, err
	}
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	return couch.NewDockerManager(couch.DockerConfig{
		ContainerName: cfg.Couch.ContainerName,
		Image:         cfg.Couch.Image,
		DataPath:      h.CouchDataPath(),
		HostPort:      cfg.Couch.Port,
		Username:      cfg.Couch.Username,
		Password:      cfg.CouchPassword(),
	})
}
