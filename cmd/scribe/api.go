package main

import (
	"github.com/spf13/cobra"

	"github.com/scribe-labs/scribe/internal/server/endpoints"
)

var serverURL string

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Commands that call the running server",
	Long: `API commands call the running Scribe server via HTTP.

These commands require a running server (scribe serve).
Use --server to specify a custom server URL.

Examples:
  scribe api health                    # Check server health
  scribe api theses list               # List stored documents
  scribe api theses get my-thesis      # Fetch a document
  scribe api chapters add my-thesis    # Append a chapter`,
}

var thesesCmd = &cobra.Command{
	Use:   "theses",
	Short: "Document management commands",
}

var chaptersCmd = &cobra.Command{
	Use:   "chapters",
	Short: "Chapter commands",
}

var blocksCmd = &cobra.Command{
	Use:   "blocks",
	Short: "Content block commands",
}

var referencesCmd = &cobra.Command{
	Use:   "references",
	Short: "Bibliography commands",
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Runtime settings commands",
}

// getServerURL returns the server URL at runtime (after flag parsing).
func getServerURL() string {
	return serverURL
}

func init() {
	// Add --server flag to api command (persistent so all subcommands inherit it)
	apiCmd.PersistentFlags().StringVar(
		&serverURL, "server", "http://localhost:8585", "Server URL",
	)

	// Health endpoints at top level of api
	apiCmd.AddCommand((&endpoints.HealthEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.ReadyEndpoint{}).Command(getServerURL))
	apiCmd.AddCommand((&endpoints.StatusEndpoint{}).Command(getServerURL))

	for _, ep := range endpoints.ThesisCommands() {
		thesesCmd.AddCommand(ep.Command(getServerURL))
	}
	for _, ep := range endpoints.ChapterCommands() {
		chaptersCmd.AddCommand(ep.Command(getServerURL))
	}
	for _, ep := range endpoints.BlockCommands() {
		blocksCmd.AddCommand(ep.Command(getServerURL))
	}
	for _, ep := range endpoints.ReferenceCommands() {
		referencesCmd.AddCommand(ep.Command(getServerURL))
	}
	for _, ep := range endpoints.SettingsCommands() {
		settingsCmd.AddCommand(ep.Command(getServerURL))
	}

	apiCmd.AddCommand(thesesCmd)
	apiCmd.AddCommand(chaptersCmd)
	apiCmd.AddCommand(blocksCmd)
	apiCmd.AddCommand(referencesCmd)
	apiCmd.AddCommand(settingsCmd)
	rootCmd.AddCommand(apiCmd)
}
