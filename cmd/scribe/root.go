package main

import (
	"github.com/spf13/cobra"

	"github.com/scribe-labs/scribe/internal/api"
	"github.com/scribe-labs/scribe/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "scribe",
	Short: "Thesis editor backend with LaTeX export",
	Long: `Scribe is the backend for a structured thesis editor. Documents are
chapters of typed content blocks (text, images, tables, equations) plus
front and back matter, stored whole and exported deterministically.

Exports:
  - LaTeX source with a matching BibTeX file
  - JSON backups that restore cleanly across versions
  - Zip bundles with every referenced image included`,
	Version: version.GitRelease,
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.scribe/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "scribe home directory (default: ~/.scribe)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	// Set output format before any command runs
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		api.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(versionCmd)
}
