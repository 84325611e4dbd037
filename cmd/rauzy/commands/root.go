package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath   string
	verbose      bool
	jsonOutput   bool
	outputFormat string

	// buildVersion is reported by telemetry
	buildVersion = "dev"
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	buildVersion = version
	rootCmd := &cobra.Command{
		Use:   "rauzy",
		Short: "Rauzy - hierarchical system modeling toolkit",
		Long: `Rauzy builds and transforms hierarchical models of systems: trees of
objects carrying properties, linked by relations, instantiated from a
library of reusable classes.

Features:
  - Models and libraries in JSON, YAML or CUE
  - Model building scripts in Starlark
  - Abstraction, flattening and keyword filtering
  - Model comparison
  - Policy linting (OPA/rego)
  - Versioned snapshots in SQLite`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")
	rootCmd.PersistentFlags().StringVar(&outputFormat, "format", "", "document format for standard output (json, yaml)")

	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newPolicyCommand())
	rootCmd.AddCommand(newAbstractCommand())
	rootCmd.AddCommand(newFlattenCommand())
	rootCmd.AddCommand(newKeywordCommand())
	rootCmd.AddCommand(newCompareCommand())
	rootCmd.AddCommand(newLibraryCommand())
	rootCmd.AddCommand(newBuildCommand())
	rootCmd.AddCommand(newStoreCommand())
	rootCmd.AddCommand(newWatchCommand())
	rootCmd.AddCommand(newServeMetricsCommand())

	return rootCmd
}
