// Package commands implements the CLI commands for the NimbusStore server.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Version information injected at build time.
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"

	// Global flags.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "nimbus",
	Short: "NimbusStore - S3-compatible object storage engine",
	Long: `NimbusStore is an S3-compatible object-storage engine whose data plane is
split into a metadata engine (namespace, directory tree, file layouts over
an ordered KV store) and a pluggable chunk store (filesystem or S3-backed).

Use "nimbus [command] --help" for more information about a command.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: $XDG_CONFIG_HOME/nimbus/config.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(startCmd)
}
