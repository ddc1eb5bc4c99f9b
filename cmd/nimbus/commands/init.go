package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rouse2617/NimbusStore/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a sample configuration file",
	Long: `Write the default configuration to the config path so it can be edited.

Examples:
  # Write to the default location
  nimbus init

  # Overwrite an existing file
  nimbus init --force

  # Write somewhere specific
  nimbus init --config /etc/nimbus/config.yaml`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := cfgFile
		if path == "" {
			path = config.DefaultConfigPath()
		}
		if err := config.WriteSample(path, initForce); err != nil {
			return err
		}
		fmt.Printf("Configuration written to %s\n", path)
		return nil
	},
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Overwrite an existing config file")
}
