/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/ssargent/podkit/pkg/config"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a podctl configuration",
	Long: `Create a configuration file with default format settings and a freshly
generated API key for the REST server, and create the data directory.

Examples:
  podctl init
  podctl init --config ./podkit.yaml --data-dir ./data --print-key`,
	Args: cobra.NoArgs,
	// init writes the config file, so it must not require a valid one
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath(cmd)
		dataDir, _ := cmd.Flags().GetString("data-dir")
		force, _ := cmd.Flags().GetBool("force")
		printKey, _ := cmd.Flags().GetBool("print-key")

		cfg, created, err := initConfig(path, dataDir, force)
		if err != nil {
			return err
		}
		if !created {
			cmd.Printf("Configuration already exists at %s (use --force to overwrite)\n", path)
			return nil
		}

		cmd.Printf("Configuration created at %s\n", path)
		cmd.Printf("Data directory: %s\n", cfg.Store.DataDir)
		if printKey {
			cmd.Printf("API key: %s\n", cfg.Server.APIKey)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().Bool("force", false, "Overwrite an existing configuration")
	initCmd.Flags().Bool("print-key", false, "Print the generated API key")
}

// initConfig bootstraps a configuration at path unless one exists and
// force is false. It reports whether a new file was written.
func initConfig(path, dataDir string, force bool) (*config.Config, bool, error) {
	if config.ConfigExists(path) && !force {
		return nil, false, nil
	}
	cfg, err := config.BootstrapConfig(path, dataDir)
	if err != nil {
		return nil, false, err
	}
	if err := os.MkdirAll(cfg.Store.DataDir, 0750); err != nil {
		return nil, false, fmt.Errorf("failed to create data dir: %w", err)
	}
	return cfg, true, nil
}
