/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/ssargent/podkit/pkg/config"
	"github.com/ssargent/podkit/pkg/di"
	"github.com/ssargent/podkit/pkg/logging"
	"github.com/ssargent/podkit/pkg/pod"
	"github.com/ssargent/podkit/pkg/storage"
)

var container *di.Container

// SetContainer injects the dependency container
func SetContainer(c *di.Container) {
	container = c
}

type configKey struct{}

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "podctl",
	Short: "podctl - Pod binary format toolkit",
	Long: `podctl encodes, inspects, validates and stores pods, the
self-describing binary values used to exchange typed media parameters.

Pods are composed from YAML documents, dumped as text, JSON, YAML or CBOR,
kept in a pebble-backed store or appended to a framed pod log, and served
over a small REST API.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		logger := logging.New(cmd.ErrOrStderr(), cfg.Logging.Level, cfg.Logging.Format)
		ctx := logging.WithContext(cmd.Context(), logger)
		cmd.SetContext(context.WithValue(ctx, configKey{}, cfg))
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Path to config file (default: OS-specific location)")
	rootCmd.PersistentFlags().StringP("data-dir", "d", "", "Data directory for the store and pod log")
	rootCmd.PersistentFlags().String("byte-order", "", "Byte order of the pods, little or big")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error")
}

func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = config.GetDefaultConfigPath()
	}
	return path
}

// loadConfig reads the config file when there is one and applies the
// command line overrides. Without a file the defaults are used, unless
// --config named a file explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path := configPath(cmd)

	var cfg *config.Config
	switch {
	case config.ConfigExists(path):
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case cmd.Flags().Changed("config"):
		return nil, fmt.Errorf("config file does not exist: %s", path)
	default:
		cfg = config.DefaultConfig()
	}

	if dataDir, _ := cmd.Flags().GetString("data-dir"); dataDir != "" {
		cfg.Store.DataDir = dataDir
		cfg.Log.Path = filepath.Join(dataDir, "pods.log")
	}
	if order, _ := cmd.Flags().GetString("byte-order"); order != "" {
		cfg.Format.ByteOrder = order
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// configFrom returns the configuration loaded by the root command.
func configFrom(cmd *cobra.Command) (*config.Config, error) {
	cfg, ok := cmd.Context().Value(configKey{}).(*config.Config)
	if !ok {
		return nil, fmt.Errorf("configuration not found in context")
	}
	return cfg, nil
}

func podOptions(cmd *cobra.Command) ([]pod.Option, error) {
	cfg, err := configFrom(cmd)
	if err != nil {
		return nil, err
	}
	return cfg.Format.Options()
}

// openStorage opens the pod store named by the configuration.
func openStorage(cmd *cobra.Command) (*storage.PodStorage, error) {
	if container == nil {
		return nil, fmt.Errorf("dependency container not initialized")
	}
	cfg, err := configFrom(cmd)
	if err != nil {
		return nil, err
	}
	opts, err := cfg.Format.Options()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.Store.DataDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}
	// pebble owns a subdirectory; the pod log lives beside it
	dir := filepath.Join(cfg.Store.DataDir, "store")
	return container.GetStorageOpener()(storage.Config{DataDir: dir}, opts...)
}
