/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/ssargent/podkit/pkg/api"
	"github.com/ssargent/podkit/pkg/config"
	"github.com/ssargent/podkit/pkg/logging"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long: `Start the podkit REST API server. Pods can be uploaded raw or as YAML
and JSON documents, fetched, dumped, listed and deleted; every /api/v1
route requires the X-API-Key header. Prometheus metrics are served on
/metrics.

Run "podctl init" first to generate a configuration with an API key.

Examples:
  podctl serve
  podctl serve --port 9400 --bind 0.0.0.0
  podctl serve --api-key mysecretkey`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if container == nil {
			return fmt.Errorf("dependency container not initialized")
		}
		cfg, err := configFrom(cmd)
		if err != nil {
			return err
		}
		serverConfig := serverConfigFor(cmd, cfg)
		opts, err := cfg.Format.Options()
		if err != nil {
			return err
		}

		s, err := openStorage(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger := logging.FromContext(ctx)
		logger.Info("serving pods", "data_dir", cfg.Store.DataDir, "byte_order", cfg.Format.ByteOrder)

		starter := container.GetServerFactory().CreateServerStarter()
		return starter.StartServer(ctx, s, serverConfig, logger, opts...)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntP("port", "p", 0, "Port to listen on (default: server.port from the configuration)")
	serveCmd.Flags().String("bind", "", "Address to bind server to (default: server.bind from the configuration)")
	serveCmd.Flags().String("api-key", "", "API key for client authentication (default: server.api_key from the configuration)")
	serveCmd.Flags().Int64("max-body", api.DefaultMaxBodySize, "Largest accepted request body in bytes")
}

// serverConfigFor merges the server section of cfg with the flags.
func serverConfigFor(cmd *cobra.Command, cfg *config.Config) api.ServerConfig {
	sc := api.ServerConfig{
		Bind:   cfg.Server.Bind,
		Port:   cfg.Server.Port,
		APIKey: cfg.Server.APIKey,
	}
	if port, _ := cmd.Flags().GetInt("port"); port != 0 {
		sc.Port = port
	}
	if bind, _ := cmd.Flags().GetString("bind"); bind != "" {
		sc.Bind = bind
	}
	if key, _ := cmd.Flags().GetString("api-key"); key != "" {
		sc.APIKey = key
	}
	sc.MaxBodySize, _ = cmd.Flags().GetInt64("max-body")
	return sc
}
