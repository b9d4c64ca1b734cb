/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/ssargent/podkit/pkg/logging"
	"github.com/ssargent/podkit/pkg/storage"
)

// putCmd represents the put command
var putCmd = &cobra.Command{
	Use:   "put <file>",
	Short: "Store a pod",
	Long: `Validate a pod file and store it in the pod store. Files ending in
.yaml, .yml, .json or .jsonc are encoded first. Storing a pod that is already
present returns the existing id.

Example:
  podctl put format.pod
  podctl put format.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := podOptions(cmd)
		if err != nil {
			return err
		}
		data, err := readPodFile(args[0], opts...)
		if err != nil {
			return err
		}

		s, err := openStorage(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		id, created, err := s.Put(data)
		if err != nil {
			return err
		}
		logging.FromContext(cmd.Context()).Debug("stored pod",
			"id", id.String(), "bytes", len(data), "created", created)

		if created {
			cmd.Printf("%s\n", id)
		} else {
			cmd.Printf("%s (already stored)\n", id)
		}
		cmd.Printf("digest: %s\n", storage.Digest(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(putCmd)
}
