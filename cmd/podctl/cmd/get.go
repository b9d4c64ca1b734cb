/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"github.com/spf13/cobra"
	"github.com/ssargent/podkit/pkg/inspect"
	"github.com/ssargent/podkit/pkg/podfile"
	"github.com/ssargent/podkit/pkg/storage"
)

// getCmd represents the get command
var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch a stored pod",
	Long: `Fetch a pod from the store by id. The pod is printed as a text dump
unless another format is requested; with --output the raw bytes are
written to a file instead.

Examples:
  podctl get 2mYQ3rCMw8cTEqJz1oH0b1XpJ6w
  podctl get 2mYQ3rCMw8cTEqJz1oH0b1XpJ6w --format json
  podctl get 2mYQ3rCMw8cTEqJz1oH0b1XpJ6w -o copy.pod`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		color, _ := cmd.Flags().GetString("color")

		id, err := storage.ParseID(args[0])
		if err != nil {
			return err
		}
		opts, err := podOptions(cmd)
		if err != nil {
			return err
		}

		s, err := openStorage(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		data, err := s.Get(id)
		if err != nil {
			return err
		}

		if output != "" {
			if err := podfile.WriteFile(output, data); err != nil {
				return err
			}
			cmd.Printf("Wrote %d bytes to %s\n", len(data), output)
			return nil
		}
		return render(cmd.OutOrStdout(), data, format, color, opts...)
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
	getCmd.Flags().StringP("format", "f", inspect.FormatText, "Output format: text, json, yaml, cbor")
	getCmd.Flags().StringP("output", "o", "", "Write the raw pod to this file")
	getCmd.Flags().String("color", "auto", "Highlight json and yaml output: auto, always, never")
}
