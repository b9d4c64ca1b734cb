/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/ssargent/podkit/pkg/logging"
	"github.com/ssargent/podkit/pkg/podfile"
)

// encodeCmd represents the encode command
var encodeCmd = &cobra.Command{
	Use:   "encode [document]",
	Short: "Encode YAML or JSON documents into a pod file",
	Long: `Encode pod documents into their binary form. Every document of a
multi-document YAML stream becomes one top-level pod. Files ending in .json
or .jsonc may carry comments and trailing commas. Without a document
argument (or with "-") YAML is read from stdin.

Examples:
  podctl encode format.yaml -o format.pod
  echo 'int: 7' | podctl encode -o seven.pod`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		output, _ := cmd.Flags().GetString("output")
		opts, err := podOptions(cmd)
		if err != nil {
			return err
		}
		if output == "" && isTerminal(cmd.OutOrStdout()) {
			return fmt.Errorf("refusing to write binary pods to a terminal, use --output")
		}

		name := "-"
		in := cmd.InOrStdin()
		if len(args) == 1 && args[0] != "-" {
			name = args[0]
			f, err := os.Open(name)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		doc, err := io.ReadAll(in)
		if err != nil {
			return err
		}

		data, err := composeInput(name, doc, opts...)
		if err != nil {
			return err
		}

		if output == "" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := podfile.WriteFile(output, data); err != nil {
			return err
		}
		logging.FromContext(cmd.Context()).Info("encoded pods", "path", output, "bytes", len(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(encodeCmd)
	encodeCmd.Flags().StringP("output", "o", "", "Write the pods to this file instead of stdout")
}
