/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/ssargent/podkit/pkg/inspect"
	"github.com/ssargent/podkit/pkg/pod"
	"github.com/ssargent/podkit/pkg/podfile"
)

// dumpCmd represents the dump command
var dumpCmd = &cobra.Command{
	Use:   "dump <file>",
	Short: "Print the pods of a file",
	Long: `Print every top-level pod of a pod file as an indented text dump or
as a JSON, YAML or CBOR document. The YAML and JSON forms can be fed back
to "podctl encode".

Examples:
  podctl dump format.pod
  podctl dump format.pod --format yaml
  cat format.pod | podctl dump -`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		color, _ := cmd.Flags().GetString("color")
		opts, err := podOptions(cmd)
		if err != nil {
			return err
		}
		return dumpFile(cmd.OutOrStdout(), cmd.InOrStdin(), args[0], format, color, opts...)
	},
}

func init() {
	rootCmd.AddCommand(dumpCmd)
	dumpCmd.Flags().StringP("format", "f", inspect.FormatText, "Output format: text, json, yaml, cbor")
	dumpCmd.Flags().String("color", "auto", "Highlight json and yaml output: auto, always, never")
}

// dumpFile renders the pods in path, or in stdin when path is "-".
func dumpFile(w io.Writer, stdin io.Reader, path, format, color string, opts ...pod.Option) error {
	if path == "-" {
		data, err := io.ReadAll(stdin)
		if err != nil {
			return err
		}
		return render(w, data, format, color, opts...)
	}

	f, err := podfile.Open(path, opts...)
	if err != nil {
		return err
	}
	defer f.Close()
	if len(f.Data) == 0 {
		return fmt.Errorf("%s: empty file", path)
	}
	return render(w, f.Data, format, color, opts...)
}
