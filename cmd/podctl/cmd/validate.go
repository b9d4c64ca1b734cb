/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/ssargent/podkit/pkg/pod"
	"github.com/ssargent/podkit/pkg/podfile"
)

// validateCmd represents the validate command
var validateCmd = &cobra.Command{
	Use:   "validate <file>...",
	Short: "Check pod files for structural errors",
	Long: `Walk every pod of each file, descending into all containers, and report
the first violation found per file. The command fails if any file is
invalid.

Example:
  podctl validate a.pod b.pod`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := podOptions(cmd)
		if err != nil {
			return err
		}

		failed := 0
		for _, path := range args {
			n, err := validateFile(path, opts...)
			if err != nil {
				failed++
				cmd.Printf("%s: %v\n", path, err)
				continue
			}
			cmd.Printf("%s: ok, %d pod(s)\n", path, n)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d file(s) failed validation", failed, len(args))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

// validateFile validates path and returns its number of top-level pods.
func validateFile(path string, opts ...pod.Option) (int, error) {
	f, err := podfile.Open(path, opts...)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	if err := f.Validate(); err != nil {
		return 0, err
	}
	n := 0
	r := f.Reader()
	for {
		if _, err := r.Next(); err != nil {
			break
		}
		n++
	}
	return n, nil
}
