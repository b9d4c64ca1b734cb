/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// listCmd represents the list command
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored pods",
	Long: `List the stored pods in id order, which is creation order, followed by
the store totals.

Example:
  podctl list --limit 20`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		s, err := openStorage(cmd)
		if err != nil {
			return err
		}
		defer s.Close()

		entries, err := s.List(limit)
		if err != nil {
			return err
		}
		stats, err := s.Stats()
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tCREATED\tSIZE\tDIGEST")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", e.ID, e.ID.Time().Format("2006-01-02 15:04:05"), e.Size, e.Digest[:16])
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d pod(s), %d byte(s)\n", stats.Pods, stats.Bytes)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntP("limit", "n", 0, "Maximum number of pods to list (0 = all)")
}
