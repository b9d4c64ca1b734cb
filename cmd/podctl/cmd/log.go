/*
Copyright © 2025 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/ssargent/podkit/pkg/config"
	"github.com/ssargent/podkit/pkg/inspect"
	"github.com/ssargent/podkit/pkg/logging"
	"github.com/ssargent/podkit/pkg/pod"
	"github.com/ssargent/podkit/pkg/podlog"
)

// logCmd groups the pod log commands
var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Work with the append-only pod log",
	Long: `The pod log is an append-only file of framed pods, each carrying a
checksum and a timestamp. Its path comes from the log section of the
configuration or from --file.`,
}

var logAppendCmd = &cobra.Command{
	Use:   "append <file>...",
	Short: "Append pod files to the log",
	Long: `Validate each file and append it to the pod log as one record. YAML and
JSON documents are encoded first.

Example:
  podctl log append a.pod b.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFrom(cmd)
		if err != nil {
			return err
		}
		opts, err := cfg.Format.Options()
		if err != nil {
			return err
		}

		wc, err := writerConfig(cmd, cfg, opts)
		if err != nil {
			return err
		}
		w, err := podlog.NewWriter(wc)
		if err != nil {
			return err
		}
		defer w.Close()

		logger := logging.FromContext(cmd.Context())
		for _, path := range args {
			data, err := readPodFile(path, opts...)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			offset, err := w.Append(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			logger.Debug("appended pod", "file", path, "offset", offset, "bytes", len(data))
			cmd.Printf("%s: offset %d\n", path, offset)
		}
		return w.Sync()
	},
}

var logCatCmd = &cobra.Command{
	Use:   "cat",
	Short: "Print the records of the log",
	Long: `Print every record of the pod log with its offset and timestamp,
followed by the pod rendered in the requested format.

Examples:
  podctl log cat
  podctl log cat --offset 4096 --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		offset, _ := cmd.Flags().GetInt64("offset")
		cfg, err := configFrom(cmd)
		if err != nil {
			return err
		}
		opts, err := cfg.Format.Options()
		if err != nil {
			return err
		}
		return catLog(cmd.OutOrStdout(), logPath(cmd, cfg), offset, format, opts...)
	},
}

var logCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify the log and optionally truncate a damaged tail",
	Long: `Scan the pod log from the start and stop at the first damaged record.
With --repair the file is truncated to its intact prefix.

Example:
  podctl log check --repair`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		repair, _ := cmd.Flags().GetBool("repair")
		cfg, err := configFrom(cmd)
		if err != nil {
			return err
		}
		path := logPath(cmd, cfg)

		res, err := podlog.Scan(path)
		if err != nil {
			return err
		}
		cmd.Printf("%s: %d record(s), %d intact byte(s)\n", path, res.Records, res.ValidSize)
		if res.Err == nil {
			return nil
		}
		cmd.Printf("damaged tail: %v\n", res.Err)
		if !repair {
			return fmt.Errorf("log is damaged after offset %d", res.ValidSize)
		}
		if err := os.Truncate(path, res.ValidSize); err != nil {
			return fmt.Errorf("failed to truncate log: %w", err)
		}
		logging.FromContext(cmd.Context()).Warn("truncated pod log", "path", path, "size", res.ValidSize)
		cmd.Printf("Truncated %s to %d byte(s)\n", path, res.ValidSize)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.AddCommand(logAppendCmd, logCatCmd, logCheckCmd)

	logCmd.PersistentFlags().String("file", "", "Pod log path (default: log.path from the configuration)")
	logAppendCmd.Flags().String("compress", "", "Record compression: none, lz4, zstd (default: log.compression)")
	logCatCmd.Flags().StringP("format", "f", inspect.FormatText, "Output format: text, json, yaml")
	logCatCmd.Flags().Int64("offset", 0, "Offset of the first record to print")
	logCheckCmd.Flags().Bool("repair", false, "Truncate the log to its intact prefix")
}

func logPath(cmd *cobra.Command, cfg *config.Config) string {
	if path, _ := cmd.Flags().GetString("file"); path != "" {
		return path
	}
	return cfg.Log.Path
}

func writerConfig(cmd *cobra.Command, cfg *config.Config, opts []pod.Option) (podlog.WriterConfig, error) {
	name := cfg.Log.Compression
	if flag, _ := cmd.Flags().GetString("compress"); flag != "" {
		name = flag
	}
	compression, err := podlog.ParseCompression(name)
	if err != nil {
		return podlog.WriterConfig{}, err
	}
	return podlog.WriterConfig{
		FilePath:      logPath(cmd, cfg),
		FsyncInterval: cfg.Log.FsyncInterval,
		BufferSize:    cfg.Log.BufferSize,
		PodOptions:    opts,
		Compression:   compression,
	}, nil
}

// catLog prints the records of the log at path starting at offset.
func catLog(w io.Writer, path string, offset int64, format string, opts ...pod.Option) error {
	if format == inspect.FormatCBOR {
		return fmt.Errorf("cbor output is not supported for log records")
	}
	r, err := podlog.NewReader(podlog.ReaderConfig{FilePath: path, StartOffset: offset})
	if err != nil {
		return err
	}
	defer r.Close()

	it := r.Iterator()
	defer it.Close()
	for it.Next() {
		rec := it.Record()
		fmt.Fprintf(w, "# offset %d, %s, %d byte(s), %s\n",
			rec.Offset, rec.Time().UTC().Format(time.RFC3339Nano), len(rec.Pod), rec.Compression())
		if err := inspect.Render(w, rec.Pod, format, opts...); err != nil {
			return fmt.Errorf("record at offset %d: %w", rec.Offset, err)
		}
	}
	return it.Err()
}
