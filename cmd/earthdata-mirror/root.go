package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var version = "dev"

func newRootCommand() *cobra.Command {
	opts := defaultRunOptions()

	rootCmd := &cobra.Command{
		Use:   "earthdata-mirror <config_file> <output_dir>",
		Short: "Mirror catalog-referenced assets to local or cloud storage",
		Long: `earthdata-mirror downloads every asset referenced by a catalog
search, resuming safely after interruption. Completed and missing URLs
are journaled per job namespace and excluded from subsequent runs;
failures are isolated per task and retried next run.

The output directory may be a plain path or a bucket URL (s3://,
gs://).`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.configPath = args[0]
			opts.outputDir = args[1]

			logger, err := newLogger(opts.verbose)
			if err != nil {
				return err
			}
			defer logger.Sync()

			_, err = runMirror(context.Background(), opts, nil, logger)
			return err
		},
	}

	rootCmd.Flags().IntVar(&opts.concurrency, "concurrency", opts.concurrency, "Maximum in-flight downloads")
	rootCmd.Flags().IntVar(&opts.startIndex, "start_i", opts.startIndex, "First task index to run (inclusive)")
	rootCmd.Flags().IntVar(&opts.endIndex, "end_i", opts.endIndex, "Task index to stop before (exclusive, -1 for all)")
	rootCmd.Flags().StringVar(&opts.whitelistFile, "whitelist_file", "", "Newline-delimited URLs to re-attempt regardless of prior outcome")
	rootCmd.Flags().StringVar(&opts.stateDir, "state_dir", opts.stateDir, "Directory holding per-job caches and logs")
	rootCmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(newVersionCommand())

	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger, nil
}
