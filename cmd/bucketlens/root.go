package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/bucketlens/internal/config"
	"github.com/yairfalse/bucketlens/internal/telemetry"
)

var (
	version = "0.1.0"

	configPath string
	envFiles   []string
	debug      bool

	cfg *config.Config

	rootCmd = &cobra.Command{
		Use:   "bucketlens",
		Short: "Ask questions about your S3 buckets",
		Long: `bucketlens - On-demand S3 bucket analysis

bucketlens answers natural-language questions about your S3 buckets.
Buckets are inspected only when a question needs them, and reports are
cached until you clear them. Mutating requests are refused.`,
		Version:           version,
		SilenceUsage:      true,
		PersistentPreRunE: loadConfig,
	}
)

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.SetVersionTemplate(`bucketlens {{.Version}}
`)
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to TOML config file")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "Env files loaded before the config")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
}

// loadConfig runs before every subcommand: env files, config, logger.
func loadConfig(_ *cobra.Command, _ []string) error {
	if err := config.LoadDotEnv(envFiles...); err != nil {
		return err
	}

	loaded, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if debug {
		loaded.Log.Level = zerolog.LevelDebugValue
	}
	if err := loaded.Validate(); err != nil {
		return err
	}

	log.Logger = telemetry.NewLogger(os.Stderr, loaded.Log.Level, true)
	cfg = loaded
	return nil
}
