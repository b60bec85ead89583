package main

import (
	"context"
	"encoding/json"

	"github.com/spf13/cobra"
)

var analyzeMode string

var analyzeCmd = &cobra.Command{
	Use:   "analyze <bucket>",
	Short: "Print the inspection report for one bucket",
	Example: `  bucketlens analyze prod-logs
  bucketlens analyze media --mode classifier`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().StringVarP(&analyzeMode, "mode", "m", "", "Agent cache to use (default from config)")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	svc, err := a.service(analyzeMode)
	if err != nil {
		return err
	}
	rep, err := svc.Analyze(ctx, args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(rep)
}
