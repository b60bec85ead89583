package main

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/yairfalse/bucketlens/internal/plugin"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configured agents and visible buckets",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	out := map[string]any{
		"region":       cfg.AWS.Region,
		"llm_provider": cfg.LLM.Provider,
		"default_mode": cfg.Agent.Mode,
		"backends":     plugin.Names(),
		"agents":       a.hub.Status(),
	}
	names, err := a.hub.ListBuckets(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("list buckets failed")
		out["bucket_error"] = err.Error()
	} else {
		out["bucket_names"] = names
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
