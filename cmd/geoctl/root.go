package main

import (
	"encoding/json"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/geoapp/geoapp-api/internal/app"
)

type env struct {
	cfg    *app.Config
	logger *slog.Logger
}

func loadEnv() (*env, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, logger: app.NewLogger(cfg)}, nil
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "geoctl",
		Short: "Operator tooling for the GeoApp API.",
		Long: `geoctl performs one-off operator tasks using the same environment
configuration as the API server: seeding roles and the administrator,
minting registration tokens, and enqueueing background jobs.`,
		SilenceUsage: true,
	}
	root.AddCommand(newSeedCmd(), newTokenCmd(), newJobsCmd())
	return root
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
