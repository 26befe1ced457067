package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/geoapp/geoapp-api/internal/app"
	"github.com/geoapp/geoapp-api/internal/bootstrap"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create missing roles and the initial administrator.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := loadEnv()
			if err != nil {
				return err
			}
			identity, err := app.OpenIdentity(cmd.Context(), e.cfg, e.logger)
			if err != nil {
				return err
			}
			defer identity.Close()
			seeder, err := bootstrap.NewSeeder(identity.Store, e.cfg.Admin(), e.logger)
			if err != nil {
				return err
			}
			if err := seeder.Seed(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "seed complete")
			return nil
		},
	}
}
