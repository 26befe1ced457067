package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/geoapp/geoapp-api/internal/app"
	"github.com/geoapp/geoapp-api/internal/auth"
)

func newTokenCmd() *cobra.Command {
	token := &cobra.Command{
		Use:   "token",
		Short: "Mint tokens.",
	}
	token.AddCommand(&cobra.Command{
		Use:     "registration",
		Short:   "Print a short-lived token that allows one sign-up.",
		Long:    "Print a registration token. It carries only perm:Register and no identity.",
		Example: "geoctl token registration",
		Args:    cobra.NoArgs,
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
			issuer, err := auth.NewIssuer(e.cfg.Signing(), identity.Store, nil)
			if err != nil {
				return err
			}
			tok, err := issuer.IssueRegistrationToken()
			if err != nil {
				return err
			}
			e.logger.Info("registration token issued", slog.String("token_id", tok.ID), slog.String("source", "geoctl"))
			return printJSON(cmd, tok)
		},
	})
	return token
}
