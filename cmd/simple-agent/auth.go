package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/tuxsy/my-ai-agents/calendar"
	"github.com/tuxsy/my-ai-agents/config"
)

func newAuthCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize calendar access and cache the token",
		Args:  cobra.NoArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd, (*config.Config).ValidateAuth)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			creds, err := newCredentials(a.cfg, a.logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "cached token: %s\n", creds.State())

			tok, err := calendar.Token(cmd.Context(), creds)
			if err != nil {
				return fmt.Errorf("authorization failed: %w", err)
			}

			fmt.Fprintf(out, "token ready at %s, expires %s\n",
				creds.TokenPath(), tok.Expiry.Format(time.RFC3339))
			return nil
		},
	}
}
