package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/agentleads/internal/google"
)

func newAuthCmd() *cobra.Command {
	var (
		force  bool
		status bool
	)

	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Authorize access to Google Sheets and Drive",
		Long: `Run the Google OAuth consent flow and cache the token.

The OAuth client is read from the credentials file (GOOGLE_CREDENTIALS_FILE,
default credentials.json) and the token is cached in GOOGLE_TOKEN_FILE
(default token.json). A cached token is reused and refreshed as needed;
use --force to discard it and authorize again.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			a, err := newApp(ctx, appOptions{interactiveAuth: !status, forceReauth: force, out: cmd.ErrOrStderr()})
			if err != nil {
				return err
			}
			defer a.Close()

			p := newPrinter(cmd.OutOrStdout())

			if status {
				oauthConfig, err := google.LoadConfig(a.cfg.GoogleCredentialsFile, google.DefaultOAuthScopes...)
				if err != nil {
					return err
				}
				provider := google.NewFileTokenProvider(oauthConfig, a.cfg.GoogleTokenFile)
				if !provider.HasToken() {
					p.Warn("Not authorized: no token cached at %s", a.cfg.GoogleTokenFile)
					return google.ErrAuthRequired
				}
				tok, err := provider.Token(ctx)
				if err != nil {
					p.Error("Cached token at %s is not usable: %v", a.cfg.GoogleTokenFile, err)
					return err
				}
				p.Success("Authorized (token cached at %s, expires %s)", a.cfg.GoogleTokenFile, tok.Expiry.Local().Format("2006-01-02 15:04"))
				return nil
			}

			ts, err := a.factory.TokenSource(ctx)
			if err != nil {
				return err
			}
			if _, err := ts.Token(); err != nil {
				return fmt.Errorf("failed to obtain token: %w", err)
			}
			p.Success("Google authorization complete. Token saved to %s", a.cfg.GoogleTokenFile)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Discard the cached token and authorize again")
	cmd.Flags().BoolVar(&status, "status", false, "Only report whether a usable token is cached")
	return cmd
}
