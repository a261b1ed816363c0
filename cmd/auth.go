package cmd

import (
	"bufio"
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/newsletterpost/internal/google"
)

func newAuthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authorize Gmail access and save the token file",
		Long: `Print the Google consent URL, read the authorization code (or the
full redirect URL) from stdin and store the resulting tokens in
GOOGLE_TOKEN_FILE. Requires GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.close(ctx)

			opts := a.googleOptions()
			authURL, err := google.AuthURL(opts)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Open this URL in your browser and authorize access:\n\n%s\n\n", authURL)
			fmt.Fprint(out, "Paste the authorization code or redirect URL: ")

			line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
			if err != nil && line == "" {
				return fmt.Errorf("failed to read authorization code: %w", err)
			}
			code, err := google.ParseAuthCode(line)
			if err != nil {
				return err
			}

			if err := google.ExchangeAndSave(ctx, opts, code); err != nil {
				return err
			}
			fmt.Fprintf(out, "Token saved to %s\n", a.cfg.TokenFile)
			return nil
		},
	}
}
