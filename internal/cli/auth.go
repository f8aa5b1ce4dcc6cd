package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/mrlokans/autobooks/internal/backup"
	"github.com/mrlokans/autobooks/internal/cli/colours"
	"github.com/mrlokans/autobooks/internal/entities"
	"github.com/mrlokans/autobooks/internal/oauth2"
)

type authFlags struct {
	port    int
	timeout time.Duration
}

func (f *authFlags) bind(cmd *cobra.Command) {
	defaults := oauth2.DefaultCLIFlowConfig()
	cmd.Flags().IntVar(&f.port, "port", defaults.Port, "Local callback port, 0 picks a free one")
	cmd.Flags().DurationVar(&f.timeout, "timeout", defaults.Timeout, "How long to wait for authorization")
}

func (r *runner) dropboxAuthCommand() *cobra.Command {
	flags := &authFlags{}
	cmd := &cobra.Command{
		Use:   "dropbox-auth",
		Short: "Sign in to Dropbox for cloud backups",
		Long: `Runs the OAuth2 PKCE flow against Dropbox and stores the encrypted tokens.

Register an app at https://www.dropbox.com/developers/apps with the redirect
URI http://localhost:8089/callback and set DROPBOX_APP_KEY.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if r.cfg.Dropbox.AppKey == "" {
				return fmt.Errorf("DROPBOX_APP_KEY is not set")
			}
			return r.runAuthFlow(cmd, entities.OAuthProviderDropbox, "Dropbox", flags)
		},
	}
	flags.bind(cmd)
	return cmd
}

func (r *runner) googleAuthCommand() *cobra.Command {
	flags := &authFlags{}
	cmd := &cobra.Command{
		Use:   "google-auth",
		Short: "Sign in to Google Drive for cloud backups",
		Long: `Runs the OAuth2 PKCE flow against Google and stores the encrypted tokens.

Create a desktop OAuth client in the Google Cloud console and set
GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if r.cfg.Google.ClientID == "" {
				return fmt.Errorf("GOOGLE_CLIENT_ID is not set")
			}
			return r.runAuthFlow(cmd, entities.OAuthProviderGoogle, "Google Drive", flags)
		},
	}
	flags.bind(cmd)
	return cmd
}

func (r *runner) runAuthFlow(cmd *cobra.Command, name entities.OAuthProvider, label string, flags *authFlags) error {
	app, err := r.open()
	if err != nil {
		return err
	}
	provider, err := app.Registry.Get(name)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	header := label + " OAuth Flow"
	colours.Title.Fprintln(out, header)
	colours.Title.Fprintln(out, strings.Repeat("=", len(header)))

	handler := oauth2.NewFlowHandler(provider, app.Tokens)
	result, err := handler.RunCLIFlow(cmd.Context(), oauth2.CLIFlowConfig{
		Port:    flags.port,
		Timeout: flags.timeout,
		OnAuthURL: func(url string) {
			colours.Prompt.Fprintln(out, "\nOpen this URL in your browser to authorize:")
			fmt.Fprintf(out, "\n%s\n\n", url)
			colours.Dim.Fprintln(out, "Waiting for authorization...")
		},
		OnCodeReceived: func() {
			colours.Info.Fprintln(out, "Authorization code received, exchanging for tokens...")
		},
	})
	if err != nil {
		return err
	}
	printFlowResult(out, result)
	return nil
}

func printFlowResult(out io.Writer, result *oauth2.FlowResult) {
	colours.Success.Fprintln(out, "\n✓ Signed in")
	if result.AccountID != "" {
		fmt.Fprintf(out, "  Account: %s\n", result.AccountID)
	}
	if result.ExpiresAt != nil {
		fmt.Fprintf(out, "  Token expires: %s\n", result.ExpiresAt.Local().Format(time.RFC1123))
	}
	if result.Scope != "" {
		colours.Dim.Fprintf(out, "  Scope: %s\n", result.Scope)
	}
}

func (r *runner) signOutCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "sign-out <dropbox|gdrive>",
		Short:     "Forget the stored tokens of a backup provider",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"dropbox", "gdrive"},
		RunE: func(cmd *cobra.Command, args []string) error {
			name, ok := backup.OAuthProvider(args[0])
			if !ok {
				return fmt.Errorf("provider %q does not use a sign-in", args[0])
			}
			app, err := r.open()
			if err != nil {
				return err
			}
			provider, err := app.Registry.Get(name)
			if err != nil {
				return err
			}
			removed, err := oauth2.NewFlowHandler(provider, app.Tokens).SignOut()
			if err != nil {
				return err
			}
			if removed == 0 {
				colours.Warning.Fprintf(cmd.OutOrStdout(), "No %s account was signed in\n", args[0])
				return nil
			}
			colours.Success.Fprintf(cmd.OutOrStdout(), "Signed out of %s\n", args[0])
			return nil
		},
	}
}
