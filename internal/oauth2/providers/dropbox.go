package providers

import (
	"context"
	"fmt"

	xoauth2 "golang.org/x/oauth2"

	"github.com/mrlokans/autobooks/internal/entities"
)

const (
	dropboxAuthURL  = "https://www.dropbox.com/oauth2/authorize"
	dropboxTokenURL = "https://api.dropboxapi.com/oauth2/token"
	dropboxAPIURL   = "https://api.dropboxapi.com/2"
)

// DropboxProvider implements OAuth2 for Dropbox using PKCE without a client secret.
type DropboxProvider struct {
	baseProvider
}

// NewDropboxProvider creates a new Dropbox OAuth2 provider
func NewDropboxProvider(appKey string, opts ...Option) *DropboxProvider {
	p := &DropboxProvider{baseProvider: newBase(
		entities.OAuthProviderDropbox,
		appKey,
		"",
		xoauth2.Endpoint{
			AuthURL:   dropboxAuthURL,
			TokenURL:  dropboxTokenURL,
			AuthStyle: xoauth2.AuthStyleInParams,
		},
		dropboxAPIURL,
	)}
	// Scopes are configured in the Dropbox app console; offline access
	// returns a refresh token.
	p.authParams = []xoauth2.AuthCodeOption{xoauth2.SetAuthURLParam("token_access_type", "offline")}
	for _, opt := range opts {
		opt(&p.baseProvider)
	}
	return p
}

func (p *DropboxProvider) GetAccountInfo(ctx context.Context, accessToken string) (string, error) {
	var account struct {
		AccountID string `json:"account_id"`
	}
	resp, err := p.api.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetResult(&account).
		Post("/users/get_current_account")
	if err != nil {
		return "", fmt.Errorf("failed to get account info: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("failed to get account info (status %d): %s", resp.StatusCode(), resp.String())
	}
	return account.AccountID, nil
}
