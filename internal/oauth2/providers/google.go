package providers

import (
	"context"
	"errors"
	"fmt"

	xoauth2 "golang.org/x/oauth2"

	"github.com/mrlokans/autobooks/internal/entities"
)

const (
	googleAuthURL  = "https://accounts.google.com/o/oauth2/auth"
	googleTokenURL = "https://oauth2.googleapis.com/token"
	googleAPIURL   = "https://www.googleapis.com"

	// DriveAppDataScope grants access to the app's hidden Drive folder only.
	DriveAppDataScope = "https://www.googleapis.com/auth/drive.appdata"
)

// GoogleProvider implements OAuth2 for Google Drive. Installed apps get a
// client secret that is not confidential; PKCE is used as well.
type GoogleProvider struct {
	baseProvider
}

// NewGoogleProvider creates a new Google OAuth2 provider
func NewGoogleProvider(clientID, clientSecret string, opts ...Option) *GoogleProvider {
	p := &GoogleProvider{baseProvider: newBase(
		entities.OAuthProviderGoogle,
		clientID,
		clientSecret,
		xoauth2.Endpoint{
			AuthURL:   googleAuthURL,
			TokenURL:  googleTokenURL,
			AuthStyle: xoauth2.AuthStyleInParams,
		},
		googleAPIURL,
	)}
	p.scopes = []string{DriveAppDataScope}
	p.authParams = []xoauth2.AuthCodeOption{
		xoauth2.AccessTypeOffline,
		xoauth2.SetAuthURLParam("prompt", "consent"),
	}
	for _, opt := range opts {
		opt(&p.baseProvider)
	}
	return p
}

// GetAccountInfo returns the Drive user's email address.
func (p *GoogleProvider) GetAccountInfo(ctx context.Context, accessToken string) (string, error) {
	var about struct {
		User struct {
			EmailAddress string `json:"emailAddress"`
			PermissionID string `json:"permissionId"`
		} `json:"user"`
	}
	resp, err := p.api.R().
		SetContext(ctx).
		SetAuthToken(accessToken).
		SetQueryParam("fields", "user(emailAddress,permissionId)").
		SetResult(&about).
		Get("/drive/v3/about")
	if err != nil {
		return "", fmt.Errorf("failed to get account info: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("failed to get account info (status %d): %s", resp.StatusCode(), resp.String())
	}
	switch {
	case about.User.EmailAddress != "":
		return about.User.EmailAddress, nil
	case about.User.PermissionID != "":
		return about.User.PermissionID, nil
	}
	return "", errors.New("account info response has no user")
}
