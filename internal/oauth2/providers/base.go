// Package providers implements the OAuth2 providers the backup feature can
// sign in to. Both use the authorization code flow with PKCE.
package providers

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	xoauth2 "golang.org/x/oauth2"

	"github.com/mrlokans/autobooks/internal/entities"
	"github.com/mrlokans/autobooks/internal/oauth2"
)

// Option overrides provider endpoints, mainly for tests.
type Option func(*baseProvider)

// WithEndpoint replaces the authorization and token URLs.
func WithEndpoint(authURL, tokenURL string) Option {
	return func(p *baseProvider) {
		p.endpoint.AuthURL = authURL
		p.endpoint.TokenURL = tokenURL
	}
}

// WithAPIURL replaces the base URL used for account lookups.
func WithAPIURL(apiURL string) Option {
	return func(p *baseProvider) {
		p.api.SetBaseURL(apiURL)
	}
}

type baseProvider struct {
	name         entities.OAuthProvider
	clientID     string
	clientSecret string
	endpoint     xoauth2.Endpoint
	scopes       []string
	authParams   []xoauth2.AuthCodeOption
	api          *resty.Client
}

func newBase(name entities.OAuthProvider, clientID, clientSecret string, endpoint xoauth2.Endpoint, apiURL string) baseProvider {
	return baseProvider{
		name:         name,
		clientID:     clientID,
		clientSecret: clientSecret,
		endpoint:     endpoint,
		api:          resty.New().SetBaseURL(apiURL).SetTimeout(30 * time.Second),
	}
}

func (p *baseProvider) Name() entities.OAuthProvider {
	return p.name
}

func (p *baseProvider) Config(redirectURL string) *xoauth2.Config {
	return &xoauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		Endpoint:     p.endpoint,
		RedirectURL:  redirectURL,
		Scopes:       p.scopes,
	}
}

func (p *baseProvider) BuildAuthURL(redirectURL string) (authURL, codeVerifier, state string, err error) {
	state, err = generateState()
	if err != nil {
		return "", "", "", fmt.Errorf("failed to generate state: %w", err)
	}
	codeVerifier = xoauth2.GenerateVerifier()

	opts := append([]xoauth2.AuthCodeOption{xoauth2.S256ChallengeOption(codeVerifier)}, p.authParams...)
	return p.Config(redirectURL).AuthCodeURL(state, opts...), codeVerifier, state, nil
}

func (p *baseProvider) ExchangeCode(ctx context.Context, code, codeVerifier, redirectURL string) (*oauth2.TokenResponse, error) {
	tok, err := p.Config(redirectURL).Exchange(ctx, code, xoauth2.VerifierOption(codeVerifier))
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	return oauth2.FromOAuth2Token(tok), nil
}

func (p *baseProvider) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.TokenResponse, error) {
	tok, err := p.Config("").TokenSource(ctx, &xoauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	return oauth2.FromOAuth2Token(tok), nil
}

func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Register adds every provider that has credentials configured.
func Register(registry *oauth2.Registry, dropboxAppKey, googleClientID, googleClientSecret string) {
	if dropboxAppKey != "" {
		registry.Register(NewDropboxProvider(dropboxAppKey))
	}
	if googleClientID != "" {
		registry.Register(NewGoogleProvider(googleClientID, googleClientSecret))
	}
}
