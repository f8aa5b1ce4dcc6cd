package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/mrlokans/autobooks/internal/entities"
	"github.com/mrlokans/autobooks/internal/oauth2"
	"github.com/mrlokans/autobooks/internal/storage"
	"github.com/mrlokans/autobooks/internal/storage/providers/dropbox"
	"github.com/mrlokans/autobooks/internal/storage/providers/gdrive"
	"github.com/mrlokans/autobooks/internal/storage/providers/natsobj"
	"github.com/mrlokans/autobooks/internal/tokenstore"
)

// ProviderClients builds storage clients from signed-in accounts.
type ProviderClients struct {
	Registry      *oauth2.Registry
	Tokens        *tokenstore.TokenStore
	RefreshMargin time.Duration
	NATSURL       string
	NATSBucket    string
}

// OAuthProvider maps a backup provider name to the account it signs in with.
func OAuthProvider(provider string) (entities.OAuthProvider, bool) {
	switch provider {
	case "dropbox":
		return entities.OAuthProviderDropbox, true
	case "gdrive":
		return entities.OAuthProviderGoogle, true
	}
	return "", false
}

// Open implements ClientFactory.
func (p *ProviderClients) Open(ctx context.Context, provider string) (storage.Client, func(), error) {
	noop := func() {}

	if provider == "nats" {
		client, err := natsobj.Dial(p.NATSURL, p.NATSBucket)
		if err != nil {
			return nil, nil, err
		}
		return client, client.Close, nil
	}

	name, ok := OAuthProvider(provider)
	if !ok {
		return nil, nil, fmt.Errorf("unknown backup provider %q", provider)
	}
	oauthProvider, err := p.Registry.Get(name)
	if err != nil {
		return nil, nil, fmt.Errorf("%s is not configured: %w", provider, err)
	}
	tokens, err := oauth2.ProviderTokenSource(oauthProvider, p.Tokens, oauth2.WithRefreshMargin(p.RefreshMargin))
	if err != nil {
		return nil, nil, err
	}

	switch provider {
	case "dropbox":
		return dropbox.NewClient(tokens), noop, nil
	default:
		client, err := gdrive.NewClient(ctx, tokens)
		if err != nil {
			return nil, nil, err
		}
		return client, noop, nil
	}
}
