package oauth2

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xoauth2 "golang.org/x/oauth2"

	"github.com/mrlokans/autobooks/internal/crypto"
	"github.com/mrlokans/autobooks/internal/database"
	"github.com/mrlokans/autobooks/internal/entities"
	"github.com/mrlokans/autobooks/internal/tokenstore"
)

type fakeProvider struct {
	refreshes   atomic.Int32
	refreshErr  error
	accountInfo string
}

func (p *fakeProvider) Name() entities.OAuthProvider { return entities.OAuthProviderDropbox }

func (p *fakeProvider) Config(redirectURL string) *xoauth2.Config {
	return &xoauth2.Config{ClientID: "fake", RedirectURL: redirectURL}
}

func (p *fakeProvider) BuildAuthURL(string) (string, string, string, error) {
	return "https://example.com/auth", "verifier", "state", nil
}

func (p *fakeProvider) ExchangeCode(_ context.Context, code, verifier, _ string) (*TokenResponse, error) {
	if verifier != "verifier" {
		return nil, errors.New("bad verifier")
	}
	return &TokenResponse{
		AccessToken:  "access-" + code,
		RefreshToken: "refresh-" + code,
		TokenType:    "bearer",
		Expiry:       time.Now().Add(time.Hour),
	}, nil
}

func (p *fakeProvider) RefreshToken(_ context.Context, refreshToken string) (*TokenResponse, error) {
	if p.refreshErr != nil {
		return nil, p.refreshErr
	}
	p.refreshes.Add(1)
	return &TokenResponse{
		AccessToken:  "refreshed",
		RefreshToken: refreshToken,
		Expiry:       time.Now().Add(time.Hour),
	}, nil
}

func (p *fakeProvider) GetAccountInfo(context.Context, string) (string, error) {
	return p.accountInfo, nil
}

func setupTokenStore(t *testing.T) *tokenstore.TokenStore {
	t.Helper()
	t.Setenv(tokenstore.EnvEncryptionKey, "")
	t.Setenv(tokenstore.EnvEncryptionPassphrase, "")

	db, err := database.NewQuietDatabase(filepath.Join(t.TempDir(), "oauth.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	store, err := tokenstore.New(db.DB, tokenstore.Config{EncryptionKey: key})
	require.NoError(t, err)
	return store
}

func saveToken(t *testing.T, store *tokenstore.TokenStore, expiresAt time.Time, refresh string) {
	t.Helper()
	require.NoError(t, store.SaveToken(&entities.DecryptedToken{
		Provider:     entities.OAuthProviderDropbox,
		AccountID:    "acct",
		AccessToken:  "stored",
		RefreshToken: refresh,
		ExpiresAt:    &expiresAt,
	}))
}

func TestRegistry(t *testing.T) {
	registry := NewRegistry()
	_, err := registry.Get(entities.OAuthProviderDropbox)
	assert.ErrorIs(t, err, ErrProviderNotFound)

	registry.Register(&fakeProvider{})
	p, err := registry.Get(entities.OAuthProviderDropbox)
	require.NoError(t, err)
	assert.Equal(t, entities.OAuthProviderDropbox, p.Name())
	assert.Len(t, registry.All(), 1)
}

func TestFromOAuth2Token(t *testing.T) {
	tok := (&xoauth2.Token{AccessToken: "a", TokenType: "bearer"}).WithExtra(map[string]any{
		"scope":      "drive.appdata",
		"account_id": "dbid:1",
	})
	resp := FromOAuth2Token(tok)
	assert.Equal(t, "drive.appdata", resp.Scope)
	assert.Equal(t, "dbid:1", resp.AccountID)
	assert.Nil(t, resp.ExpiresAt())
}

func TestStoredTokenSource_ValidToken(t *testing.T) {
	store := setupTokenStore(t)
	provider := &fakeProvider{}
	saveToken(t, store, time.Now().Add(time.Hour), "r")

	ts := NewStoredTokenSource(provider, store, "acct")
	token, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stored", token)
	assert.True(t, ts.IsValid())
	assert.Zero(t, provider.refreshes.Load())
}

func TestStoredTokenSource_RefreshesExpiring(t *testing.T) {
	store := setupTokenStore(t)
	provider := &fakeProvider{}
	saveToken(t, store, time.Now().Add(time.Minute), "r")

	ts := NewStoredTokenSource(provider, store, "acct")
	token, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "refreshed", token)
	assert.EqualValues(t, 1, provider.refreshes.Load())

	saved, err := store.GetToken(entities.OAuthProviderDropbox, "acct")
	require.NoError(t, err)
	assert.Equal(t, "refreshed", saved.AccessToken)
	assert.Equal(t, "r", saved.RefreshToken)

	// Cached until it nears expiry again.
	_, err = ts.Token(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, provider.refreshes.Load())
}

func TestStoredTokenSource_ExpiredWithoutRefreshToken(t *testing.T) {
	store := setupTokenStore(t)
	saveToken(t, store, time.Now().Add(-time.Minute), "")

	ts := NewStoredTokenSource(&fakeProvider{}, store, "acct")
	_, err := ts.Token(context.Background())
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.ErrorIs(t, ts.ForceRefresh(context.Background()), ErrNoRefreshToken)
}

func TestStoredTokenSource_Missing(t *testing.T) {
	store := setupTokenStore(t)
	ts := NewStoredTokenSource(&fakeProvider{}, store, "nobody")
	_, err := ts.Token(context.Background())
	assert.ErrorIs(t, err, ErrTokenNotFound)

	_, err = ProviderTokenSource(&fakeProvider{}, store)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestAsOAuth2(t *testing.T) {
	tok, err := AsOAuth2(context.Background(), NewStaticTokenSource("abc", "acct")).Token()
	require.NoError(t, err)
	assert.Equal(t, "abc", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)

	_, err = AsOAuth2(context.Background(), NewStaticTokenSource("", "")).Token()
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestFlowHandler_CompleteAndSignOut(t *testing.T) {
	store := setupTokenStore(t)
	provider := &fakeProvider{accountInfo: "mina@example.com"}
	flow := NewFlowHandler(provider, store)

	result, err := flow.Complete(context.Background(), "code1", "verifier", "http://localhost/callback")
	require.NoError(t, err)
	assert.Equal(t, "mina@example.com", result.AccountID)
	require.NotNil(t, result.ExpiresAt)

	saved, err := store.GetTokenByProvider(entities.OAuthProviderDropbox)
	require.NoError(t, err)
	require.NotNil(t, saved)
	assert.Equal(t, "access-code1", saved.AccessToken)
	assert.Equal(t, "refresh-code1", saved.RefreshToken)

	removed, err := flow.SignOut()
	require.NoError(t, err)
	assert.EqualValues(t, 1, removed)

	saved, err = store.GetTokenByProvider(entities.OAuthProviderDropbox)
	require.NoError(t, err)
	assert.Nil(t, saved)
}

func TestCallbackHandler(t *testing.T) {
	tests := []struct {
		name    string
		query   string
		status  int
		code    string
		wantErr error
	}{
		{name: "success", query: "?state=s1&code=abc", status: http.StatusOK, code: "abc"},
		{name: "state mismatch", query: "?state=other&code=abc", status: http.StatusBadRequest, wantErr: ErrStateMismatch},
		{name: "provider error", query: "?error=access_denied&error_description=nope", status: http.StatusBadRequest},
		{name: "missing code", query: "?state=s1", status: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := make(chan callbackResult, 1)
			rec := httptest.NewRecorder()
			callbackHandler("s1", results)(rec, httptest.NewRequest(http.MethodGet, "/callback"+tt.query, nil))

			assert.Equal(t, tt.status, rec.Code)
			res := <-results
			if tt.status == http.StatusOK {
				require.NoError(t, res.err)
				assert.Equal(t, tt.code, res.code)
				return
			}
			require.Error(t, res.err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, res.err, tt.wantErr)
			}
		})
	}
}
