package oauth2

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	xoauth2 "golang.org/x/oauth2"

	"github.com/mrlokans/autobooks/internal/tokenstore"
)

// TokenSource provides access tokens with automatic refresh capability
type TokenSource interface {
	// Token returns a valid access token, refreshing if necessary
	Token(ctx context.Context) (string, error)

	// ForceRefresh forces a token refresh regardless of expiry status
	ForceRefresh(ctx context.Context) error

	// IsValid returns true if the current token is valid and not expired
	IsValid() bool

	// ExpiresAt returns the token expiry time, or nil if unknown/no expiry
	ExpiresAt() *time.Time

	// AccountID returns the account identifier associated with this token
	AccountID() string
}

// StoredTokenSource provides tokens from the token store with automatic refresh
type StoredTokenSource struct {
	mu sync.RWMutex

	provider   Provider
	tokenStore *tokenstore.TokenStore
	accountID  string

	accessToken string
	expiresAt   *time.Time

	// Margin before expiry to trigger refresh (default: 5 minutes)
	refreshMargin time.Duration
}

// StoredTokenSourceOption configures a StoredTokenSource
type StoredTokenSourceOption func(*StoredTokenSource)

// WithRefreshMargin sets the time before expiry to trigger automatic refresh
func WithRefreshMargin(d time.Duration) StoredTokenSourceOption {
	return func(s *StoredTokenSource) {
		if d > 0 {
			s.refreshMargin = d
		}
	}
}

// NewStoredTokenSource creates a TokenSource that retrieves and refreshes tokens from the store
func NewStoredTokenSource(
	provider Provider,
	store *tokenstore.TokenStore,
	accountID string,
	opts ...StoredTokenSourceOption,
) *StoredTokenSource {
	ts := &StoredTokenSource{
		provider:      provider,
		tokenStore:    store,
		accountID:     accountID,
		refreshMargin: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(ts)
	}
	return ts
}

// Token returns a valid access token, refreshing if necessary
func (s *StoredTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken != "" && !s.isExpiringSoon() {
		return s.accessToken, nil
	}

	token, err := s.tokenStore.GetToken(s.provider.Name(), s.accountID)
	if err != nil {
		return "", fmt.Errorf("failed to get token from store: %w", err)
	}
	if token == nil {
		return "", fmt.Errorf("%w for %s account %s", ErrTokenNotFound, s.provider.Name(), s.accountID)
	}

	s.accessToken = token.AccessToken
	s.expiresAt = token.ExpiresAt

	if s.isExpiringSoon() {
		if token.RefreshToken == "" {
			return "", ErrTokenExpired
		}
		if err := s.refreshLocked(ctx, token.RefreshToken); err != nil {
			return "", fmt.Errorf("failed to refresh token: %w", err)
		}
	}

	if err := s.tokenStore.UpdateLastUsed(s.provider.Name(), s.accountID); err != nil {
		logrus.WithError(err).Debug("Failed to record token use")
	}
	return s.accessToken, nil
}

// ForceRefresh forces a token refresh
func (s *StoredTokenSource) ForceRefresh(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, err := s.tokenStore.GetToken(s.provider.Name(), s.accountID)
	if err != nil {
		return fmt.Errorf("failed to get token from store: %w", err)
	}
	if token == nil {
		return ErrTokenNotFound
	}
	if token.RefreshToken == "" {
		return ErrNoRefreshToken
	}
	return s.refreshLocked(ctx, token.RefreshToken)
}

// refreshLocked performs token refresh (caller must hold the lock)
func (s *StoredTokenSource) refreshLocked(ctx context.Context, refreshToken string) error {
	resp, err := s.provider.RefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}

	expiresAt := resp.ExpiresAt()
	if err := s.tokenStore.UpdateTokenAfterRefresh(
		s.provider.Name(),
		s.accountID,
		resp.AccessToken,
		resp.RefreshToken,
		expiresAt,
	); err != nil {
		return fmt.Errorf("failed to save refreshed token: %w", err)
	}

	s.accessToken = resp.AccessToken
	s.expiresAt = expiresAt
	logrus.WithFields(logrus.Fields{
		"provider": s.provider.Name(),
		"account":  s.accountID,
	}).Debug("Refreshed access token")
	return nil
}

// IsValid returns true if the current token exists and is not expired
func (s *StoredTokenSource) IsValid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken != "" && !s.isExpiringSoon()
}

// ExpiresAt returns the token expiry time
func (s *StoredTokenSource) ExpiresAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.expiresAt
}

// AccountID returns the associated account identifier
func (s *StoredTokenSource) AccountID() string {
	return s.accountID
}

func (s *StoredTokenSource) isExpiringSoon() bool {
	if s.expiresAt == nil {
		return false
	}
	return time.Now().Add(s.refreshMargin).After(*s.expiresAt)
}

// StaticTokenSource provides a fixed access token without refresh capability
type StaticTokenSource struct {
	accessToken string
	accountID   string
}

// NewStaticTokenSource creates a TokenSource with a fixed token
func NewStaticTokenSource(accessToken, accountID string) *StaticTokenSource {
	return &StaticTokenSource{accessToken: accessToken, accountID: accountID}
}

func (s *StaticTokenSource) Token(context.Context) (string, error) {
	if s.accessToken == "" {
		return "", ErrTokenNotFound
	}
	return s.accessToken, nil
}

func (s *StaticTokenSource) ForceRefresh(context.Context) error {
	return ErrNoRefreshToken
}

func (s *StaticTokenSource) IsValid() bool {
	return s.accessToken != ""
}

func (s *StaticTokenSource) ExpiresAt() *time.Time {
	return nil
}

func (s *StaticTokenSource) AccountID() string {
	return s.accountID
}

// ProviderTokenSource creates a TokenSource for the most recently used account of a provider
func ProviderTokenSource(
	provider Provider,
	store *tokenstore.TokenStore,
	opts ...StoredTokenSourceOption,
) (*StoredTokenSource, error) {
	token, err := store.GetTokenByProvider(provider.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	if token == nil {
		return nil, fmt.Errorf("%w for %s: sign in first", ErrTokenNotFound, provider.Name())
	}
	return NewStoredTokenSource(provider, store, token.AccountID, opts...), nil
}

// oauth2Adapter exposes a TokenSource as an x/oauth2 token source.
type oauth2Adapter struct {
	ctx    context.Context
	source TokenSource
}

// AsOAuth2 adapts a TokenSource for clients built on golang.org/x/oauth2,
// such as the Google API clients.
func AsOAuth2(ctx context.Context, source TokenSource) xoauth2.TokenSource {
	return &oauth2Adapter{ctx: ctx, source: source}
}

func (a *oauth2Adapter) Token() (*xoauth2.Token, error) {
	access, err := a.source.Token(a.ctx)
	if err != nil {
		return nil, err
	}
	tok := &xoauth2.Token{AccessToken: access, TokenType: "Bearer"}
	if exp := a.source.ExpiresAt(); exp != nil {
		tok.Expiry = *exp
	}
	return tok, nil
}
