// Package oauth2 signs the app in to the cloud drives used for backups and
// keeps the resulting tokens fresh.
package oauth2

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	xoauth2 "golang.org/x/oauth2"

	"github.com/mrlokans/autobooks/internal/entities"
)

// TokenResponse contains tokens returned from the OAuth2 provider
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	Expiry       time.Time
	Scope        string
	AccountID    string // Provider-specific account identifier
}

// ExpiresAt returns the expiry, or nil when the token does not expire
func (t *TokenResponse) ExpiresAt() *time.Time {
	if t.Expiry.IsZero() {
		return nil
	}
	exp := t.Expiry
	return &exp
}

// FromOAuth2Token converts an x/oauth2 token.
func FromOAuth2Token(tok *xoauth2.Token) *TokenResponse {
	resp := &TokenResponse{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.Type(),
		Expiry:       tok.Expiry,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		resp.Scope = scope
	}
	if account, ok := tok.Extra("account_id").(string); ok {
		resp.AccountID = account
	}
	return resp
}

// Provider defines the interface for OAuth2 providers
type Provider interface {
	// Name returns the provider identifier (e.g., "dropbox", "google")
	Name() entities.OAuthProvider

	// Config returns the x/oauth2 configuration for a redirect URL
	Config(redirectURL string) *xoauth2.Config

	// BuildAuthURL constructs the authorization URL for the OAuth2 flow.
	// Returns the auth URL, PKCE code verifier and state parameter.
	BuildAuthURL(redirectURL string) (authURL, codeVerifier, state string, err error)

	// ExchangeCode exchanges an authorization code for tokens
	ExchangeCode(ctx context.Context, code, codeVerifier, redirectURL string) (*TokenResponse, error)

	// RefreshToken exchanges a refresh token for a new access token
	RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error)

	// GetAccountInfo retrieves the account identifier for the authenticated user
	GetAccountInfo(ctx context.Context, accessToken string) (accountID string, err error)
}

// Registry manages registered OAuth2 providers
type Registry struct {
	mu        sync.RWMutex
	providers map[entities.OAuthProvider]Provider
}

// NewRegistry creates a new provider registry
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[entities.OAuthProvider]Provider),
	}
}

// Register adds a provider to the registry
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get retrieves a provider by name
func (r *Registry) Get(name entities.OAuthProvider) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderNotFound, name)
	}
	return p, nil
}

// List returns all registered provider names, sorted
func (r *Registry) List() []entities.OAuthProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]entities.OAuthProvider, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

// All returns all registered providers
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	return providers
}
