package oauth2

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/autobooks/internal/entities"
)

func TestRefreshScheduler_RefreshExpiring(t *testing.T) {
	store := setupTokenStore(t)
	provider := &fakeProvider{}
	registry := NewRegistry()
	registry.Register(provider)

	saveToken(t, store, time.Now().Add(5*time.Minute), "r")
	scheduler := NewRefreshScheduler(store, registry, DefaultRefreshConfig())

	assert.Equal(t, 1, scheduler.RefreshExpiring(context.Background()))
	saved, err := store.GetToken(entities.OAuthProviderDropbox, "acct")
	require.NoError(t, err)
	assert.Equal(t, "refreshed", saved.AccessToken)

	// Now valid for an hour, outside the margin.
	assert.Equal(t, 0, scheduler.RefreshExpiring(context.Background()))
}

func TestRefreshScheduler_FailureIsSkipped(t *testing.T) {
	store := setupTokenStore(t)
	provider := &fakeProvider{refreshErr: errors.New("invalid_grant")}
	registry := NewRegistry()
	registry.Register(provider)

	saveToken(t, store, time.Now().Add(time.Minute), "r")
	scheduler := NewRefreshScheduler(store, registry, DefaultRefreshConfig())

	assert.Equal(t, 0, scheduler.RefreshExpiring(context.Background()))
	err := scheduler.RefreshToken(context.Background(), entities.OAuthProviderDropbox, "acct")
	assert.ErrorContains(t, err, "invalid_grant")

	err = scheduler.RefreshToken(context.Background(), entities.OAuthProviderGoogle, "acct")
	assert.ErrorIs(t, err, ErrProviderNotFound)
}

func TestRefreshScheduler_StartStop(t *testing.T) {
	store := setupTokenStore(t)
	scheduler := NewRefreshScheduler(store, NewRegistry(), RefreshConfig{
		Enabled:       true,
		CheckInterval: time.Hour,
		RefreshMargin: time.Minute,
	})

	go scheduler.Start(context.Background())
	scheduler.Stop()
	scheduler.Stop()
}
