package oauth2

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/mrlokans/autobooks/internal/entities"
	"github.com/mrlokans/autobooks/internal/logging"
	"github.com/mrlokans/autobooks/internal/tokenstore"
)

// RefreshConfig contains configuration for the token refresh scheduler
type RefreshConfig struct {
	Enabled       bool          // Enable background refresh
	CheckInterval time.Duration // How often to check for expiring tokens (default: 30m)
	RefreshMargin time.Duration // Refresh tokens expiring within this duration (default: 15m)
}

// DefaultRefreshConfig returns sensible defaults for token refresh
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Enabled:       true,
		CheckInterval: 30 * time.Minute,
		RefreshMargin: 15 * time.Minute,
	}
}

// RefreshScheduler refreshes stored tokens of every registered provider
// before they expire, so scheduled backups find a valid token.
type RefreshScheduler struct {
	mu sync.Mutex

	tokenStore *tokenstore.TokenStore
	registry   *Registry
	config     RefreshConfig
	log        *logrus.Entry

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewRefreshScheduler creates a new token refresh scheduler
func NewRefreshScheduler(store *tokenstore.TokenStore, registry *Registry, config RefreshConfig) *RefreshScheduler {
	return &RefreshScheduler{
		tokenStore: store,
		registry:   registry,
		config:     config,
		log:        logging.Component("oauth2-refresh"),
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start runs the refresh loop until Stop is called or ctx is done. It blocks.
func (s *RefreshScheduler) Start(ctx context.Context) {
	defer close(s.doneCh)

	if !s.config.Enabled {
		s.log.Info("Token refresh scheduler disabled")
		return
	}

	s.log.WithFields(logrus.Fields{
		"interval": s.config.CheckInterval,
		"margin":   s.config.RefreshMargin,
	}).Info("Token refresh scheduler started")

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	s.RefreshExpiring(ctx)
	for {
		select {
		case <-ticker.C:
			s.RefreshExpiring(ctx)
		case <-s.stopCh:
			s.log.Info("Token refresh scheduler stopping")
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop stops the loop and waits for it to exit
func (s *RefreshScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

// RefreshExpiring refreshes every token expiring within the margin and
// returns how many were refreshed.
func (s *RefreshScheduler) RefreshExpiring(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	refreshed := 0
	for _, provider := range s.registry.All() {
		tokens, err := s.tokenStore.ListTokens(provider.Name())
		if err != nil {
			s.log.WithError(err).WithField("provider", provider.Name()).Error("Failed to list tokens")
			continue
		}
		for _, token := range tokens {
			if !token.IsExpiringSoon(s.config.RefreshMargin) {
				continue
			}
			if err := s.refresh(ctx, provider, token.AccountID); err != nil {
				s.log.WithError(err).WithFields(logrus.Fields{
					"provider": provider.Name(),
					"account":  token.AccountID,
				}).Warn("Failed to refresh token")
				continue
			}
			refreshed++
		}
	}
	return refreshed
}

// RefreshToken manually triggers a refresh for a specific token
func (s *RefreshScheduler) RefreshToken(ctx context.Context, providerName entities.OAuthProvider, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	provider, err := s.registry.Get(providerName)
	if err != nil {
		return err
	}
	return s.refresh(ctx, provider, accountID)
}

func (s *RefreshScheduler) refresh(ctx context.Context, provider Provider, accountID string) error {
	token, err := s.tokenStore.GetToken(provider.Name(), accountID)
	if err != nil {
		return err
	}
	if token == nil {
		return ErrTokenNotFound
	}
	if token.RefreshToken == "" {
		return ErrNoRefreshToken
	}

	resp, err := provider.RefreshToken(ctx, token.RefreshToken)
	if err != nil {
		return err
	}
	if err := s.tokenStore.UpdateTokenAfterRefresh(provider.Name(), accountID, resp.AccessToken, resp.RefreshToken, resp.ExpiresAt()); err != nil {
		return err
	}

	s.log.WithFields(logrus.Fields{
		"provider": provider.Name(),
		"account":  accountID,
	}).Info("Refreshed token")
	return nil
}
