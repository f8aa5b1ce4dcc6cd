// Package tokenstore keeps OAuth tokens in the main database, encrypted with
// XChaCha20-Poly1305.
package tokenstore

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/mrlokans/autobooks/internal/crypto"
	"github.com/mrlokans/autobooks/internal/entities"
)

const (
	// EnvEncryptionKey is the environment variable for a base64 encryption key
	EnvEncryptionKey = "TOKEN_ENCRYPTION_KEY"

	// EnvEncryptionPassphrase is the environment variable for a passphrase
	// the key is derived from
	EnvEncryptionPassphrase = "TOKEN_ENCRYPTION_PASSPHRASE"

	// DefaultKeyFileName is the default name for the key file
	DefaultKeyFileName = ".autobooks-token-key"
)

// SaltStore persists the per-install salt for passphrase derived keys.
type SaltStore interface {
	TokenKeySalt() string
	SetTokenKeySalt(salt string) error
}

// TokenStore provides secure storage for OAuth tokens
type TokenStore struct {
	db        *gorm.DB
	encryptor *crypto.Encryptor
}

// Config holds configuration for the token store
type Config struct {
	// EncryptionKey is the base64-encoded 32-byte encryption key
	EncryptionKey string

	// Passphrase derives the key with argon2id when no key is given
	Passphrase string

	// Salts stores the derivation salt; required for passphrase keys
	Salts SaltStore

	// KeyFilePath is the path to the encryption key file
	// If empty, defaults to ~/.autobooks-token-key
	KeyFilePath string
}

// New creates a TokenStore on an open database. The oauth_tokens table is
// migrated by the database package.
func New(db *gorm.DB, cfg Config) (*TokenStore, error) {
	encryptor, err := resolveEncryptor(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve encryption key: %w", err)
	}
	return &TokenStore{db: db, encryptor: encryptor}, nil
}

// resolveEncryptor picks the key from, in order: the explicit key,
// TOKEN_ENCRYPTION_KEY, a passphrase, then the key file (created if missing).
func resolveEncryptor(cfg Config) (*crypto.Encryptor, error) {
	if cfg.EncryptionKey != "" {
		return crypto.NewEncryptorFromBase64(cfg.EncryptionKey)
	}
	if envKey := os.Getenv(EnvEncryptionKey); envKey != "" {
		return crypto.NewEncryptorFromBase64(envKey)
	}

	passphrase := cfg.Passphrase
	if passphrase == "" {
		passphrase = os.Getenv(EnvEncryptionPassphrase)
	}
	if passphrase != "" {
		if cfg.Salts == nil {
			return nil, errors.New("passphrase key requires a salt store")
		}
		salt, err := loadOrCreateSalt(cfg.Salts)
		if err != nil {
			return nil, err
		}
		return crypto.NewEncryptorFromPassphrase(passphrase, salt)
	}

	key, err := loadOrCreateKeyFile(GetKeyFilePath(cfg.KeyFilePath))
	if err != nil {
		return nil, err
	}
	return crypto.NewEncryptorFromBase64(key)
}

func loadOrCreateSalt(store SaltStore) ([]byte, error) {
	if encoded := store.TokenKeySalt(); encoded != "" {
		salt, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, fmt.Errorf("stored token key salt is invalid: %w", err)
		}
		return salt, nil
	}

	salt, err := crypto.GenerateSalt()
	if err != nil {
		return nil, err
	}
	if err := store.SetTokenKeySalt(base64.StdEncoding.EncodeToString(salt)); err != nil {
		return nil, fmt.Errorf("failed to store token key salt: %w", err)
	}
	return salt, nil
}

func loadOrCreateKeyFile(keyFilePath string) (string, error) {
	if data, err := os.ReadFile(keyFilePath); err == nil {
		return strings.TrimSpace(string(data)), nil
	}

	newKey, err := crypto.GenerateKey()
	if err != nil {
		return "", fmt.Errorf("failed to generate encryption key: %w", err)
	}
	if err := os.WriteFile(keyFilePath, []byte(newKey), 0600); err != nil {
		return "", fmt.Errorf("failed to save encryption key to %s: %w", keyFilePath, err)
	}

	logrus.WithField("path", keyFilePath).Info("Generated new token encryption key")
	return newKey, nil
}

// SaveToken saves an OAuth token with encryption
func (s *TokenStore) SaveToken(token *entities.DecryptedToken) error {
	encAccessToken, err := s.encryptor.Encrypt(token.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	encRefreshToken, err := s.encryptor.Encrypt(token.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	dbToken := &entities.OAuthToken{
		Provider:     token.Provider,
		AccountID:    token.AccountID,
		AccessToken:  encAccessToken,
		RefreshToken: encRefreshToken,
		TokenType:    token.TokenType,
		ExpiresAt:    token.ExpiresAt,
		Scope:        token.Scope,
	}

	result := s.db.Where("provider = ? AND account_id = ?", token.Provider, token.AccountID).
		Assign(map[string]any{
			"access_token":  encAccessToken,
			"refresh_token": encRefreshToken,
			"token_type":    token.TokenType,
			"expires_at":    token.ExpiresAt,
			"scope":         token.Scope,
			"updated_at":    time.Now(),
		}).
		FirstOrCreate(dbToken)
	if result.Error != nil {
		return fmt.Errorf("failed to save token: %w", result.Error)
	}
	return nil
}

// GetToken retrieves and decrypts an OAuth token. A missing token is (nil, nil).
func (s *TokenStore) GetToken(provider entities.OAuthProvider, accountID string) (*entities.DecryptedToken, error) {
	var dbToken entities.OAuthToken
	err := s.db.Where("provider = ? AND account_id = ?", provider, accountID).First(&dbToken).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return s.decryptToken(&dbToken)
}

// GetTokenByProvider retrieves the most recently updated token for a provider.
func (s *TokenStore) GetTokenByProvider(provider entities.OAuthProvider) (*entities.DecryptedToken, error) {
	var dbToken entities.OAuthToken
	err := s.db.Where("provider = ?", provider).Order("updated_at DESC").First(&dbToken).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return s.decryptToken(&dbToken)
}

// ListTokens returns all tokens for a provider without decrypting them
func (s *TokenStore) ListTokens(provider entities.OAuthProvider) ([]entities.OAuthToken, error) {
	var tokens []entities.OAuthToken
	if err := s.db.Where("provider = ?", provider).Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	return tokens, nil
}

// DeleteToken removes a token from storage
func (s *TokenStore) DeleteToken(provider entities.OAuthProvider, accountID string) error {
	err := s.db.Where("provider = ? AND account_id = ?", provider, accountID).
		Delete(&entities.OAuthToken{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// DeleteProvider removes every token of a provider and returns how many were removed.
func (s *TokenStore) DeleteProvider(provider entities.OAuthProvider) (int64, error) {
	result := s.db.Where("provider = ?", provider).Delete(&entities.OAuthToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// UpdateLastUsed updates the last_used_at timestamp for a token
func (s *TokenStore) UpdateLastUsed(provider entities.OAuthProvider, accountID string) error {
	err := s.db.Model(&entities.OAuthToken{}).
		Where("provider = ? AND account_id = ?", provider, accountID).
		Update("last_used_at", time.Now()).Error
	if err != nil {
		return fmt.Errorf("failed to update last used: %w", err)
	}
	return nil
}

// UpdateTokenAfterRefresh stores a refreshed access token. The refresh token
// is only replaced when a new one is given.
func (s *TokenStore) UpdateTokenAfterRefresh(provider entities.OAuthProvider, accountID, newAccessToken, newRefreshToken string, expiresAt *time.Time) error {
	encAccessToken, err := s.encryptor.Encrypt(newAccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	updates := map[string]any{
		"access_token":      encAccessToken,
		"expires_at":        expiresAt,
		"last_refreshed_at": time.Now(),
	}
	if newRefreshToken != "" {
		encRefreshToken, err := s.encryptor.Encrypt(newRefreshToken)
		if err != nil {
			return fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
		updates["refresh_token"] = encRefreshToken
	}

	err = s.db.Model(&entities.OAuthToken{}).
		Where("provider = ? AND account_id = ?", provider, accountID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to update token: %w", err)
	}
	return nil
}

func (s *TokenStore) decryptToken(dbToken *entities.OAuthToken) (*entities.DecryptedToken, error) {
	accessToken, err := s.encryptor.Decrypt(dbToken.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}

	refreshToken, err := s.encryptor.Decrypt(dbToken.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	return &entities.DecryptedToken{
		Provider:     dbToken.Provider,
		AccountID:    dbToken.AccountID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    dbToken.TokenType,
		ExpiresAt:    dbToken.ExpiresAt,
		Scope:        dbToken.Scope,
	}, nil
}

// GetKeyFilePath returns the path to the key file being used
func GetKeyFilePath(customPath string) string {
	if customPath != "" {
		return customPath
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return DefaultKeyFileName
	}
	return filepath.Join(homeDir, DefaultKeyFileName)
}
