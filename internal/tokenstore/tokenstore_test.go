package tokenstore

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/autobooks/internal/crypto"
	"github.com/mrlokans/autobooks/internal/database"
	"github.com/mrlokans/autobooks/internal/database/settings"
	"github.com/mrlokans/autobooks/internal/entities"
	"github.com/mrlokans/autobooks/internal/settingsstore"
)

func setupTestDB(t *testing.T) *database.Database {
	t.Helper()
	t.Setenv(EnvEncryptionKey, "")
	t.Setenv(EnvEncryptionPassphrase, "")

	db, err := database.NewQuietDatabase(filepath.Join(t.TempDir(), "tokens.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func setupTestStore(t *testing.T) *TokenStore {
	t.Helper()
	db := setupTestDB(t)
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	store, err := New(db.DB, Config{EncryptionKey: key})
	require.NoError(t, err)
	return store
}

func dropboxToken(account, access string) *entities.DecryptedToken {
	return &entities.DecryptedToken{
		Provider:     entities.OAuthProviderDropbox,
		AccountID:    account,
		AccessToken:  access,
		RefreshToken: "refresh-" + access,
		TokenType:    "Bearer",
	}
}

func TestNew_KeySources(t *testing.T) {
	t.Run("invalid explicit key", func(t *testing.T) {
		db := setupTestDB(t)
		_, err := New(db.DB, Config{EncryptionKey: "invalid-key"})
		assert.Error(t, err)
	})

	t.Run("environment key", func(t *testing.T) {
		db := setupTestDB(t)
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		t.Setenv(EnvEncryptionKey, key)

		store, err := New(db.DB, Config{KeyFilePath: filepath.Join(t.TempDir(), "unused")})
		require.NoError(t, err)
		require.NoError(t, store.SaveToken(dropboxToken("env", "a")))
	})

	t.Run("generates key file if missing", func(t *testing.T) {
		db := setupTestDB(t)
		keyPath := filepath.Join(t.TempDir(), "new-key")

		_, err := New(db.DB, Config{KeyFilePath: keyPath})
		require.NoError(t, err)

		info, err := os.Stat(keyPath)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		// The same file is reused.
		first, err := os.ReadFile(keyPath)
		require.NoError(t, err)
		_, err = New(db.DB, Config{KeyFilePath: keyPath})
		require.NoError(t, err)
		second, err := os.ReadFile(keyPath)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("passphrase without salt store", func(t *testing.T) {
		db := setupTestDB(t)
		_, err := New(db.DB, Config{Passphrase: "hunter2"})
		assert.Error(t, err)
	})
}

func TestNew_PassphraseSaltPersists(t *testing.T) {
	db := setupTestDB(t)
	salts := settingsstore.New(settings.NewRepository(db.DB))

	store, err := New(db.DB, Config{Passphrase: "hunter2", Salts: salts})
	require.NoError(t, err)
	require.NotEmpty(t, salts.TokenKeySalt())
	require.NoError(t, store.SaveToken(dropboxToken("pass@example.com", "secret")))

	reopened, err := New(db.DB, Config{Passphrase: "hunter2", Salts: salts})
	require.NoError(t, err)
	token, err := reopened.GetToken(entities.OAuthProviderDropbox, "pass@example.com")
	require.NoError(t, err)
	assert.Equal(t, "secret", token.AccessToken)

	wrong, err := New(db.DB, Config{Passphrase: "hunter3", Salts: salts})
	require.NoError(t, err)
	_, err = wrong.GetToken(entities.OAuthProviderDropbox, "pass@example.com")
	assert.ErrorContains(t, err, "decrypt")
}

func TestSaveAndGetToken(t *testing.T) {
	store := setupTestStore(t)

	expiresAt := time.Now().Add(4 * time.Hour)
	token := &entities.DecryptedToken{
		Provider:     entities.OAuthProviderGoogle,
		AccountID:    "reader@example.com",
		AccessToken:  "ya29.access",
		RefreshToken: "1//refresh",
		TokenType:    "Bearer",
		ExpiresAt:    &expiresAt,
		Scope:        "https://www.googleapis.com/auth/drive.appdata",
	}
	require.NoError(t, store.SaveToken(token))

	retrieved, err := store.GetToken(entities.OAuthProviderGoogle, "reader@example.com")
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, token.AccessToken, retrieved.AccessToken)
	assert.Equal(t, token.RefreshToken, retrieved.RefreshToken)
	assert.Equal(t, token.Scope, retrieved.Scope)

	missing, err := store.GetToken(entities.OAuthProviderGoogle, "nobody@example.com")
	require.NoError(t, err)
	assert.Nil(t, missing)

	token.AccessToken = "ya29.updated"
	require.NoError(t, store.SaveToken(token))
	retrieved, err = store.GetToken(entities.OAuthProviderGoogle, "reader@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ya29.updated", retrieved.AccessToken)

	tokens, err := store.ListTokens(entities.OAuthProviderGoogle)
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
}

func TestGetTokenByProvider(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.SaveToken(dropboxToken("user1", "access-1")))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, store.SaveToken(dropboxToken("user2", "access-2")))

	retrieved, err := store.GetTokenByProvider(entities.OAuthProviderDropbox)
	require.NoError(t, err)
	require.NotNil(t, retrieved)
	assert.Equal(t, "user2", retrieved.AccountID)

	none, err := store.GetTokenByProvider(entities.OAuthProviderGoogle)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestDeleteTokens(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.SaveToken(dropboxToken("a", "1")))
	require.NoError(t, store.SaveToken(dropboxToken("b", "2")))

	require.NoError(t, store.DeleteToken(entities.OAuthProviderDropbox, "a"))
	gone, err := store.GetToken(entities.OAuthProviderDropbox, "a")
	require.NoError(t, err)
	assert.Nil(t, gone)

	removed, err := store.DeleteProvider(entities.OAuthProviderDropbox)
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)
}

func TestUpdateTokenAfterRefresh(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.SaveToken(dropboxToken("refresh", "old")))

	newExpiry := time.Now().Add(4 * time.Hour)
	require.NoError(t, store.UpdateTokenAfterRefresh(entities.OAuthProviderDropbox, "refresh", "new", "", &newExpiry))

	retrieved, err := store.GetToken(entities.OAuthProviderDropbox, "refresh")
	require.NoError(t, err)
	assert.Equal(t, "new", retrieved.AccessToken)
	assert.Equal(t, "refresh-old", retrieved.RefreshToken)
	require.NotNil(t, retrieved.ExpiresAt)

	require.NoError(t, store.UpdateLastUsed(entities.OAuthProviderDropbox, "refresh"))
}

func TestTokensAreEncryptedAtRest(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.SaveToken(dropboxToken("encrypt", "my-secret-access-token")))

	var raw entities.OAuthToken
	require.NoError(t, store.db.Where("account_id = ?", "encrypt").First(&raw).Error)
	assert.NotEqual(t, "my-secret-access-token", raw.AccessToken)
	assert.NotEqual(t, "refresh-my-secret-access-token", raw.RefreshToken)
}
