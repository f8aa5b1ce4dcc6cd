package settings

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/autobooks/internal/entities"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	dbPath := filepath.Join(t.TempDir(), "settings.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.Setting{}))

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}
	return NewRepository(db), cleanup
}

func TestRepository_SetSetting_CreateThenUpdate(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.SetSetting(entities.SettingKeyTTSLanguage, "en-GB"))
	require.NoError(t, repo.SetSetting(entities.SettingKeyTTSLanguage, "de-DE"))

	setting, err := repo.GetSetting(entities.SettingKeyTTSLanguage)
	require.NoError(t, err)
	assert.Equal(t, "de-DE", setting.Value)
}

func TestRepository_GetValue(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, ok, err := repo.GetValue(entities.SettingKeyTTSVoice)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.SetSetting(entities.SettingKeyTTSVoice, ""))
	value, ok, err := repo.GetValue(entities.SettingKeyTTSVoice)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, value)
}

func TestRepository_SetSettings(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.SetSettings(map[string]string{
		entities.SettingKeyBackupLastStatus:  "completed",
		entities.SettingKeyBackupLastMessage: "uploaded 12 KB",
	}))

	value, ok, err := repo.GetValue(entities.SettingKeyBackupLastStatus)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "completed", value)
}

func TestRepository_DeleteSetting(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, repo.SetSetting(entities.SettingKeyTTSSpeed, "1.5"))
	require.NoError(t, repo.DeleteSetting(entities.SettingKeyTTSSpeed))

	_, err := repo.GetSetting(entities.SettingKeyTTSSpeed)
	assert.Error(t, err)

	// Deleting a missing key is not an error
	assert.NoError(t, repo.DeleteSetting("nonexistent"))
}
