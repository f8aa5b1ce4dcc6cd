package entities

import (
	"time"
)

type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Known setting keys
const (
	// Speech synthesis preferences
	SettingKeyTTSLanguage = "tts_selected_language"
	SettingKeyTTSVoice    = "tts_selected_voice"
	SettingKeyTTSSpeed    = "tts_speed"

	// Cloud backup
	SettingKeyBackupEnabled     = "backup_enabled"
	SettingKeyBackupSchedule    = "backup_schedule"
	SettingKeyBackupProvider    = "backup_provider"
	SettingKeyBackupLastAt      = "backup_last_at"
	SettingKeyBackupLastStatus  = "backup_last_status"
	SettingKeyBackupLastMessage = "backup_last_message"

	// Token store key derivation salt (base64)
	SettingKeyTokenKeySalt = "token_key_salt"
)
