package settingsstore

import (
	"fmt"
	"strconv"
	"time"

	"github.com/mrlokans/autobooks/internal/entities"
)

const (
	defaultBackupSchedule = "0 3 * * *"
	defaultBackupProvider = "gdrive"
)

// BackupProviders lists the accepted values of the provider setting.
var BackupProviders = []string{"gdrive", "dropbox", "nats"}

type BackupConfig struct {
	Enabled  bool   `json:"enabled"`
	Schedule string `json:"schedule"`
	Provider string `json:"provider"`
}

type BackupConfigInfo struct {
	Enabled             bool   `json:"enabled"`
	EnabledSource       string `json:"enabled_source"`
	Schedule            string `json:"schedule"`
	ScheduleSource      string `json:"schedule_source"`
	ScheduleDescription string `json:"schedule_description"`
	Provider            string `json:"provider"`
	ProviderSource      string `json:"provider_source"`
}

// BackupStatus is the outcome of the last upload or download.
type BackupStatus struct {
	LastAt  *time.Time `json:"last_at,omitempty"`
	Status  string     `json:"status,omitempty"` // "completed", "failed", "running", ""
	Message string     `json:"message,omitempty"`
}

func (s *SettingsStore) GetBackupEnabled() bool {
	value, _ := s.resolve(entities.SettingKeyBackupEnabled, "BACKUP_ENABLED", "false")
	return parseBool(value)
}

func (s *SettingsStore) GetBackupEnabledSource() string {
	_, source := s.resolve(entities.SettingKeyBackupEnabled, "BACKUP_ENABLED", "false")
	return source
}

func (s *SettingsStore) SetBackupEnabled(enabled bool) error {
	return s.repo.SetSetting(entities.SettingKeyBackupEnabled, strconv.FormatBool(enabled))
}

func (s *SettingsStore) GetBackupSchedule() string {
	value, _ := s.resolve(entities.SettingKeyBackupSchedule, "BACKUP_SCHEDULE", defaultBackupSchedule)
	return value
}

func (s *SettingsStore) GetBackupScheduleSource() string {
	_, source := s.resolve(entities.SettingKeyBackupSchedule, "BACKUP_SCHEDULE", defaultBackupSchedule)
	return source
}

func (s *SettingsStore) SetBackupSchedule(schedule string) error {
	if err := ValidateCronSchedule(schedule); err != nil {
		return fmt.Errorf("invalid cron schedule: %w", err)
	}
	return s.repo.SetSetting(entities.SettingKeyBackupSchedule, schedule)
}

func (s *SettingsStore) GetBackupProvider() string {
	value, _ := s.resolve(entities.SettingKeyBackupProvider, "BACKUP_PROVIDER", defaultBackupProvider)
	return value
}

func (s *SettingsStore) GetBackupProviderSource() string {
	_, source := s.resolve(entities.SettingKeyBackupProvider, "BACKUP_PROVIDER", defaultBackupProvider)
	return source
}

func (s *SettingsStore) SetBackupProvider(provider string) error {
	if err := ValidateBackupProvider(provider); err != nil {
		return err
	}
	return s.repo.SetSetting(entities.SettingKeyBackupProvider, provider)
}

func ValidateBackupProvider(provider string) error {
	for _, p := range BackupProviders {
		if p == provider {
			return nil
		}
	}
	return fmt.Errorf("unknown backup provider %q", provider)
}

func (s *SettingsStore) GetBackupConfig() BackupConfig {
	return BackupConfig{
		Enabled:  s.GetBackupEnabled(),
		Schedule: s.GetBackupSchedule(),
		Provider: s.GetBackupProvider(),
	}
}

func (s *SettingsStore) GetBackupConfigInfo() BackupConfigInfo {
	schedule := s.GetBackupSchedule()
	return BackupConfigInfo{
		Enabled:             s.GetBackupEnabled(),
		EnabledSource:       s.GetBackupEnabledSource(),
		Schedule:            schedule,
		ScheduleSource:      s.GetBackupScheduleSource(),
		ScheduleDescription: DescribeCronSchedule(schedule),
		Provider:            s.GetBackupProvider(),
		ProviderSource:      s.GetBackupProviderSource(),
	}
}

func (s *SettingsStore) GetBackupStatus() BackupStatus {
	status := BackupStatus{
		Status:  s.stored(entities.SettingKeyBackupLastStatus),
		Message: s.stored(entities.SettingKeyBackupLastMessage),
	}
	if value := s.stored(entities.SettingKeyBackupLastAt); value != "" {
		if ts, err := time.Parse(time.RFC3339, value); err == nil {
			status.LastAt = &ts
		}
	}
	return status
}

func (s *SettingsStore) SetBackupStatus(status, message string) error {
	return s.repo.SetSettings(map[string]string{
		entities.SettingKeyBackupLastAt:      time.Now().UTC().Format(time.RFC3339),
		entities.SettingKeyBackupLastStatus:  status,
		entities.SettingKeyBackupLastMessage: message,
	})
}

// ClearBackupSettings removes database overrides, reverting to env/default.
func (s *SettingsStore) ClearBackupSettings() error {
	return s.clear(
		entities.SettingKeyBackupEnabled,
		entities.SettingKeyBackupSchedule,
		entities.SettingKeyBackupProvider,
	)
}

// TokenKeySalt returns the stored key derivation salt, if any.
func (s *SettingsStore) TokenKeySalt() string {
	return s.stored(entities.SettingKeyTokenKeySalt)
}

func (s *SettingsStore) SetTokenKeySalt(salt string) error {
	return s.repo.SetSetting(entities.SettingKeyTokenKeySalt, salt)
}
