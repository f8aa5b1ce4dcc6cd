package settingsstore

import (
	"fmt"
	"strconv"

	"github.com/mrlokans/autobooks/internal/config"
	"github.com/mrlokans/autobooks/internal/entities"
)

const (
	MinTTSSpeed     = 0.25
	MaxTTSSpeed     = 4.0
	defaultTTSSpeed = 1.0
)

// TTSPreferences are the synthesis options applied to every generated line.
type TTSPreferences struct {
	Language string  `json:"language"`
	Voice    string  `json:"voice"`
	Speed    float64 `json:"speed"`
}

type TTSPreferencesInfo struct {
	Language       string  `json:"language"`
	LanguageSource string  `json:"language_source"`
	Voice          string  `json:"voice"`
	VoiceSource    string  `json:"voice_source"`
	Speed          float64 `json:"speed"`
	SpeedSource    string  `json:"speed_source"`
}

func (s *SettingsStore) GetTTSLanguage() string {
	value, _ := s.resolve(entities.SettingKeyTTSLanguage, "TTS_LANGUAGE", config.DefaultTTSLanguage)
	return value
}

func (s *SettingsStore) GetTTSLanguageSource() string {
	_, source := s.resolve(entities.SettingKeyTTSLanguage, "TTS_LANGUAGE", config.DefaultTTSLanguage)
	return source
}

func (s *SettingsStore) SetTTSLanguage(language string) error {
	return s.repo.SetSetting(entities.SettingKeyTTSLanguage, language)
}

// GetTTSVoice returns the voice name; empty means the engine default.
func (s *SettingsStore) GetTTSVoice() string {
	value, _ := s.resolve(entities.SettingKeyTTSVoice, "TTS_VOICE", "")
	return value
}

func (s *SettingsStore) GetTTSVoiceSource() string {
	_, source := s.resolve(entities.SettingKeyTTSVoice, "TTS_VOICE", "")
	return source
}

func (s *SettingsStore) SetTTSVoice(voice string) error {
	return s.repo.SetSetting(entities.SettingKeyTTSVoice, voice)
}

// GetTTSSpeed returns the speaking rate. Unparseable values fall back to 1.0.
func (s *SettingsStore) GetTTSSpeed() float64 {
	value, _ := s.resolve(entities.SettingKeyTTSSpeed, "TTS_SPEED", "")
	speed, err := strconv.ParseFloat(value, 64)
	if err != nil || speed < MinTTSSpeed || speed > MaxTTSSpeed {
		return defaultTTSSpeed
	}
	return speed
}

func (s *SettingsStore) GetTTSSpeedSource() string {
	_, source := s.resolve(entities.SettingKeyTTSSpeed, "TTS_SPEED", "")
	return source
}

func (s *SettingsStore) SetTTSSpeed(speed float64) error {
	if err := ValidateTTSSpeed(speed); err != nil {
		return err
	}
	return s.repo.SetSetting(entities.SettingKeyTTSSpeed, strconv.FormatFloat(speed, 'f', -1, 64))
}

func ValidateTTSSpeed(speed float64) error {
	if speed < MinTTSSpeed || speed > MaxTTSSpeed {
		return fmt.Errorf("speed must be between %.2f and %.2f", MinTTSSpeed, MaxTTSSpeed)
	}
	return nil
}

func (s *SettingsStore) GetTTSPreferences() TTSPreferences {
	return TTSPreferences{
		Language: s.GetTTSLanguage(),
		Voice:    s.GetTTSVoice(),
		Speed:    s.GetTTSSpeed(),
	}
}

func (s *SettingsStore) GetTTSPreferencesInfo() TTSPreferencesInfo {
	return TTSPreferencesInfo{
		Language:       s.GetTTSLanguage(),
		LanguageSource: s.GetTTSLanguageSource(),
		Voice:          s.GetTTSVoice(),
		VoiceSource:    s.GetTTSVoiceSource(),
		Speed:          s.GetTTSSpeed(),
		SpeedSource:    s.GetTTSSpeedSource(),
	}
}

// SetTTSPreferences stores all three preferences at once.
func (s *SettingsStore) SetTTSPreferences(prefs TTSPreferences) error {
	if err := ValidateTTSSpeed(prefs.Speed); err != nil {
		return err
	}
	return s.repo.SetSettings(map[string]string{
		entities.SettingKeyTTSLanguage: prefs.Language,
		entities.SettingKeyTTSVoice:    prefs.Voice,
		entities.SettingKeyTTSSpeed:    strconv.FormatFloat(prefs.Speed, 'f', -1, 64),
	})
}

// ClearTTSSettings removes database overrides, reverting to env/default.
func (s *SettingsStore) ClearTTSSettings() error {
	return s.clear(
		entities.SettingKeyTTSLanguage,
		entities.SettingKeyTTSVoice,
		entities.SettingKeyTTSSpeed,
	)
}
