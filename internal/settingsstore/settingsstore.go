// Package settingsstore resolves runtime preferences.
//
// Priority: database > environment > default. Every getter has a matching
// *Source method reporting where the value came from.
package settingsstore

import (
	"os"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

const (
	SourceDatabase    = "database"
	SourceEnvironment = "environment"
	SourceDefault     = "default"
)

// Repository is the settings table.
type Repository interface {
	GetValue(key string) (string, bool, error)
	SetSetting(key, value string) error
	SetSettings(values map[string]string) error
	DeleteSetting(key string) error
}

type SettingsStore struct {
	repo Repository
}

func New(repo Repository) *SettingsStore {
	return &SettingsStore{repo: repo}
}

// resolve returns the effective value of a setting and its source.
// Empty database and environment values count as unset.
func (s *SettingsStore) resolve(key, envVar, fallback string) (string, string) {
	value, ok, err := s.repo.GetValue(key)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Failed to read setting")
	}
	if ok && value != "" {
		return value, SourceDatabase
	}
	if envVar != "" {
		if envVal := os.Getenv(envVar); envVal != "" {
			return envVal, SourceEnvironment
		}
	}
	return fallback, SourceDefault
}

func (s *SettingsStore) stored(key string) string {
	value, _, err := s.repo.GetValue(key)
	if err != nil {
		logrus.WithError(err).WithField("key", key).Warn("Failed to read setting")
	}
	return value
}

func (s *SettingsStore) clear(keys ...string) error {
	for _, key := range keys {
		if err := s.repo.DeleteSetting(key); err != nil {
			return err
		}
	}
	return nil
}

func parseBool(value string) bool {
	return value == "true" || value == "1"
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCronSchedule validates a five-field cron schedule.
func ValidateCronSchedule(schedule string) error {
	_, err := cronParser.Parse(schedule)
	return err
}

// DescribeCronSchedule returns a human-readable description of common schedules.
func DescribeCronSchedule(schedule string) string {
	switch schedule {
	case "0 * * * *":
		return "Every hour at :00"
	case "0 */6 * * *":
		return "Every 6 hours"
	case "0 0 * * *":
		return "Daily at midnight"
	case "0 3 * * *":
		return "Daily at 03:00"
	case "0 3 * * 0":
		return "Weekly on Sunday at 03:00"
	default:
		return "Custom schedule: " + schedule
	}
}

// NextRunTime calculates the next activation of a schedule after now.
func NextRunTime(schedule string) (*time.Time, error) {
	sched, err := cronParser.Parse(schedule)
	if err != nil {
		return nil, err
	}
	next := sched.Next(time.Now())
	return &next, nil
}
