package tasks

import (
	"sync"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/autobooks/internal/config"
)

// Config holds configuration for the task queue system.
type Config struct {
	// Workers is the number of concurrent task workers. Default: 2
	Workers int

	// MaxRetries is the number of retries of a failed audio generation. Default: 1
	MaxRetries int

	// RetryDelay is the default backoff duration between retries. Default: 1m
	RetryDelay time.Duration

	// TaskTimeout bounds one chapter generation or backup. Default: 30m
	TaskTimeout time.Duration

	// ReleaseAfter is when stuck tasks are released back to queue. Default: 45m
	ReleaseAfter time.Duration

	// CleanupInterval is how often to clean up completed tasks. Default: 1h
	CleanupInterval time.Duration

	// RetentionDuration is how long to keep completed tasks. Default: 24h
	RetentionDuration time.Duration
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Workers:           2,
		MaxRetries:        1,
		RetryDelay:        1 * time.Minute,
		TaskTimeout:       30 * time.Minute,
		ReleaseAfter:      45 * time.Minute,
		CleanupInterval:   1 * time.Hour,
		RetentionDuration: 24 * time.Hour,
	}
}

// FromConfig builds the queue configuration from application settings,
// keeping defaults for unset values.
func FromConfig(cfg config.Tasks) Config {
	c := DefaultConfig()
	if cfg.Workers > 0 {
		c.Workers = cfg.Workers
	}
	if cfg.MaxRetries >= 0 {
		c.MaxRetries = cfg.MaxRetries
	}
	if cfg.RetryDelay > 0 {
		c.RetryDelay = cfg.RetryDelay
	}
	if cfg.TaskTimeout > 0 {
		c.TaskTimeout = cfg.TaskTimeout
	}
	if cfg.ReleaseAfter > 0 {
		c.ReleaseAfter = cfg.ReleaseAfter
	}
	if cfg.CleanupInterval > 0 {
		c.CleanupInterval = cfg.CleanupInterval
	}
	if cfg.RetentionDuration > 0 {
		c.RetentionDuration = cfg.RetentionDuration
	}
	return c
}

var (
	queueMu       sync.RWMutex
	queueDefaults = DefaultConfig()
)

// setQueueDefaults sets the retry, timeout and retention values read by the
// task Config methods. backlite reads them once when a queue is created.
func setQueueDefaults(cfg Config) {
	queueMu.Lock()
	defer queueMu.Unlock()
	queueDefaults = cfg
}

func currentQueueDefaults() Config {
	queueMu.RLock()
	defer queueMu.RUnlock()
	return queueDefaults
}

func queueConfig(name string, attempts int, timeout time.Duration) backlite.QueueConfig {
	cfg := currentQueueDefaults()
	if timeout == 0 {
		timeout = cfg.TaskTimeout
	}
	return backlite.QueueConfig{
		Name:        name,
		MaxAttempts: attempts,
		Backoff:     cfg.RetryDelay,
		Timeout:     timeout,
		Retention: &backlite.Retention{
			Duration:   cfg.RetentionDuration,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}
