// Package scheduler runs periodic cloud backups.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/mrlokans/autobooks/internal/logging"
	"github.com/mrlokans/autobooks/internal/settingsstore"
)

// BackupSettings provides the schedule configuration.
type BackupSettings interface {
	GetBackupConfig() settingsstore.BackupConfig
}

// BackupRunner performs one backup run. It either uploads directly or
// enqueues a task.
type BackupRunner func(ctx context.Context, trigger string) error

// BackupScheduler manages periodic uploads of the database
type BackupScheduler struct {
	settings BackupSettings
	run      BackupRunner
	log      *logrus.Entry

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
	jobs       sync.WaitGroup
}

// NewBackupScheduler creates a new scheduler instance
func NewBackupScheduler(settings BackupSettings, run BackupRunner) *BackupScheduler {
	return &BackupScheduler{
		settings: settings,
		run:      run,
		log:      logging.Component("backup-scheduler"),
	}
}

func newCron() *cron.Cron {
	return cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)))
}

// Start begins the scheduler if backups are enabled
func (s *BackupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	config := s.settings.GetBackupConfig()
	if !config.Enabled {
		s.log.Info("Backup scheduler disabled")
		return nil
	}

	if err := settingsstore.ValidateCronSchedule(config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", config.Schedule, err)
	}

	c := newCron()
	entryID, err := c.AddFunc(config.Schedule, func() {
		s.runBackup(context.Background(), "schedule")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule backup job: %w", err)
	}

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)
	s.cron = c
	s.entryID = entryID
	s.cron.Start()
	s.isRunning = true

	nextRun, _ := settingsstore.NextRunTime(config.Schedule)
	s.log.WithFields(logrus.Fields{
		"schedule":    config.Schedule,
		"description": settingsstore.DescribeCronSchedule(config.Schedule),
		"provider":    config.Provider,
		"next_run":    nextRun,
	}).Info("Backup scheduler started")

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop stops the scheduler and waits for a running backup to finish
func (s *BackupScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}

	done := s.cron.Stop()
	s.isRunning = false
	cancel := s.cancelFunc
	s.cancelFunc = nil
	s.mu.Unlock()

	<-done.Done()
	if cancel != nil {
		cancel()
	}
	s.log.Info("Backup scheduler stopped")
}

// Reschedule applies changed settings
func (s *BackupScheduler) Reschedule() error {
	s.Stop()
	return s.Start(context.Background())
}

// RunNow triggers an immediate backup in the background
func (s *BackupScheduler) RunNow() {
	s.jobs.Add(1)
	go func() {
		defer s.jobs.Done()
		s.runBackup(context.Background(), "manual")
	}()
}

// Wait blocks until backups started by RunNow have finished.
func (s *BackupScheduler) Wait() {
	s.jobs.Wait()
}

// IsRunning returns whether the scheduler is active
func (s *BackupScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns when the next backup will occur
func (s *BackupScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			if t.IsZero() {
				t = entry.Schedule.Next(time.Now())
			}
			return &t
		}
	}
	return nil
}

func (s *BackupScheduler) runBackup(ctx context.Context, trigger string) {
	config := s.settings.GetBackupConfig()
	if trigger == "schedule" && !config.Enabled {
		s.log.Info("Scheduled backup skipped, backups are disabled")
		return
	}

	s.log.WithFields(logrus.Fields{
		"trigger":  trigger,
		"provider": config.Provider,
	}).Info("Starting backup")

	if err := s.run(ctx, trigger); err != nil {
		s.log.WithError(err).WithField("trigger", trigger).Error("Backup run failed")
	}
}
