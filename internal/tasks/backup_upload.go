package tasks

import (
	"context"
	"fmt"

	"github.com/mikestefanello/backlite"
	"github.com/sirupsen/logrus"

	"github.com/mrlokans/autobooks/internal/backup"
	"github.com/mrlokans/autobooks/internal/storage"
)

// BackupUploadTask uploads the library database to the configured provider.
type BackupUploadTask struct {
	// Trigger records what started the run, e.g. "api" or "schedule".
	Trigger string `json:"trigger,omitempty"`
}

// Config returns the queue configuration for backup tasks.
func (t BackupUploadTask) Config() backlite.QueueConfig {
	return queueConfig("backup_upload", 1, 0)
}

// Uploader uploads the database.
type Uploader interface {
	Upload(ctx context.Context, progress storage.ProgressFunc) (*backup.Result, error)
}

// BackupUploadProcessor creates a processor function for BackupUploadTask.
func BackupUploadProcessor(uploader Uploader) backlite.QueueProcessor[BackupUploadTask] {
	return func(ctx context.Context, task BackupUploadTask) error {
		if uploader == nil {
			return fmt.Errorf("backup not configured")
		}
		result, err := uploader.Upload(ctx, nil)
		if err != nil {
			return fmt.Errorf("backup upload: %w", err)
		}
		logrus.WithFields(logrus.Fields{
			"trigger":  task.Trigger,
			"provider": result.Provider,
			"size":     result.Size,
		}).Info("Backup task finished")
		return nil
	}
}

// NewBackupUploadQueue creates a backlite queue for backup tasks.
func NewBackupUploadQueue(uploader Uploader) backlite.Queue {
	return backlite.NewQueue(BackupUploadProcessor(uploader))
}
