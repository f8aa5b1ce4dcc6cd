// Package jobs provides database operations for long running job progress.
//
// One row exists per (job type, job key). Starting a job resets the row.
//
// # Usage
//
//	repo := jobs.NewRepository(db)
//	err := repo.Start(entities.JobTypeChapterAudio, entities.ChapterJobKey(1, 2), 40)
package jobs

import (
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/mrlokans/autobooks/internal/entities"
)

// StaleAfter is how long a running job may go without updates before it is
// considered interrupted.
const StaleAfter = 10 * time.Minute

// Repository handles all job progress database operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new jobs repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Get retrieves the progress of a job.
func (r *Repository) Get(jobType entities.JobType, key string) (*entities.JobProgress, error) {
	var progress entities.JobProgress
	err := r.db.Where("job_type = ? AND job_key = ?", jobType, key).First(&progress).Error
	if err != nil {
		return nil, err
	}
	return &progress, nil
}

// Start creates or resets a job progress record.
func (r *Repository) Start(jobType entities.JobType, key string, total int) error {
	var progress entities.JobProgress
	result := r.db.Where("job_type = ? AND job_key = ?", jobType, key).First(&progress)

	now := time.Now()
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		progress = entities.JobProgress{
			JobType:   jobType,
			JobKey:    key,
			Status:    entities.JobStatusRunning,
			Total:     total,
			StartedAt: now,
			UpdatedAt: now,
		}
		return r.db.Create(&progress).Error
	} else if result.Error != nil {
		return result.Error
	}

	progress.Status = entities.JobStatusRunning
	progress.Total = total
	progress.Processed = 0
	progress.CurrentItem = ""
	progress.Error = ""
	progress.StartedAt = now
	progress.UpdatedAt = now
	progress.CompletedAt = nil

	return r.db.Save(&progress).Error
}

// Update records the progress of a running job.
func (r *Repository) Update(jobType entities.JobType, key string, processed int, currentItem string) error {
	return r.db.Model(&entities.JobProgress{}).
		Where("job_type = ? AND job_key = ?", jobType, key).
		Updates(map[string]any{
			"processed":    processed,
			"current_item": currentItem,
			"updated_at":   time.Now(),
		}).Error
}

// Complete marks a job as completed or failed.
func (r *Repository) Complete(jobType entities.JobType, key string, succeeded bool, errorMsg string) error {
	now := time.Now()
	status := entities.JobStatusCompleted
	if !succeeded {
		status = entities.JobStatusFailed
	}

	updates := map[string]any{
		"status":       status,
		"current_item": "",
		"updated_at":   now,
		"completed_at": now,
	}
	if errorMsg != "" {
		updates["error"] = errorMsg
	}
	return r.db.Model(&entities.JobProgress{}).
		Where("job_type = ? AND job_key = ?", jobType, key).
		Updates(updates).Error
}

// IsRunning checks if a job is in progress. A running job that has not been
// updated within StaleAfter is marked failed and reported as not running.
func (r *Repository) IsRunning(jobType entities.JobType, key string) (bool, error) {
	var progress entities.JobProgress
	err := r.db.Where("job_type = ? AND job_key = ? AND status = ?", jobType, key, entities.JobStatusRunning).
		First(&progress).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if progress.UpdatedAt.Before(time.Now().Add(-StaleAfter)) {
		_ = r.Complete(jobType, key, false, "job was interrupted")
		return false, nil
	}
	return true, nil
}

// ListRunning returns all running jobs of a type.
func (r *Repository) ListRunning(jobType entities.JobType) ([]entities.JobProgress, error) {
	var jobs []entities.JobProgress
	err := r.db.Where("job_type = ? AND status = ?", jobType, entities.JobStatusRunning).
		Order("started_at ASC").
		Find(&jobs).Error
	return jobs, err
}
