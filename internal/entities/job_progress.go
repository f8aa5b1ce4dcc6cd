package entities

import (
	"fmt"
	"time"
)

type JobType string

const (
	JobTypeChapterAudio JobType = "chapter_audio"
	JobTypeBackup       JobType = "backup"
	JobTypeRestore      JobType = "restore"
)

type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// JobProgress tracks a long running job. There is at most one row per (type, key).
type JobProgress struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	JobType     JobType    `gorm:"size:50;uniqueIndex:idx_job_type_key" json:"job_type"`
	JobKey      string     `gorm:"size:128;uniqueIndex:idx_job_type_key" json:"job_key"`
	Status      JobStatus  `gorm:"size:20" json:"status"`
	Total       int        `json:"total"`
	Processed   int        `json:"processed"`
	CurrentItem string     `gorm:"size:512" json:"current_item,omitempty"`
	Error       string     `gorm:"type:text" json:"error,omitempty"`
	StartedAt   time.Time  `json:"started_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

func (JobProgress) TableName() string {
	return "job_progress"
}

// Percent returns processed/total as 0..100.
func (p JobProgress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return p.Processed * 100 / p.Total
}

// ChapterJobKey identifies the audio job for a chapter.
func ChapterJobKey(bookID uint, chapter int) string {
	return fmt.Sprintf("book:%d:chapter:%d", bookID, chapter)
}

// ParseChapterJobKey reverses ChapterJobKey.
func ParseChapterJobKey(key string) (uint, int, bool) {
	var bookID uint
	var chapter int
	if n, err := fmt.Sscanf(key, "book:%d:chapter:%d", &bookID, &chapter); err != nil || n != 2 {
		return 0, 0, false
	}
	return bookID, chapter, true
}
