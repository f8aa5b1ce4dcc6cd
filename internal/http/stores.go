package http

import (
	"context"
	"io"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/autobooks/internal/backup"
	"github.com/mrlokans/autobooks/internal/database/books"
	"github.com/mrlokans/autobooks/internal/entities"
	"github.com/mrlokans/autobooks/internal/generator"
	"github.com/mrlokans/autobooks/internal/importers"
	"github.com/mrlokans/autobooks/internal/settingsstore"
	"github.com/mrlokans/autobooks/internal/storage"
)

// This file consolidates the store interfaces used by HTTP controllers.
// Each is satisfied by a repository under internal/database or a service.

// BookStore provides access to the library.
type BookStore interface {
	List(filter books.Filter) ([]entities.Book, error)
	Get(id uint) (*entities.Book, error)
	SetFavourite(id uint, favourite bool) error
	Delete(id uint) error
	GetCover(id uint) ([]byte, string, error)
	Stats() (*books.Stats, error)
}

// ChapterStore provides access to chapters.
type ChapterStore interface {
	ListByBook(bookID uint) ([]entities.Chapter, error)
	Get(bookID uint, number int) (*entities.Chapter, error)
	MarkRead(bookID uint, number int) (bool, error)
	SetFavourite(bookID uint, number int, favourite bool) error
	ListFavourites() ([]entities.Chapter, error)
}

// LineAudioStore reads stored line audio.
type LineAudioStore interface {
	GetLine(bookID uint, number, index int) (*entities.LineAudio, error)
	DeleteChapter(bookID uint, number int) error
	CountLines(bookID uint, number int) (int64, error)
	TotalDuration(bookID uint, number int) (int64, error)
}

// JobStore reads generation progress.
type JobStore interface {
	Get(jobType entities.JobType, key string) (*entities.JobProgress, error)
	IsRunning(jobType entities.JobType, key string) (bool, error)
}

// AudioGenerator runs the line by line audio pipeline.
type AudioGenerator interface {
	GenerateChapter(ctx context.Context, bookID uint, number int, reporter generator.ProgressReporter) (*generator.Result, error)
	GenerateBook(ctx context.Context, bookID uint, reporter generator.ProgressReporter) (*generator.BookResult, error)
	DeleteChapterAudio(bookID uint, number int) error
	IsGenerating(bookID uint, number int) bool
}

// BookImporter imports an uploaded EPUB.
type BookImporter interface {
	Import(ctx context.Context, r io.ReaderAt, size int64, name string) (importers.ImportResult, error)
}

// TaskQueue enqueues background tasks and reports their state.
type TaskQueue interface {
	Enqueue(ctx context.Context, task backlite.Task) (string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// TTSSettingsStore holds the synthesis preferences.
type TTSSettingsStore interface {
	GetTTSPreferences() settingsstore.TTSPreferences
	GetTTSPreferencesInfo() settingsstore.TTSPreferencesInfo
	SetTTSPreferences(prefs settingsstore.TTSPreferences) error
	ClearTTSSettings() error
}

// BackupSettingsStore holds the backup schedule and provider.
type BackupSettingsStore interface {
	GetBackupConfigInfo() settingsstore.BackupConfigInfo
	SetBackupEnabled(enabled bool) error
	SetBackupSchedule(schedule string) error
	SetBackupProvider(provider string) error
	GetBackupStatus() settingsstore.BackupStatus
	ClearBackupSettings() error
}

// BackupService uploads and downloads the library database.
type BackupService interface {
	Upload(ctx context.Context, progress storage.ProgressFunc) (*backup.Result, error)
	Download(ctx context.Context, progress storage.ProgressFunc) (*backup.Result, error)
}

// BackupHistory lists past backup runs.
type BackupHistory interface {
	List(limit int) ([]entities.BackupRecord, error)
	Latest(direction entities.BackupDirection) (*entities.BackupRecord, error)
}

// BackupScheduler is the periodic backup runner.
type BackupScheduler interface {
	Reschedule() error
	RunNow()
	IsRunning() bool
	NextRunTime() *time.Time
}
