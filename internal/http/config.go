package http

import (
	"github.com/mrlokans/autobooks/internal/generator"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Database Pinger
	Books    BookStore
	Chapters ChapterStore
	Lines    LineAudioStore
	Jobs     JobStore

	// Import
	Importer      BookImporter
	MaxUploadSize int64

	// Audio generation. Generator and TTSEngine are nil when the engine
	// could not be created; TTSError then holds the reason.
	Generator   AudioGenerator
	Reporter    generator.ProgressReporter
	TTSEngine   VoiceLister
	TTSError    error
	TTSSettings TTSSettingsStore

	// Backups (optional)
	Backup          BackupService
	BackupSettings  BackupSettingsStore
	BackupHistory   BackupHistory
	BackupScheduler BackupScheduler
	DatabasePath    string

	// Task queue (optional). Without it generation and uploads run inline.
	Tasks TaskQueue

	// Application info
	Version string
}
