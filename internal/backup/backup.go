// Package backup uploads the library database to a cloud drive and brings
// it back.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/mrlokans/autobooks/internal/config"
	"github.com/mrlokans/autobooks/internal/entities"
	"github.com/mrlokans/autobooks/internal/logging"
	"github.com/mrlokans/autobooks/internal/settingsstore"
	"github.com/mrlokans/autobooks/internal/storage"
)

var (
	ErrNoBackup         = errors.New("no backup found")
	ErrInvalidBackup    = errors.New("invalid backup")
	ErrChecksumMismatch = fmt.Errorf("%w: checksum mismatch", ErrInvalidBackup)
	ErrBackupInProgress = errors.New("backup already in progress")
)

const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Database is the local database being backed up.
type Database interface {
	Path() string
	Snapshot(ctx context.Context, dst string) error
}

// History stores the backup history.
type History interface {
	Record(record *entities.BackupRecord) error
}

// Settings holds the selected provider and the last run status.
type Settings interface {
	GetBackupProvider() string
	GetBackupStatus() settingsstore.BackupStatus
	SetBackupStatus(status, message string) error
}

// BookCounter reports the number of books for the manifest.
type BookCounter interface {
	Count() (int64, error)
}

// ClientFactory opens the storage client for a provider name. The returned
// func releases it.
type ClientFactory func(ctx context.Context, provider string) (storage.Client, func(), error)

type Config struct {
	RemoteDir  string
	AppVersion string
}

// Result describes a finished upload or download.
type Result struct {
	BackupID   string        `json:"backup_id,omitempty"`
	Provider   string        `json:"provider"`
	RemotePath string        `json:"remote_path"`
	Size       int64         `json:"size"`
	Checksum   string        `json:"checksum"`
	Duration   time.Duration `json:"duration"`
	// LocalPath is the downloaded file waiting to be restored.
	LocalPath string    `json:"local_path,omitempty"`
	Manifest  *Manifest `json:"manifest,omitempty"`
}

type Service struct {
	db       Database
	clients  ClientFactory
	history  History
	settings Settings
	books    BookCounter
	cfg      Config
	log      *logrus.Entry

	mu sync.Mutex
}

func NewService(db Database, clients ClientFactory, history History, settings Settings, books BookCounter, cfg Config) *Service {
	return &Service{
		db:       db,
		clients:  clients,
		history:  history,
		settings: settings,
		books:    books,
		cfg:      cfg,
		log:      logging.Component("backup"),
	}
}

func (s *Service) remotePath(name string) string {
	return storage.Join(s.cfg.RemoteDir, name)
}

// Status returns the outcome of the last upload or download.
func (s *Service) Status() settingsstore.BackupStatus {
	return s.settings.GetBackupStatus()
}

// Upload snapshots the database and uploads it with its manifest.
func (s *Service) Upload(ctx context.Context, progress storage.ProgressFunc) (*Result, error) {
	if !s.mu.TryLock() {
		return nil, ErrBackupInProgress
	}
	defer s.mu.Unlock()

	provider := s.settings.GetBackupProvider()
	result, err := s.upload(ctx, provider, progress)
	if err != nil {
		s.fail(entities.BackupDirectionUpload, provider, err)
		return nil, err
	}

	s.succeed(entities.BackupDirectionUpload, result,
		fmt.Sprintf("Uploaded %d bytes to %s", result.Size, provider))
	return result, nil
}

func (s *Service) upload(ctx context.Context, provider string, progress storage.ProgressFunc) (*Result, error) {
	start := time.Now()

	tmpDir, err := os.MkdirTemp("", "autobooks-backup-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapshot := filepath.Join(tmpDir, config.BackupFileName)
	if err := s.db.Snapshot(ctx, snapshot); err != nil {
		return nil, err
	}
	size, checksum, err := inspectFile(snapshot)
	if err != nil {
		return nil, err
	}

	client, release, err := s.clients(ctx, provider)
	if err != nil {
		return nil, err
	}
	defer release()

	f, err := os.Open(snapshot)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	remote := s.remotePath(config.BackupFileName)
	s.log.WithFields(logrus.Fields{
		"provider": provider,
		"path":     remote,
		"size":     size,
	}).Info("Uploading database")

	if err := client.Upload(ctx, remote, storage.NewProgressReader(f, size, progress)); err != nil {
		return nil, fmt.Errorf("failed to upload database: %w", err)
	}

	manifest := &Manifest{
		ID:         uuid.NewString(),
		CreatedAt:  time.Now().UTC().Truncate(time.Second),
		Database:   config.BackupFileName,
		Size:       size,
		Checksum:   checksum,
		AppVersion: s.cfg.AppVersion,
	}
	if s.books != nil {
		if count, err := s.books.Count(); err == nil {
			manifest.Books = count
		}
	}
	data, err := manifest.encode()
	if err != nil {
		return nil, err
	}
	if err := client.Upload(ctx, s.remotePath(ManifestFileName), bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to upload manifest: %w", err)
	}

	return &Result{
		BackupID:   manifest.ID,
		Provider:   provider,
		RemotePath: remote,
		Size:       size,
		Checksum:   checksum,
		Duration:   time.Since(start),
		Manifest:   manifest,
	}, nil
}

// Download fetches the remote database into a temp file next to the local
// database and verifies it. Pass Result.LocalPath to Restore to replace the
// local database, or remove it.
func (s *Service) Download(ctx context.Context, progress storage.ProgressFunc) (*Result, error) {
	if !s.mu.TryLock() {
		return nil, ErrBackupInProgress
	}
	defer s.mu.Unlock()

	provider := s.settings.GetBackupProvider()
	result, err := s.download(ctx, provider, progress)
	if err != nil {
		s.fail(entities.BackupDirectionDownload, provider, err)
		return nil, err
	}

	s.succeed(entities.BackupDirectionDownload, result,
		fmt.Sprintf("Downloaded %d bytes from %s", result.Size, provider))
	return result, nil
}

func (s *Service) download(ctx context.Context, provider string, progress storage.ProgressFunc) (*Result, error) {
	start := time.Now()

	client, release, err := s.clients(ctx, provider)
	if err != nil {
		return nil, err
	}
	defer release()

	remote := s.remotePath(config.BackupFileName)
	info, err := client.GetMetadata(ctx, remote)
	if err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrNoBackup
		}
		return nil, fmt.Errorf("failed to look up backup: %w", err)
	}

	manifest, err := s.fetchManifest(ctx, client)
	if err != nil {
		return nil, err
	}

	local := filepath.Join(filepath.Dir(s.db.Path()), fmt.Sprintf(".%s.download-%s", config.BackupFileName, uuid.NewString()[:8]))
	if _, err := storage.DownloadToFileWithProgress(ctx, client, remote, local, info.Size, progress); err != nil {
		if storage.IsNotFound(err) {
			return nil, ErrNoBackup
		}
		return nil, fmt.Errorf("failed to download database: %w", err)
	}

	size, checksum, err := inspectFile(local)
	if err == nil && manifest != nil && manifest.Checksum != "" && manifest.Checksum != checksum {
		err = ErrChecksumMismatch
	}
	if err != nil {
		os.Remove(local)
		return nil, err
	}

	result := &Result{
		Provider:   provider,
		RemotePath: remote,
		Size:       size,
		Checksum:   checksum,
		Duration:   time.Since(start),
		LocalPath:  local,
		Manifest:   manifest,
	}
	if manifest != nil {
		result.BackupID = manifest.ID
	}
	return result, nil
}

// RemoteFiles lists what the configured provider holds for this app.
type RemoteFiles struct {
	Provider string             `json:"provider"`
	Files    []storage.FileInfo `json:"files"`
	// Database is the snapshot a download would restore, nil when absent.
	Database *storage.FileInfo `json:"database,omitempty"`
}

// ListRemote lists the backup files under the remote directory.
func (s *Service) ListRemote(ctx context.Context) (*RemoteFiles, error) {
	provider := s.settings.GetBackupProvider()
	client, release, err := s.clients(ctx, provider)
	if err != nil {
		return nil, err
	}
	defer release()

	all, err := storage.ListRecursive(ctx, client, s.remotePath(""))
	if err != nil {
		if storage.IsNotFound(err) {
			return &RemoteFiles{Provider: provider}, nil
		}
		return nil, fmt.Errorf("failed to list backups: %w", err)
	}
	files := storage.FilterFiles(all, func(f storage.FileInfo) bool {
		return f.Name == config.BackupFileName || f.Name == ManifestFileName
	})
	return &RemoteFiles{
		Provider: provider,
		Files:    files,
		Database: storage.FindByName(files, config.BackupFileName),
	}, nil
}

// fetchManifest returns nil when the backup has no manifest.
func (s *Service) fetchManifest(ctx context.Context, client storage.Client) (*Manifest, error) {
	reader, err := client.Download(ctx, s.remotePath(ManifestFileName))
	if err != nil {
		if storage.IsNotFound(err) {
			s.log.Warn("Backup has no manifest, skipping checksum verification")
			return nil, nil
		}
		return nil, fmt.Errorf("failed to download manifest: %w", err)
	}
	defer reader.Close()
	return decodeManifest(reader)
}

func (s *Service) succeed(direction entities.BackupDirection, result *Result, message string) {
	s.record(&entities.BackupRecord{
		BackupID:   result.BackupID,
		Direction:  direction,
		Provider:   result.Provider,
		RemotePath: result.RemotePath,
		Size:       result.Size,
		Checksum:   result.Checksum,
		Status:     entities.JobStatusCompleted,
		Message:    message,
	}, StatusCompleted, message)

	s.log.WithFields(logrus.Fields{
		"direction": direction,
		"provider":  result.Provider,
		"size":      result.Size,
		"duration":  result.Duration,
	}).Info("Backup finished")
}

func (s *Service) fail(direction entities.BackupDirection, provider string, err error) {
	s.record(&entities.BackupRecord{
		Direction: direction,
		Provider:  provider,
		Status:    entities.JobStatusFailed,
		Message:   err.Error(),
	}, StatusFailed, err.Error())

	s.log.WithError(err).WithFields(logrus.Fields{
		"direction": direction,
		"provider":  provider,
	}).Error("Backup failed")
}

func (s *Service) record(rec *entities.BackupRecord, status, message string) {
	if err := s.history.Record(rec); err != nil {
		s.log.WithError(err).Warn("Failed to record backup history")
	}
	if err := s.settings.SetBackupStatus(status, message); err != nil {
		s.log.WithError(err).Warn("Failed to save backup status")
	}
}
