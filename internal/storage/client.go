// Package storage abstracts the cloud drives the database is backed up to.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"
)

// ErrNotFound is returned by providers when a path does not exist.
var ErrNotFound = errors.New("file not found")

// IsNotFound reports whether err means the remote path does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// FileInfo contains metadata about a file or directory in cloud storage
type FileInfo struct {
	Name        string
	Path        string
	IsDir       bool
	Size        int64
	ModifiedAt  time.Time
	ID          string // Provider-specific identifier
	ContentHash string // Provider-specific content hash (if available)
}

// Client defines the interface for cloud storage operations
type Client interface {
	// Name identifies the provider in logs and backup history
	Name() string

	// List returns entries in the specified directory path
	List(ctx context.Context, path string) ([]FileInfo, error)

	// Download retrieves the contents of a file
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Upload writes content to a file path, replacing an existing file
	Upload(ctx context.Context, path string, content io.Reader) error

	// Delete removes a file or empty directory
	Delete(ctx context.Context, path string) error

	// Exists checks if a file or directory exists
	Exists(ctx context.Context, path string) (bool, error)

	// GetMetadata retrieves file info without downloading content
	GetMetadata(ctx context.Context, path string) (*FileInfo, error)
}

// Join builds a remote path from a directory and a file name.
func Join(dir, name string) string {
	if dir == "" {
		return "/" + name
	}
	return path.Join("/", dir, name)
}

// DownloadToFile downloads a remote file to a local path. The file is
// written next to localPath and renamed into place when complete.
func DownloadToFile(ctx context.Context, client Client, remotePath, localPath string) (int64, error) {
	return DownloadToFileWithProgress(ctx, client, remotePath, localPath, 0, nil)
}

// DownloadToFileWithProgress is DownloadToFile reporting each read against
// the expected total size.
func DownloadToFileWithProgress(ctx context.Context, client Client, remotePath, localPath string, total int64, progress ProgressFunc) (int64, error) {
	reader, err := client.Download(ctx, remotePath)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	tmp, err := os.CreateTemp(filepath.Dir(localPath), filepath.Base(localPath)+".part-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	written, err := io.Copy(tmp, NewProgressReader(reader, total, progress))
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write %s: %w", localPath, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	if err := os.Rename(tmp.Name(), localPath); err != nil {
		return 0, fmt.Errorf("failed to move download into place: %w", err)
	}
	return written, nil
}

// ListRecursive lists all files recursively from a path
func ListRecursive(ctx context.Context, client Client, path string) ([]FileInfo, error) {
	var allFiles []FileInfo

	entries, err := client.List(ctx, path)
	if err != nil {
		return nil, err
	}

	for _, entry := range entries {
		if entry.IsDir {
			subFiles, err := ListRecursive(ctx, client, entry.Path)
			if err != nil {
				return nil, err
			}
			allFiles = append(allFiles, subFiles...)
		} else {
			allFiles = append(allFiles, entry)
		}
	}

	return allFiles, nil
}

// FilterFiles filters file list by a predicate function
func FilterFiles(files []FileInfo, predicate func(FileInfo) bool) []FileInfo {
	var filtered []FileInfo
	for _, f := range files {
		if predicate(f) {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// FindLatest returns the most recently modified file from a list
func FindLatest(files []FileInfo) *FileInfo {
	if len(files) == 0 {
		return nil
	}

	latest := &files[0]
	for i := 1; i < len(files); i++ {
		if files[i].ModifiedAt.After(latest.ModifiedAt) {
			latest = &files[i]
		}
	}
	return latest
}

// FindByName returns the most recently modified non-directory entry with the given name.
func FindByName(files []FileInfo, name string) *FileInfo {
	return FindLatest(FilterFiles(files, func(f FileInfo) bool {
		return !f.IsDir && f.Name == name
	}))
}
