// Package gdrive implements storage.Client on the Google Drive app data
// folder. The folder is hidden from the user and flat: remote paths are
// reduced to their base name.
package gdrive

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	xoauth2 "golang.org/x/oauth2"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/mrlokans/autobooks/internal/oauth2"
	"github.com/mrlokans/autobooks/internal/storage"
)

const (
	appDataFolder = "appDataFolder"
	folderMime    = "application/vnd.google-apps.folder"
	fileFields    = "id, name, size, modifiedTime, md5Checksum, mimeType"
)

// Client implements storage.Client for Google Drive
type Client struct {
	files *drive.FilesService
}

// NewClient creates a Drive client authorised by tokenSource. Extra
// options are passed to the Drive service, e.g. option.WithEndpoint.
func NewClient(ctx context.Context, tokenSource oauth2.TokenSource, opts ...option.ClientOption) (*Client, error) {
	httpClient := xoauth2.NewClient(ctx, oauth2.AsOAuth2(ctx, tokenSource))
	opts = append([]option.ClientOption{option.WithHTTPClient(httpClient)}, opts...)

	srv, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create drive service: %w", err)
	}
	return &Client{files: srv.Files}, nil
}

func (c *Client) Name() string {
	return "gdrive"
}

func (c *Client) List(ctx context.Context, _ string) ([]storage.FileInfo, error) {
	var files []storage.FileInfo
	err := c.files.List().
		Context(ctx).
		Spaces(appDataFolder).
		Q("trashed = false").
		Fields(googleapi.Field("nextPageToken, files("+fileFields+")")).
		Pages(ctx, func(page *drive.FileList) error {
			for _, f := range page.Files {
				files = append(files, fileInfo(f))
			}
			return nil
		})
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	return files, nil
}

// find returns the most recently modified file with the path's base name.
func (c *Client) find(ctx context.Context, remotePath string) (*drive.File, error) {
	name := baseName(remotePath)
	list, err := c.files.List().
		Context(ctx).
		Spaces(appDataFolder).
		Q(nameQuery(name)).
		OrderBy("modifiedTime desc").
		PageSize(1).
		Fields(googleapi.Field("files(" + fileFields + ")")).
		Do()
	if err != nil {
		return nil, fmt.Errorf("failed to look up %s: %w", name, err)
	}
	if len(list.Files) == 0 {
		return nil, fmt.Errorf("%s: %w", name, storage.ErrNotFound)
	}
	return list.Files[0], nil
}

func (c *Client) Download(ctx context.Context, remotePath string) (io.ReadCloser, error) {
	f, err := c.find(ctx, remotePath)
	if err != nil {
		return nil, err
	}
	resp, err := c.files.Get(f.Id).Context(ctx).Download()
	if err != nil {
		return nil, mapError("download", err)
	}
	return resp.Body, nil
}

// Upload replaces the content of an existing file with the same name or
// creates a new one.
func (c *Client) Upload(ctx context.Context, remotePath string, content io.Reader) error {
	existing, err := c.find(ctx, remotePath)
	if err != nil && !storage.IsNotFound(err) {
		return err
	}

	if existing != nil {
		_, err = c.files.Update(existing.Id, &drive.File{}).Context(ctx).Media(content).Do()
		return mapError("update", err)
	}

	_, err = c.files.Create(&drive.File{
		Name:     baseName(remotePath),
		Parents:  []string{appDataFolder},
		MimeType: mimeType(remotePath),
	}).Context(ctx).Media(content).Do()
	return mapError("create", err)
}

func (c *Client) Delete(ctx context.Context, remotePath string) error {
	f, err := c.find(ctx, remotePath)
	if err != nil {
		return err
	}
	return mapError("delete", c.files.Delete(f.Id).Context(ctx).Do())
}

func (c *Client) Exists(ctx context.Context, remotePath string) (bool, error) {
	_, err := c.find(ctx, remotePath)
	if err == nil {
		return true, nil
	}
	if storage.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (c *Client) GetMetadata(ctx context.Context, remotePath string) (*storage.FileInfo, error) {
	f, err := c.find(ctx, remotePath)
	if err != nil {
		return nil, err
	}
	info := fileInfo(f)
	return &info, nil
}

func fileInfo(f *drive.File) storage.FileInfo {
	modified, _ := time.Parse(time.RFC3339, f.ModifiedTime)
	return storage.FileInfo{
		Name:        f.Name,
		Path:        "/" + f.Name,
		IsDir:       f.MimeType == folderMime,
		Size:        f.Size,
		ModifiedAt:  modified,
		ID:          f.Id,
		ContentHash: f.Md5Checksum,
	}
}

func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func baseName(remotePath string) string {
	return path.Base("/" + strings.TrimPrefix(remotePath, "/"))
}

func nameQuery(name string) string {
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(name)
	return fmt.Sprintf("name = '%s' and trashed = false", escaped)
}

func mimeType(remotePath string) string {
	switch path.Ext(remotePath) {
	case ".db", ".sqlite":
		return "application/x-sqlite3"
	case ".toml":
		return "application/toml"
	default:
		return "application/octet-stream"
	}
}
