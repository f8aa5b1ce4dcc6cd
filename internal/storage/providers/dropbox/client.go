// Package dropbox implements storage.Client for the Dropbox HTTP API.
package dropbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mrlokans/autobooks/internal/oauth2"
	"github.com/mrlokans/autobooks/internal/storage"
)

const (
	dropboxAPIURL     = "https://api.dropboxapi.com/2"
	dropboxContentURL = "https://content.dropboxapi.com/2"
)

// Option configures a Client
type Option func(*Client)

// WithBaseURLs points the client at different API and content hosts.
func WithBaseURLs(apiURL, contentURL string) Option {
	return func(c *Client) {
		c.api.SetBaseURL(apiURL)
		c.content.SetBaseURL(contentURL)
	}
}

// Client implements storage.Client for Dropbox
type Client struct {
	tokenSource oauth2.TokenSource
	api         *resty.Client
	content     *resty.Client
}

// NewClient creates a new Dropbox storage client
func NewClient(tokenSource oauth2.TokenSource, opts ...Option) *Client {
	c := &Client{
		tokenSource: tokenSource,
		api:         resty.New().SetBaseURL(dropboxAPIURL).SetTimeout(60 * time.Second),
		content:     resty.New().SetBaseURL(dropboxContentURL).SetTimeout(10 * time.Minute),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Name() string {
	return "dropbox"
}

type entry struct {
	Tag            string    `json:".tag"`
	Name           string    `json:"name"`
	PathDisplay    string    `json:"path_display"`
	ID             string    `json:"id"`
	ServerModified time.Time `json:"server_modified"`
	Size           int64     `json:"size"`
	ContentHash    string    `json:"content_hash"`
}

func (e entry) fileInfo() storage.FileInfo {
	return storage.FileInfo{
		Name:        e.Name,
		Path:        e.PathDisplay,
		IsDir:       e.Tag == "folder",
		Size:        e.Size,
		ModifiedAt:  e.ServerModified,
		ID:          e.ID,
		ContentHash: e.ContentHash,
	}
}

type listFolderResponse struct {
	Entries []entry `json:"entries"`
	Cursor  string  `json:"cursor"`
	HasMore bool    `json:"has_more"`
}

// apiError maps Dropbox error responses. Missing paths come back as 409
// with an error_summary starting with "path/not_found".
func apiError(op string, resp *resty.Response) error {
	body := resp.String()
	if resp.StatusCode() == 409 && strings.Contains(body, "not_found") {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return fmt.Errorf("%s: dropbox API error (status %d): %s", op, resp.StatusCode(), body)
}

func (c *Client) request(ctx context.Context, client *resty.Client) (*resty.Request, error) {
	token, err := c.tokenSource.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	return client.R().SetContext(ctx).SetAuthToken(token), nil
}

func (c *Client) rpc(ctx context.Context, op, endpoint string, body, result any) error {
	req, err := c.request(ctx, c.api)
	if err != nil {
		return err
	}
	resp, err := req.
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		SetResult(result).
		Post(endpoint)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.IsError() {
		return apiError(op, resp)
	}
	return nil
}

func (c *Client) List(ctx context.Context, path string) ([]storage.FileInfo, error) {
	var listResp listFolderResponse
	err := c.rpc(ctx, "list folder", "/files/list_folder", map[string]any{
		"path":                           rootPath(path),
		"recursive":                      false,
		"include_deleted":                false,
		"include_mounted_folders":        true,
		"include_non_downloadable_files": false,
	}, &listResp)
	if err != nil {
		return nil, err
	}

	var files []storage.FileInfo
	for {
		for _, e := range listResp.Entries {
			files = append(files, e.fileInfo())
		}
		if !listResp.HasMore {
			return files, nil
		}
		cursor := listResp.Cursor
		listResp = listFolderResponse{}
		if err := c.rpc(ctx, "continue listing", "/files/list_folder/continue", map[string]string{"cursor": cursor}, &listResp); err != nil {
			return nil, err
		}
	}
}

func (c *Client) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	arg, err := json.Marshal(map[string]string{"path": path})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal path arg: %w", err)
	}

	req, err := c.request(ctx, c.content)
	if err != nil {
		return nil, err
	}
	resp, err := req.
		SetHeader("Dropbox-API-Arg", string(arg)).
		SetDoNotParseResponse(true).
		Post("/files/download")
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	if resp.IsError() {
		body := resp.RawBody()
		defer body.Close()
		data, _ := io.ReadAll(body)
		if resp.StatusCode() == 409 && strings.Contains(string(data), "not_found") {
			return nil, fmt.Errorf("download %s: %w", path, storage.ErrNotFound)
		}
		return nil, fmt.Errorf("download: dropbox API error (status %d): %s", resp.StatusCode(), string(data))
	}
	return resp.RawBody(), nil
}

func (c *Client) Upload(ctx context.Context, path string, content io.Reader) error {
	arg, err := json.Marshal(map[string]any{
		"path":       path,
		"mode":       "overwrite",
		"autorename": false,
		"mute":       true,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal upload arg: %w", err)
	}

	req, err := c.request(ctx, c.content)
	if err != nil {
		return err
	}
	resp, err := req.
		SetHeader("Dropbox-API-Arg", string(arg)).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(content).
		Post("/files/upload")
	if err != nil {
		return fmt.Errorf("upload: %w", err)
	}
	if resp.IsError() {
		return apiError("upload", resp)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, path string) error {
	var ignored map[string]any
	return c.rpc(ctx, "delete", "/files/delete_v2", map[string]string{"path": path}, &ignored)
}

func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	_, err := c.GetMetadata(ctx, path)
	if err == nil {
		return true, nil
	}
	if storage.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (c *Client) GetMetadata(ctx context.Context, path string) (*storage.FileInfo, error) {
	var e entry
	if err := c.rpc(ctx, "get metadata", "/files/get_metadata", map[string]any{
		"path":            path,
		"include_deleted": false,
	}, &e); err != nil {
		return nil, err
	}
	info := e.fileInfo()
	return &info, nil
}

// rootPath converts "/" to the empty string Dropbox uses for the app folder root.
func rootPath(path string) string {
	if path == "/" {
		return ""
	}
	return path
}
