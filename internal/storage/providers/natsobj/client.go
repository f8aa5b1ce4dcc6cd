// Package natsobj implements storage.Client on a NATS JetStream object
// store bucket, for self-hosted backups.
package natsobj

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/mrlokans/autobooks/internal/storage"
)

// DefaultBucket is the bucket used when none is configured.
const DefaultBucket = "autobooks-backups"

// Client implements storage.Client for a JetStream object store
type Client struct {
	conn   *nats.Conn
	bucket string
	store  nats.ObjectStore
}

// Dial connects to a NATS server and opens the bucket. Close releases the
// connection.
func Dial(url, bucket string) (*Client, error) {
	nc, err := nats.Connect(url, nats.Name("autobooks"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}
	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to open jetstream: %w", err)
	}
	c, err := New(js, bucket)
	if err != nil {
		nc.Close()
		return nil, err
	}
	c.conn = nc
	return c, nil
}

// New creates the bucket, or binds to it when it already exists.
func New(js nats.JetStreamContext, bucket string) (*Client, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}
	store, err := js.CreateObjectStore(&nats.ObjectStoreConfig{
		Bucket:      bucket,
		Description: "AutoBooks database backups",
		Storage:     nats.FileStorage,
		Replicas:    1,
	})
	if err != nil {
		if !errors.Is(err, jetstream.ErrBucketExists) && !errors.Is(err, nats.ErrStreamNameAlreadyInUse) {
			return nil, fmt.Errorf("failed to create object store bucket '%s': %w", bucket, err)
		}
		store, err = js.ObjectStore(bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to bind to object store bucket '%s': %w", bucket, err)
		}
	}
	return &Client{bucket: bucket, store: store}, nil
}

// Close closes the connection opened by Dial.
func (c *Client) Close() {
	if c.conn != nil {
		c.conn.Close()
	}
}

func (c *Client) Name() string {
	return "nats"
}

func (c *Client) List(ctx context.Context, dir string) ([]storage.FileInfo, error) {
	objects, err := c.store.List(nats.Context(ctx))
	if err != nil {
		if errors.Is(err, nats.ErrNoObjectsFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to list bucket '%s': %w", c.bucket, err)
	}

	prefix := key(dir)
	if prefix != "" {
		prefix += "/"
	}
	var files []storage.FileInfo
	for _, obj := range objects {
		if obj.Deleted || !strings.HasPrefix(obj.Name, prefix) {
			continue
		}
		files = append(files, fileInfo(obj))
	}
	return files, nil
}

func (c *Client) Download(ctx context.Context, remotePath string) (io.ReadCloser, error) {
	obj, err := c.store.Get(key(remotePath), nats.Context(ctx))
	if err != nil {
		return nil, c.mapError("get", remotePath, err)
	}
	return obj, nil
}

func (c *Client) Upload(ctx context.Context, remotePath string, content io.Reader) error {
	_, err := c.store.Put(&nats.ObjectMeta{Name: key(remotePath)}, content, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to put object '%s' to bucket '%s': %w", remotePath, c.bucket, err)
	}
	return nil
}

func (c *Client) Delete(_ context.Context, remotePath string) error {
	if err := c.store.Delete(key(remotePath)); err != nil {
		return c.mapError("delete", remotePath, err)
	}
	return nil
}

func (c *Client) Exists(ctx context.Context, remotePath string) (bool, error) {
	_, err := c.GetMetadata(ctx, remotePath)
	if err == nil {
		return true, nil
	}
	if storage.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (c *Client) GetMetadata(ctx context.Context, remotePath string) (*storage.FileInfo, error) {
	obj, err := c.store.GetInfo(key(remotePath), nats.Context(ctx))
	if err != nil {
		return nil, c.mapError("get info", remotePath, err)
	}
	info := fileInfo(obj)
	return &info, nil
}

func (c *Client) mapError(op, remotePath string, err error) error {
	if errors.Is(err, nats.ErrObjectNotFound) {
		return fmt.Errorf("%s %s: %w", op, remotePath, storage.ErrNotFound)
	}
	return fmt.Errorf("failed to %s object '%s' in bucket '%s': %w", op, remotePath, c.bucket, err)
}

// key turns a remote path into an object name, which may not start with a slash.
func key(remotePath string) string {
	return strings.Trim(remotePath, "/")
}

func fileInfo(obj *nats.ObjectInfo) storage.FileInfo {
	return storage.FileInfo{
		Name:        path.Base(obj.Name),
		Path:        "/" + obj.Name,
		Size:        int64(obj.Size),
		ModifiedAt:  obj.ModTime,
		ID:          obj.NUID,
		ContentHash: obj.Digest,
	}
}
