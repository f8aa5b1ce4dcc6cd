package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memClient struct {
	files map[string][]byte
}

func (m *memClient) Name() string { return "memory" }

func (m *memClient) List(context.Context, string) ([]FileInfo, error) { return nil, nil }

func (m *memClient) Download(_ context.Context, path string) (io.ReadCloser, error) {
	data, ok := m.files[path]
	if !ok {
		return nil, ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memClient) Upload(_ context.Context, path string, content io.Reader) error {
	data, err := io.ReadAll(content)
	m.files[path] = data
	return err
}

func (m *memClient) Delete(_ context.Context, path string) error {
	delete(m.files, path)
	return nil
}

func (m *memClient) Exists(_ context.Context, path string) (bool, error) {
	_, ok := m.files[path]
	return ok, nil
}

func (m *memClient) GetMetadata(_ context.Context, path string) (*FileInfo, error) {
	if _, ok := m.files[path]; !ok {
		return nil, ErrNotFound
	}
	return &FileInfo{Name: filepath.Base(path), Path: path}, nil
}

func TestDownloadToFile(t *testing.T) {
	client := &memClient{files: map[string][]byte{"/AutoBooks/AutoBooksDB.db": []byte("SQLite format 3\x00")}}
	local := filepath.Join(t.TempDir(), "restore.db")

	n, err := DownloadToFile(context.Background(), client, "/AutoBooks/AutoBooksDB.db", local)
	require.NoError(t, err)
	assert.Equal(t, int64(16), n)

	data, err := os.ReadFile(local)
	require.NoError(t, err)
	assert.Equal(t, "SQLite format 3\x00", string(data))

	entries, err := os.ReadDir(filepath.Dir(local))
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestDownloadToFileWithProgress(t *testing.T) {
	client := &memClient{files: map[string][]byte{"/a.db": []byte("0123456789")}}
	local := filepath.Join(t.TempDir(), "a.db")

	var last, total int64
	n, err := DownloadToFileWithProgress(context.Background(), client, "/a.db", local, 10, func(done, t int64) {
		last, total = done, t
	})
	require.NoError(t, err)
	assert.EqualValues(t, 10, n)
	assert.EqualValues(t, 10, last)
	assert.EqualValues(t, 10, total)
}

func TestDownloadToFile_Missing(t *testing.T) {
	client := &memClient{files: map[string][]byte{}}
	_, err := DownloadToFile(context.Background(), client, "/nope", filepath.Join(t.TempDir(), "x"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFindByName(t *testing.T) {
	now := time.Now()
	files := []FileInfo{
		{Name: "AutoBooksDB.db", ModifiedAt: now.Add(-time.Hour), ID: "old"},
		{Name: "AutoBooksDB.db", ModifiedAt: now, ID: "new"},
		{Name: "AutoBooksDB.db", IsDir: true, ModifiedAt: now.Add(time.Hour), ID: "dir"},
		{Name: "other.db", ModifiedAt: now.Add(time.Hour)},
	}

	found := FindByName(files, "AutoBooksDB.db")
	require.NotNil(t, found)
	assert.Equal(t, "new", found.ID)
	assert.Nil(t, FindByName(files, "missing.db"))
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "/AutoBooksDB.db", Join("", "AutoBooksDB.db"))
	assert.Equal(t, "/AutoBooks/AutoBooksDB.db", Join("AutoBooks", "AutoBooksDB.db"))
	assert.Equal(t, "/AutoBooks/AutoBooksDB.db", Join("/AutoBooks/", "AutoBooksDB.db"))
}

func TestProgressReader(t *testing.T) {
	var calls []int64
	r := NewProgressReader(bytes.NewReader(make([]byte, 10)), 10, func(done, total int64) {
		assert.Equal(t, int64(10), total)
		calls = append(calls, done)
	})

	buf := make([]byte, 4)
	for {
		_, err := r.Read(buf)
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
	}
	assert.Equal(t, []int64{4, 8, 10}, calls)

	plain := bytes.NewReader(nil)
	assert.Same(t, plain, NewProgressReader(plain, 0, nil))
}
