package backup

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// ManifestFileName is the remote name of the sidecar describing the last upload.
const ManifestFileName = "AutoBooksDB.toml"

// Manifest describes an uploaded database snapshot.
type Manifest struct {
	ID         string    `toml:"id" json:"id"`
	CreatedAt  time.Time `toml:"created_at" json:"created_at"`
	Database   string    `toml:"database" json:"database"`
	Size       int64     `toml:"size" json:"size"`
	Checksum   string    `toml:"sha256" json:"sha256"`
	Books      int64     `toml:"books" json:"books"`
	AppVersion string    `toml:"app_version" json:"app_version"`
}

func (m *Manifest) encode() ([]byte, error) {
	data, err := toml.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("failed to encode manifest: %w", err)
	}
	return data, nil
}

func decodeManifest(r io.Reader) (*Manifest, error) {
	var m Manifest
	if err := toml.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("failed to decode manifest: %w", err)
	}
	return &m, nil
}

// sqliteHeader starts every SQLite 3 database file.
var sqliteHeader = []byte("SQLite format 3\x00")

// inspectFile returns the size and SHA-256 of a file and checks it is a
// SQLite database.
func inspectFile(path string) (int64, string, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, "", err
	}
	defer f.Close()

	header := make([]byte, len(sqliteHeader))
	if _, err := io.ReadFull(f, header); err != nil || !bytes.Equal(header, sqliteHeader) {
		return 0, "", fmt.Errorf("%w: not a SQLite database", ErrInvalidBackup)
	}

	h := sha256.New()
	h.Write(header)
	n, err := io.Copy(h, f)
	if err != nil {
		return 0, "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return n + int64(len(header)), hex.EncodeToString(h.Sum(nil)), nil
}
