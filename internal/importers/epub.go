package importers

import (
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/mrlokans/autobooks/internal/epub"
)

// EPUBImporter imports .epub files into the library.
type EPUBImporter struct {
	pipeline *Pipeline
}

func NewEPUBImporter(store BookStore) *EPUBImporter {
	return &EPUBImporter{pipeline: NewPipeline(store)}
}

// ImportFile parses and stores the EPUB at path.
func (i *EPUBImporter) ImportFile(ctx context.Context, path string) (ImportResult, error) {
	if err := ctx.Err(); err != nil {
		return ImportResult{}, err
	}
	parsed, err := epub.Open(path)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}
	return i.pipeline.Store(parsed, filepath.Base(path))
}

// Import parses and stores an EPUB read from r. name is recorded as the source file.
func (i *EPUBImporter) Import(ctx context.Context, r io.ReaderAt, size int64, name string) (ImportResult, error) {
	if err := ctx.Err(); err != nil {
		return ImportResult{}, err
	}
	parsed, err := epub.Read(r, size)
	if err != nil {
		return ImportResult{}, fmt.Errorf("failed to read %s: %w", name, err)
	}
	return i.pipeline.Store(parsed, name)
}
